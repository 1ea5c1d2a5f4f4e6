package detector

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

const (
	// maxTagValueLength truncates oversized values such as maker notes
	maxTagValueLength = 256
	// maxInflatedText bounds decompressed PNG text chunks
	maxInflatedText = 64 << 10
	// unreadableExifTag marks an EXIF block that failed to decode
	unreadableExifTag = "EXIF"
)

var (
	jfifPrefix      = []byte("JFIF\x00")
	exifPrefix      = []byte("Exif\x00\x00")
	xmpPrefix       = []byte("http://ns.adobe.com/xap/1.0/\x00")
	photoshopPrefix = []byte("Photoshop 3.0\x00")
	pngSignature    = []byte("\x89PNG\r\n\x1a\n")

	xmpPattern = regexp.MustCompile(`xmp:(CreatorTool|ModifyDate|CreateDate)(?:\s*=\s*"([^"]*)"|>([^<]*)<)`)
)

// structuralFields describe pixel layout rather than the capture and are not
// counted as descriptive metadata
var structuralFields = map[exif.FieldName]bool{
	"ImageWidth":                       true,
	"ImageLength":                      true,
	"BitsPerSample":                    true,
	"Compression":                      true,
	"PhotometricInterpretation":        true,
	"SamplesPerPixel":                  true,
	"PlanarConfiguration":              true,
	"XResolution":                      true,
	"YResolution":                      true,
	"ResolutionUnit":                   true,
	"StripOffsets":                     true,
	"RowsPerStrip":                     true,
	"StripByteCounts":                  true,
	"ExifIFDPointer":                   true,
	"GPSInfoIFDPointer":                true,
	"InteroperabilityIFDPointer":       true,
	"ThumbJPEGInterchangeFormat":       true,
	"ThumbJPEGInterchangeFormatLength": true,
}

// tagWalker collects EXIF fields into a flat map
type tagWalker struct {
	tags map[string]string
}

func (w tagWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if structuralFields[name] {
		return nil
	}

	var val string
	if tag.Type == tiff.DTAscii {
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		val = s
	} else {
		val = tag.String()
		// Remove surrounding quotes from string values
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
	}

	setTag(w.tags, string(name), val)
	return nil
}

// setTag stores a trimmed, length-bounded value; empty values are dropped
func setTag(tags map[string]string, name, value string) {
	value = strings.TrimSpace(strings.Trim(value, "\x00"))
	if value == "" {
		return
	}
	if len(value) > maxTagValueLength {
		value = value[:maxTagValueLength]
	}
	tags[name] = value
}

// readExif decodes a raw TIFF-structured EXIF block. A block that is present
// but cannot be decoded is still recorded so the container does not look
// stripped.
func readExif(data []byte, tags map[string]string) error {
	data = bytes.TrimPrefix(data, exifPrefix)
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil {
		if err == nil {
			err = fmt.Errorf("no exif structure")
		}
		tags[unreadableExifTag] = "unreadable"
		return err
	}
	return x.Walk(tagWalker{tags: tags})
}

// readXMP pulls the handful of XMP properties the rules care about. Both the
// attribute and the element serializations are accepted.
func readXMP(packet []byte, tags map[string]string) {
	for _, m := range xmpPattern.FindAllSubmatch(packet, -1) {
		value := m[2]
		if len(value) == 0 {
			value = m[3]
		}
		setTag(tags, "XMP:"+string(m[1]), string(value))
	}
}

// scanJPEG walks marker segments up to the start of scan
func scanJPEG(data []byte, tags map[string]string) {
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF:
			// fill byte
			i++
			continue
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD8):
			i += 2
			continue
		case marker == 0xDA || marker == 0xD9:
			return
		}

		length := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if length < 2 || i+2+length > len(data) {
			return
		}
		payload := data[i+4 : i+2+length]

		switch marker {
		case 0xE0:
			readJFIF(payload, tags)
		case 0xE1:
			switch {
			case bytes.HasPrefix(payload, exifPrefix):
				if err := readExif(payload, tags); err != nil {
					debugParse("jpeg", "exif", err)
				}
			case bytes.HasPrefix(payload, xmpPrefix):
				readXMP(payload[len(xmpPrefix):], tags)
			}
		case 0xED:
			if bytes.HasPrefix(payload, photoshopPrefix) {
				tags["PhotoshopIRB"] = "present"
			}
		case 0xFE:
			setTag(tags, "Comment", string(payload))
		}

		i += 2 + length
	}
}

func readJFIF(payload []byte, tags map[string]string) {
	if !bytes.HasPrefix(payload, jfifPrefix) || len(payload) < 14 {
		return
	}
	tags["JFIFVersion"] = fmt.Sprintf("%d.%02d", payload[5], payload[6])
	tags["JFIFDensityUnits"] = fmt.Sprintf("%d", payload[7])
	tags["JFIFXDensity"] = fmt.Sprintf("%d", binary.BigEndian.Uint16(payload[8:10]))
	tags["JFIFYDensity"] = fmt.Sprintf("%d", binary.BigEndian.Uint16(payload[10:12]))
}

// scanPNG walks chunks until IEND
func scanPNG(data []byte, tags map[string]string) {
	if !bytes.HasPrefix(data, pngSignature) {
		return
	}

	i := len(pngSignature)
	for i+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[i : i+4]))
		kind := string(data[i+4 : i+8])
		start := i + 8
		end := start + length
		if length < 0 || end+4 > len(data) || end < start {
			return
		}
		chunk := data[start:end]

		switch kind {
		case "tEXt":
			if key, text, ok := bytes.Cut(chunk, []byte{0}); ok {
				setPNGText(tags, string(key), text)
			}
		case "zTXt":
			if key, rest, ok := bytes.Cut(chunk, []byte{0}); ok && len(rest) > 0 {
				if text, err := inflate(rest[1:]); err == nil {
					setPNGText(tags, string(key), text)
				} else {
					debugParse("png", "zTXt", err)
				}
			}
		case "iTXt":
			readITXt(chunk, tags)
		case "tIME":
			if len(chunk) == 7 {
				tags["PNG:ModificationTime"] = fmt.Sprintf("%04d:%02d:%02d %02d:%02d:%02d",
					binary.BigEndian.Uint16(chunk[0:2]), chunk[2], chunk[3], chunk[4], chunk[5], chunk[6])
			}
		case "eXIf":
			if err := readExif(chunk, tags); err != nil {
				debugParse("png", "eXIf", err)
			}
		case "IEND":
			return
		}

		i = end + 4 // skip CRC
	}
}

func readITXt(chunk []byte, tags map[string]string) {
	key, rest, ok := bytes.Cut(chunk, []byte{0})
	if !ok || len(rest) < 2 {
		return
	}
	compressed := rest[0] == 1
	rest = rest[2:]
	// language tag and translated keyword
	for n := 0; n < 2; n++ {
		if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
			return
		}
	}

	text := rest
	if compressed {
		inflated, err := inflate(rest)
		if err != nil {
			debugParse("png", "iTXt", err)
			return
		}
		text = inflated
	}
	setPNGText(tags, string(key), text)
}

func setPNGText(tags map[string]string, key string, text []byte) {
	if key == "XML:com.adobe.xmp" {
		readXMP(text, tags)
		return
	}
	setTag(tags, "PNG:"+key, string(text))
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, maxInflatedText))
}

// scanWebP walks RIFF chunks looking for EXIF and XMP payloads
func scanWebP(data []byte, tags map[string]string) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return
	}

	i := 12
	for i+8 <= len(data) {
		fourCC := string(data[i : i+4])
		size := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		start := i + 8
		end := start + size
		if size < 0 || end > len(data) || end < start {
			return
		}

		switch fourCC {
		case "EXIF":
			if err := readExif(data[start:end], tags); err != nil {
				debugParse("webp", "EXIF", err)
			}
		case "XMP ":
			readXMP(data[start:end], tags)
		}

		i = end + size%2 // chunks are padded to even length
	}
}

// scanTIFF reads IFD0 and its sub-directories
func scanTIFF(data []byte, tags map[string]string) {
	if err := readExif(data, tags); err != nil {
		debugParse("tiff", "ifd", err)
	}
}
