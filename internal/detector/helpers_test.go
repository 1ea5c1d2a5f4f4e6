package detector

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestImage creates a solid color image of the given size
func createTestImage(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createNoiseImage fills an image with seeded pseudo-random pixels
func createNoiseImage(width, height int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// solidJPEG is the 48x48 uniform red fixture used across the pipeline tests
func solidJPEG(t *testing.T) []byte {
	return encodeJPEG(t, createTestImage(48, 48, color.RGBA{R: 180, G: 32, B: 32, A: 255}), 95)
}

// insertJPEGSegment places a marker segment directly after SOI
func insertJPEGSegment(data []byte, marker byte, payload []byte) []byte {
	out := make([]byte, 0, len(data)+len(payload)+4)
	out = append(out, data[:2]...)
	out = append(out, 0xFF, marker)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	return append(out, data[2:]...)
}

func jfifPayload() []byte {
	return []byte{'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0}
}

func withJFIF(data []byte) []byte {
	return insertJPEGSegment(data, 0xE0, jfifPayload())
}

func withExif(data []byte, tiffData []byte) []byte {
	return insertJPEGSegment(data, 0xE1, append([]byte("Exif\x00\x00"), tiffData...))
}

func withXMP(data []byte, packet string) []byte {
	return insertJPEGSegment(data, 0xE1, append([]byte("http://ns.adobe.com/xap/1.0/\x00"), packet...))
}

// insertPNGChunk places a chunk directly after IHDR
func insertPNGChunk(data []byte, kind string, chunk []byte) []byte {
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	var encoded []byte
	encoded = binary.BigEndian.AppendUint32(encoded, uint32(len(chunk)))
	encoded = append(encoded, kind...)
	encoded = append(encoded, chunk...)
	encoded = binary.BigEndian.AppendUint32(encoded, crc32.ChecksumIEEE(encoded[4:]))

	out := make([]byte, 0, len(data)+len(encoded))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, encoded...)
	return append(out, data[ihdrEnd:]...)
}

const (
	tagMake             = 0x010F
	tagModel            = 0x0110
	tagSoftware         = 0x0131
	tagDateTime         = 0x0132
	tagExposureTime     = 0x829A
	tagExifIFDPointer   = 0x8769
	tagGPSIFDPointer    = 0x8825
	tagGPSLatitudeRef   = 0x0001
	tagGPSLatitude      = 0x0002
	tagDateTimeOriginal = 0x9003
	tagFocalLength      = 0x920A
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: 2, count: uint32(len(b)), data: b}
}

func rationalEntry(tag uint16, num, den uint32) ifdEntry {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, num)
	b = binary.LittleEndian.AppendUint32(b, den)
	return ifdEntry{tag: tag, typ: 5, count: 1, data: b}
}

// rationalsEntry holds several num/den pairs, such as degrees, minutes and
// seconds
func rationalsEntry(tag uint16, pairs ...[2]uint32) ifdEntry {
	var b []byte
	for _, p := range pairs {
		b = binary.LittleEndian.AppendUint32(b, p[0])
		b = binary.LittleEndian.AppendUint32(b, p[1])
	}
	return ifdEntry{tag: tag, typ: 5, count: uint32(len(pairs)), data: b}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	return ifdEntry{tag: tag, typ: 4, count: 1, data: binary.LittleEndian.AppendUint32(nil, v)}
}

func ifdSize(entries []ifdEntry) int {
	size := 2 + 12*len(entries) + 4
	for _, e := range entries {
		if len(e.data) > 4 {
			size += len(e.data) + len(e.data)%2
		}
	}
	return size
}

// appendIFD writes one directory at the current end of out; out must start
// with the TIFF header so lengths are absolute offsets
func appendIFD(out []byte, entries []ifdEntry) []byte {
	sorted := append([]ifdEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].tag < sorted[j].tag })

	le := binary.LittleEndian
	dataOffset := len(out) + 2 + 12*len(sorted) + 4
	var data []byte

	out = le.AppendUint16(out, uint16(len(sorted)))
	for _, e := range sorted {
		out = le.AppendUint16(out, e.tag)
		out = le.AppendUint16(out, e.typ)
		out = le.AppendUint32(out, e.count)
		if len(e.data) <= 4 {
			inline := make([]byte, 4)
			copy(inline, e.data)
			out = append(out, inline...)
			continue
		}
		out = le.AppendUint32(out, uint32(dataOffset+len(data)))
		data = append(data, e.data...)
		if len(e.data)%2 == 1 {
			data = append(data, 0)
		}
	}
	out = le.AppendUint32(out, 0)
	return append(out, data...)
}

// buildTIFF assembles a little-endian EXIF block with IFD0 and an optional
// Exif sub-IFD
func buildTIFF(ifd0, exifIFD []ifdEntry) []byte {
	out := []byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}
	if len(exifIFD) == 0 {
		return appendIFD(out, ifd0)
	}

	entries := append(append([]ifdEntry(nil), ifd0...), ifdEntry{})
	entries[len(entries)-1] = longEntry(tagExifIFDPointer, uint32(8+ifdSize(entries)))
	out = appendIFD(out, entries)
	return appendIFD(out, exifIFD)
}

// buildTIFFWithGPS assembles IFD0 followed by a GPS sub-IFD
func buildTIFFWithGPS(ifd0, gpsIFD []ifdEntry) []byte {
	out := []byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}
	entries := append(append([]ifdEntry(nil), ifd0...), ifdEntry{})
	entries[len(entries)-1] = longEntry(tagGPSIFDPointer, uint32(8+ifdSize(entries)))
	out = appendIFD(out, entries)
	return appendIFD(out, gpsIFD)
}

func gpsIFD() []ifdEntry {
	return []ifdEntry{
		asciiEntry(tagGPSLatitudeRef, "N"),
		rationalsEntry(tagGPSLatitude, [2]uint32{52, 1}, [2]uint32{30, 1}, [2]uint32{0, 1}),
	}
}

func cameraIFD(software string) []ifdEntry {
	entries := []ifdEntry{
		asciiEntry(tagMake, "Canon"),
		asciiEntry(tagModel, "Canon EOS 5D"),
	}
	if software != "" {
		entries = append(entries, asciiEntry(tagSoftware, software))
	}
	return entries
}
