package detector

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/jpegn"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// imageDecoder implements ImageDecoder
type imageDecoder struct{}

// NewImageDecoder creates a content-sniffing image decoder
func NewImageDecoder() ImageDecoder {
	return &imageDecoder{}
}

var mimeFormats = map[string]Format{
	"image/jpeg": FormatJPEG,
	"image/png":  FormatPNG,
	"image/gif":  FormatGIF,
	"image/webp": FormatWebP,
	"image/bmp":  FormatBMP,
	"image/tiff": FormatTIFF,
}

// DetectFormat identifies the image family from the leading bytes of data.
// File names and declared content types are never consulted.
func DetectFormat(data []byte) (Format, string) {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if format, ok := mimeFormats[m.String()]; ok {
			return format, m.String()
		}
	}
	return FormatNone, detected.String()
}

// Decode identifies and decodes data into an ImageBuffer
func (d *imageDecoder) Decode(data []byte) (*ImageBuffer, error) {
	if len(data) == 0 {
		return nil, newDetectionError(KindNoPayload, StageInput, "image payload is empty", nil)
	}
	if len(data) < MinHeaderLength {
		return nil, newDetectionError(KindUnsupportedFormat, StageDecode,
			fmt.Sprintf("payload too short to identify (%d bytes)", len(data)), nil)
	}

	format, mimeType := DetectFormat(data)
	if format == FormatNone {
		return nil, newDetectionError(KindUnsupportedFormat, StageDecode,
			fmt.Sprintf("content type %q is not a supported image family", mimeType), nil)
	}

	img, err := decodeFormat(format, data)
	if err != nil {
		if isUnsupportedVariant(err) {
			return nil, newDetectionError(KindUnsupportedFormat, StageDecode,
				fmt.Sprintf("%s image uses an unsupported encoding", format), err)
		}
		return nil, newDetectionError(KindCorruptImage, StageDecode,
			fmt.Sprintf("failed to decode %s image", format), err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, newDetectionError(KindCorruptImage, StageDecode,
			fmt.Sprintf("%s image has no pixels", format), nil)
	}

	return &ImageBuffer{
		Pixels:   toNRGBA(img),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Format:   format,
		MIMEType: mimeType,
	}, nil
}

// decodeFormat runs the decoder for a known family. Decoder panics on
// hostile input are reported as errors.
func decodeFormat(format Format, data []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()

	r := bytes.NewReader(data)
	switch format {
	case FormatJPEG:
		return jpegn.Decode(r, &jpegn.Options{ToRGBA: true})
	case FormatPNG:
		return png.Decode(r)
	case FormatGIF:
		return gif.Decode(r)
	case FormatWebP:
		return webp.Decode(r)
	case FormatBMP:
		return bmp.Decode(r)
	case FormatTIFF:
		return tiff.Decode(r)
	default:
		return nil, fmt.Errorf("no decoder for format %q", format)
	}
}

// isUnsupportedVariant reports whether a decoder rejected a well-formed
// stream it cannot handle, such as 12-bit JPEG precision
func isUnsupportedVariant(err error) bool {
	var jpegErr jpeg.UnsupportedError
	var tiffErr tiff.UnsupportedError
	return errors.Is(err, jpegn.ErrUnsupported) ||
		errors.Is(err, bmp.ErrUnsupported) ||
		errors.As(err, &jpegErr) ||
		errors.As(err, &tiffErr)
}

// toNRGBA copies img into a zero-origin NRGBA buffer
func toNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && bounds.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}
