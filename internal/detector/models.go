package detector

import (
	"image"

	"go-image-forensics/pkg/models"
)

// DetectionResult is an alias to the shared models.DetectionResult
type DetectionResult = models.DetectionResult

// Format identifies the image family detected from content
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatNone Format = ""
)

// ImageBuffer holds a decoded image normalized to 8-bit NRGBA.
// It is never mutated after Decode returns.
type ImageBuffer struct {
	Pixels   *image.NRGBA
	Width    int
	Height   int
	Format   Format
	MIMEType string
}

// ElaMap is the per-pixel error level grid produced by the ELA engine
type ElaMap struct {
	Width     int
	Height    int
	Cells     []uint8 // row-major, len == Width*Height
	Histogram [256]uint64
	MeanELA   float64
	MaxELA    float64
	StdDevELA float64
	P95ELA    float64
}

// At returns the cell value at (x, y)
func (m *ElaMap) At(x, y int) uint8 {
	return m.Cells[y*m.Width+x]
}

// MetadataReport is the outcome of a metadata scan
type MetadataReport struct {
	Container      Format
	Tags           map[string]string
	SuspiciousTags []string

	Software string
	Make     string
	Model    string
	HasGPS   bool
}
