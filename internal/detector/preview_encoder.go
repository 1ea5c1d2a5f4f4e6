package detector

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
)

const previewPrefix = "data:image/png;base64,"

// previewEncoder implements PreviewEncoder
type previewEncoder struct {
	encoder *png.Encoder
}

// NewPreviewEncoder creates an encoder rendering ELA maps as grayscale PNG
// data URIs.
func NewPreviewEncoder() PreviewEncoder {
	return &previewEncoder{
		encoder: &png.Encoder{CompressionLevel: png.BestSpeed},
	}
}

// Render draws one gray pixel per cell at the map's own dimensions
func (p *previewEncoder) Render(m *ElaMap) (string, error) {
	if m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Cells) != m.Width*m.Height {
		return "", newDetectionError(KindProcessingFailure, StagePreview, "invalid error level map", nil)
	}

	gray := &image.Gray{
		Pix:    m.Cells,
		Stride: m.Width,
		Rect:   image.Rect(0, 0, m.Width, m.Height),
	}

	var buf bytes.Buffer
	if err := p.encoder.Encode(&buf, gray); err != nil {
		return "", newDetectionError(KindProcessingFailure, StagePreview, "failed to encode preview", err)
	}

	return previewPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
