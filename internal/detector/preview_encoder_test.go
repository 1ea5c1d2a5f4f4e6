package detector

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodePreview parses a data URI back into the image it carries
func decodePreview(t *testing.T, uri string) image.Image {
	t.Helper()
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestPreviewEncoder_Render(t *testing.T) {
	m := &ElaMap{
		Width:  3,
		Height: 2,
		Cells:  []uint8{0, 50, 100, 150, 200, 255},
	}

	uri, err := NewPreviewEncoder().Render(m)
	require.NoError(t, err)

	img := decodePreview(t, uri)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	gray, ok := img.(*image.Gray)
	require.True(t, ok, "expected grayscale preview, got %T", img)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, m.At(x, y), gray.GrayAt(x, y).Y)
		}
	}
}

func TestPreviewEncoder_InvalidMap(t *testing.T) {
	encoder := NewPreviewEncoder()

	for name, m := range map[string]*ElaMap{
		"nil":             nil,
		"zero width":      {Width: 0, Height: 1},
		"cells too short": {Width: 2, Height: 2, Cells: []uint8{1, 2, 3}},
	} {
		t.Run(name, func(t *testing.T) {
			uri, err := encoder.Render(m)
			assert.Empty(t, uri)
			assert.ErrorIs(t, err, ErrProcessingFailure)
			assert.Equal(t, StagePreview, StageOf(err))
		})
	}
}
