package detector

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"runtime"
	"sync"

	"github.com/gen2brain/jpegn"
	"gonum.org/v1/gonum/stat"
)

// elaEngine implements ELAEngine
type elaEngine struct {
	bufferPool sync.Pool
}

// NewELAEngine creates an error level analysis engine using the fixed
// RecompressQuality and Amplification constants.
func NewELAEngine() ELAEngine {
	return &elaEngine{
		bufferPool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// levels holds the 256 possible cell values as float64 for weighted statistics
var levels = func() []float64 {
	l := make([]float64, 256)
	for i := range l {
		l[i] = float64(i)
	}
	return l
}()

// Analyze recompresses buf once at RecompressQuality and measures how far
// every pixel moved.
func (e *elaEngine) Analyze(buf *ImageBuffer) (*ElaMap, error) {
	if buf == nil || buf.Pixels == nil || buf.Width == 0 || buf.Height == 0 {
		return nil, newDetectionError(KindProcessingFailure, StageELA, "empty image buffer", nil)
	}

	original := flatten(buf.Pixels)

	recompressed, err := e.recompress(original)
	if err != nil {
		return nil, err
	}
	if recompressed.Bounds().Dx() != buf.Width || recompressed.Bounds().Dy() != buf.Height {
		return nil, newDetectionError(KindProcessingFailure, StageELA,
			fmt.Sprintf("recompressed size %dx%d does not match %dx%d",
				recompressed.Bounds().Dx(), recompressed.Bounds().Dy(), buf.Width, buf.Height), nil)
	}

	return e.difference(original, recompressed), nil
}

// flatten composites src over opaque black so that alpha never leaks into the
// comparison. The JPEG encoder would otherwise premultiply it away.
func flatten(src *image.NRGBA) *image.RGBA {
	bounds := image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy())
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.Black, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, src, src.Bounds().Min, draw.Over)
	return dst
}

// recompress encodes img at RecompressQuality and decodes it back
func (e *elaEngine) recompress(img *image.RGBA) (*image.NRGBA, error) {
	encoded := e.bufferPool.Get().(*bytes.Buffer)
	encoded.Reset()
	defer e.bufferPool.Put(encoded)

	if err := jpeg.Encode(encoded, img, &jpeg.Options{Quality: RecompressQuality}); err != nil {
		return nil, newDetectionError(KindProcessingFailure, StageELA, "failed to recompress image", err)
	}

	decoded, err := jpegn.Decode(bytes.NewReader(encoded.Bytes()), &jpegn.Options{ToRGBA: true})
	if err != nil {
		return nil, newDetectionError(KindProcessingFailure, StageELA, "failed to decode recompressed image", err)
	}
	return toNRGBA(decoded), nil
}

type stripResult struct {
	sum       uint64
	max       uint8
	histogram [256]uint64
}

// difference builds the ElaMap from the two pixel grids. Rows are split into
// horizontal strips processed in parallel; each strip writes a disjoint range
// of cells and its integer totals are merged afterwards.
func (e *elaEngine) difference(original *image.RGBA, recompressed *image.NRGBA) *ElaMap {
	width, height := original.Bounds().Dx(), original.Bounds().Dy()
	cells := make([]uint8, width*height)

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	results := make([]stripResult, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}
		if startY >= endY {
			continue
		}

		wg.Add(1)
		go func(idx, startY, endY int) {
			defer wg.Done()
			res := &results[idx]

			for y := startY; y < endY; y++ {
				po := original.PixOffset(0, y)
				pr := recompressed.PixOffset(0, y)
				row := cells[y*width : (y+1)*width]

				for x := 0; x < width; x++ {
					o := original.Pix[po+x*4 : po+x*4+3]
					r := recompressed.Pix[pr+x*4 : pr+x*4+3]

					var delta uint8
					for c := 0; c < 3; c++ {
						if d := absDiff(o[c], r[c]); d > delta {
							delta = d
						}
					}

					cell := amplify(delta)
					row[x] = cell
					res.sum += uint64(cell)
					res.histogram[cell]++
					if cell > res.max {
						res.max = cell
					}
				}
			}
		}(i, startY, endY)
	}
	wg.Wait()

	m := &ElaMap{
		Width:  width,
		Height: height,
		Cells:  cells,
	}

	var sum uint64
	var maxCell uint8
	for _, res := range results {
		sum += res.sum
		if res.max > maxCell {
			maxCell = res.max
		}
		for v, count := range res.histogram {
			m.Histogram[v] += count
		}
	}

	n := float64(width * height)
	m.MeanELA = float64(sum) / (n * 255)
	m.MaxELA = float64(maxCell) / 255

	weights := make([]float64, len(levels))
	for v, count := range m.Histogram {
		weights[v] = float64(count)
	}
	if width*height > 1 {
		_, std := stat.MeanStdDev(levels, weights)
		m.StdDevELA = clampUnit(std / 255)
	}
	m.P95ELA = stat.Quantile(0.95, stat.Empirical, levels, weights) / 255

	return m
}

// amplify scales a raw channel delta and clamps it to a byte
func amplify(delta uint8) uint8 {
	v := int(delta) * Amplification
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// clampUnit bounds v to [0, 1], mapping NaN to 0
func clampUnit(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
