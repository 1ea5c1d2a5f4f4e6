package detector

import (
	"go-image-forensics/pkg/models"

	"golang.org/x/sync/errgroup"
)

// forgeryDetector implements ForgeryDetector and orchestrates all components
type forgeryDetector struct {
	decoder ImageDecoder
	scanner MetadataScanner
	ela     ELAEngine
	preview PreviewEncoder
}

// NewForgeryDetector creates a detector with the default components
func NewForgeryDetector() ForgeryDetector {
	return NewForgeryDetectorWith(NewImageDecoder(), NewMetadataScanner(), NewELAEngine(), NewPreviewEncoder())
}

// NewForgeryDetectorWith assembles a detector from explicit components
func NewForgeryDetectorWith(decoder ImageDecoder, scanner MetadataScanner, ela ELAEngine, preview PreviewEncoder) ForgeryDetector {
	return &forgeryDetector{
		decoder: decoder,
		scanner: scanner,
		ela:     ela,
		preview: preview,
	}
}

// Detect runs the full pipeline on one payload. The metadata scan and the
// error level analysis run concurrently once the image has decoded.
func (d *forgeryDetector) Detect(data []byte) (DetectionResult, error) {
	if len(data) == 0 {
		return DetectionResult{}, newDetectionError(KindNoPayload, StageInput, "image payload is empty", nil)
	}

	buf, err := d.decoder.Decode(data)
	if err != nil {
		return DetectionResult{}, asDetectionError(err, KindCorruptImage, StageDecode)
	}

	var (
		report MetadataReport
		elaMap *ElaMap
		g      errgroup.Group
	)
	g.Go(func() error {
		report = d.scanner.Scan(data)
		return nil
	})
	g.Go(func() error {
		m, err := d.ela.Analyze(buf)
		if err != nil {
			return err
		}
		elaMap = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return DetectionResult{}, asDetectionError(err, KindProcessingFailure, StageELA)
	}

	preview, err := d.preview.Render(elaMap)
	if err != nil {
		return DetectionResult{}, asDetectionError(err, KindProcessingFailure, StagePreview)
	}

	return DetectionResult{
		FakeScore:    Fuse(elaMap.MeanELA, report.SuspiciousTags),
		MeanELA:      elaMap.MeanELA,
		MaxELA:       elaMap.MaxELA,
		StdDevELA:    elaMap.StdDevELA,
		P95ELA:       elaMap.P95ELA,
		MetadataInfo: metadataInfo(report),
		ELAPreview:   preview,
		Image: models.ImageInfo{
			Format:   string(buf.Format),
			MIMEType: buf.MIMEType,
			Width:    buf.Width,
			Height:   buf.Height,
		},
	}, nil
}

// metadataInfo copies the report so the result never aliases scanner state
func metadataInfo(report MetadataReport) models.MetadataInfo {
	tags := make(map[string]string, len(report.Tags))
	for k, v := range report.Tags {
		tags[k] = v
	}
	suspicious := make([]string, len(report.SuspiciousTags))
	copy(suspicious, report.SuspiciousTags)

	return models.MetadataInfo{
		SuspiciousTags: suspicious,
		Tags:           tags,
		Container:      string(report.Container),
		HasGPS:         report.HasGPS,
	}
}

// asDetectionError passes DetectionErrors through and wraps anything else
func asDetectionError(err error, kind ErrorKind, stage Stage) error {
	if KindOf(err) != "" {
		return err
	}
	return newDetectionError(kind, stage, "unexpected component failure", err)
}
