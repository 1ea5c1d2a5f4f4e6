package detector

// ForgeryDetector is the single entry point used by hosts
type ForgeryDetector interface {
	Detect(data []byte) (DetectionResult, error)
}

// ImageDecoder turns raw bytes into a normalized pixel buffer
type ImageDecoder interface {
	Decode(data []byte) (*ImageBuffer, error)
}

// MetadataScanner extracts metadata and flags anomalies. It never fails.
type MetadataScanner interface {
	Scan(data []byte) MetadataReport
}

// ELAEngine computes the error level map of a decoded image
type ELAEngine interface {
	Analyze(buf *ImageBuffer) (*ElaMap, error)
}

// PreviewEncoder renders an ElaMap as an embeddable data URI
type PreviewEncoder interface {
	Render(m *ElaMap) (string, error)
}
