package models

// DetectionResult is the report returned for a single image payload.
// It carries no timestamps or request identifiers so that identical input
// bytes always serialize to identical JSON.
type DetectionResult struct {
	FakeScore    float64      `json:"fake_score"`
	MeanELA      float64      `json:"mean_ela"`
	MaxELA       float64      `json:"max_ela"`
	StdDevELA    float64      `json:"ela_stddev"`
	P95ELA       float64      `json:"ela_p95"`
	MetadataInfo MetadataInfo `json:"metadata_info"`
	ELAPreview   string       `json:"ela_preview"`
	Image        ImageInfo    `json:"image"`
}

// MetadataInfo exposes the metadata scan to callers
type MetadataInfo struct {
	SuspiciousTags []string          `json:"suspicious_tags"`
	Tags           map[string]string `json:"tags"`
	Container      string            `json:"container"`
	HasGPS         bool              `json:"has_gps"`
}

// ImageInfo describes the decoded source image
type ImageInfo struct {
	Format   string `json:"format"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
