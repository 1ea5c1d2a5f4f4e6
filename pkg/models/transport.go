package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is returned by the liveness probe
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// DetectionStats summarizes detections served since startup
type DetectionStats struct {
	TotalDetections      int64     `json:"total_detections"`
	SuccessfulDetections int64     `json:"successful_detections"`
	FailedDetections     int64     `json:"failed_detections"`
	AvgProcessingTimeMs  float64   `json:"avg_processing_time_ms"`
	AvgFakeScore         float64   `json:"avg_fake_score"`
	Pool                 PoolStats `json:"pool"`
}

// PoolStats reports worker pool load
type PoolStats struct {
	Workers       int   `json:"workers"`
	TotalJobs     int64 `json:"total_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	ActiveWorkers int64 `json:"active_workers"`
}
