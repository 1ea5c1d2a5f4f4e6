package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-image-forensics/internal/detector"
	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/internal/observer"
	"go-image-forensics/pkg/models"
	"go-image-forensics/pkg/validation"

	"github.com/cespare/xxhash/v2"
)

// DetectionService runs forgery detection on uploaded payloads
type DetectionService interface {
	Detect(ctx context.Context, requestID string, data []byte) (*models.DetectionResult, error)
	Stats() models.DetectionStats
}

// detectionService dispatches detections onto a bounded worker pool
type detectionService struct {
	detector  detector.ForgeryDetector
	pool      *detector.WorkerPool
	validator *validation.PayloadValidator
	publisher observer.Subject
	metrics   *observer.MetricsObserver
	timeout   time.Duration
}

type outcome struct {
	result models.DetectionResult
	err    error
}

// NewDetectionService creates a new detection service. The pool must already
// be started; publisher and metrics may be nil.
func NewDetectionService(
	forgeryDetector detector.ForgeryDetector,
	pool *detector.WorkerPool,
	validator *validation.PayloadValidator,
	publisher observer.Subject,
	metrics *observer.MetricsObserver,
	timeout time.Duration,
) DetectionService {
	return &detectionService{
		detector:  forgeryDetector,
		pool:      pool,
		validator: validator,
		publisher: publisher,
		metrics:   metrics,
		timeout:   timeout,
	}
}

// Detect validates the payload, runs the detector on the worker pool and
// waits for the result or the deadline. A result arriving after the deadline
// is dropped.
func (s *detectionService) Detect(ctx context.Context, requestID string, data []byte) (*models.DetectionResult, error) {
	start := time.Now()
	event := observer.DetectionEvent{
		RequestID:   requestID,
		PayloadSize: len(data),
		PayloadHash: payloadHash(data),
	}

	if err := s.validator.ValidatePayload(data); err != nil {
		s.fail(ctx, event, observer.PayloadRejected, start, err)
		return nil, err
	}

	event.EventType = observer.DetectionStarted
	s.publish(ctx, event)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	submitted := s.pool.SubmitContext(ctx, func() {
		result, err := s.detector.Detect(data)
		done <- outcome{result: result, err: err}
	})
	if !submitted {
		err := contextError(ctx)
		if err == nil {
			err = apperrors.NewUnavailableError("detection service is shutting down", nil)
		}
		s.fail(ctx, event, observer.DetectionFailed, start, err)
		return nil, err
	}

	select {
	case out := <-done:
		if out.err != nil {
			err := mapDetectionError(out.err)
			s.fail(ctx, event, observer.DetectionFailed, start, err)
			return nil, err
		}

		event.EventType = observer.DetectionCompleted
		event.Success = true
		event.FakeScore = out.result.FakeScore
		event.ProcessingTime = time.Since(start)
		event.Metadata = map[string]interface{}{
			"format":          out.result.Image.Format,
			"suspicious_tags": len(out.result.MetadataInfo.SuspiciousTags),
			"ela_stddev":      out.result.StdDevELA,
			"ela_p95":         out.result.P95ELA,
		}
		s.publish(ctx, event)
		return &out.result, nil

	case <-ctx.Done():
		err := contextError(ctx)
		s.fail(ctx, event, observer.DetectionFailed, start, err)
		return nil, err
	}
}

// Stats returns the counters gathered by the metrics observer together with
// the current pool load
func (s *detectionService) Stats() models.DetectionStats {
	var stats models.DetectionStats
	if s.metrics != nil {
		stats = s.metrics.GetMetrics()
	}
	pool := s.pool.GetStats()
	stats.Pool = models.PoolStats{
		Workers:       pool.Workers,
		TotalJobs:     pool.TotalJobs,
		CompletedJobs: pool.CompletedJobs,
		ActiveWorkers: pool.ActiveWorkers,
	}
	return stats
}

func (s *detectionService) fail(ctx context.Context, event observer.DetectionEvent, eventType observer.EventType, start time.Time, err error) {
	event.EventType = eventType
	event.ProcessingTime = time.Since(start)
	event.ErrorMessage = err.Error()

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		event.ErrorKind = string(appErr.Type)
	}
	s.publish(ctx, event)
}

func (s *detectionService) publish(ctx context.Context, event observer.DetectionEvent) {
	if s.publisher == nil {
		return
	}
	// Observers outlive the request
	s.publisher.NotifyObservers(context.WithoutCancel(ctx), event)
}

// payloadHash fingerprints a payload so repeated uploads can be correlated in
// logs without recording the bytes
func payloadHash(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// contextError converts an expired or canceled context into a timeout error
func contextError(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return apperrors.NewTimeoutError("image detection timed out", ctx.Err())
	default:
		return apperrors.NewTimeoutError("image detection canceled", ctx.Err())
	}
}

// mapDetectionError translates detector failures into application errors
func mapDetectionError(err error) error {
	var appErr *apperrors.AppError
	switch detector.KindOf(err) {
	case detector.KindNoPayload:
		appErr = apperrors.NewValidationError("no image provided", err)
	case detector.KindUnsupportedFormat:
		appErr = apperrors.NewUnsupportedFormatError("unsupported image format", err)
	case detector.KindCorruptImage:
		appErr = apperrors.NewCorruptImageError("image could not be decoded", err)
	case detector.KindProcessingFailure:
		appErr = apperrors.NewProcessingError("image processing failed", err)
	default:
		return apperrors.NewInternalError("unexpected detection failure", err)
	}

	var de *detector.DetectionError
	if errors.As(err, &de) {
		appErr = appErr.WithDetails(de.Message)
	}
	return appErr
}
