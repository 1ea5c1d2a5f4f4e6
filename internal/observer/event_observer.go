package observer

import (
	"context"
	"sync"
	"time"

	"go-image-forensics/pkg/models"

	"github.com/sirupsen/logrus"
)

// DetectionEvent represents a detection lifecycle event
type DetectionEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id"`
	PayloadSize    int                    `json:"payload_size"`
	PayloadHash    string                 `json:"payload_hash,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	FakeScore      float64                `json:"fake_score,omitempty"`
	ErrorKind      string                 `json:"error_kind,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of detection event
type EventType string

const (
	// DetectionStarted when a payload is accepted for detection
	DetectionStarted EventType = "detection_started"
	// DetectionCompleted when detection finishes successfully
	DetectionCompleted EventType = "detection_completed"
	// DetectionFailed when detection fails
	DetectionFailed EventType = "detection_failed"
	// PayloadRejected when a payload is refused before detection
	PayloadRejected EventType = "payload_rejected"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event DetectionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event DetectionEvent)
}

// LoggingObserver logs detection events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles detection events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event DetectionEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"request_id":      event.RequestID,
		"payload_size":    event.PayloadSize,
		"payload_hash":    event.PayloadHash,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}

	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_kind"] = event.ErrorKind
	}
	if event.EventType == DetectionCompleted {
		fields["fake_score"] = event.FakeScore
	}

	for k, v := range event.Metadata {
		fields[k] = v
	}

	switch event.EventType {
	case DetectionStarted:
		o.logger.WithFields(fields).Debug("Image detection started")
	case DetectionCompleted:
		o.logger.WithFields(fields).Info("Image detection completed")
	case DetectionFailed:
		o.logger.WithFields(fields).Error("Image detection failed")
	case PayloadRejected:
		o.logger.WithFields(fields).Warn("Image payload rejected")
	default:
		o.logger.WithFields(fields).Info("Detection event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects metrics from detection events
type MetricsObserver struct {
	mu                   sync.RWMutex
	totalDetections      int64
	successfulDetections int64
	failedDetections     int64
	totalProcessingTime  time.Duration
	totalFakeScore       float64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles detection events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event DetectionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case DetectionStarted:
		o.totalDetections++
	case DetectionCompleted:
		o.successfulDetections++
		o.totalProcessingTime += event.ProcessingTime
		o.totalFakeScore += event.FakeScore
	case DetectionFailed:
		o.failedDetections++
	case PayloadRejected:
		o.totalDetections++
		o.failedDetections++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() models.DetectionStats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	stats := models.DetectionStats{
		TotalDetections:      o.totalDetections,
		SuccessfulDetections: o.successfulDetections,
		FailedDetections:     o.failedDetections,
	}
	if o.successfulDetections > 0 {
		n := float64(o.successfulDetections)
		stats.AvgProcessingTimeMs = float64(o.totalProcessingTime.Milliseconds()) / n
		stats.AvgFakeScore = o.totalFakeScore / n
	}
	return stats
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	wg        sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event DetectionEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify observers concurrently
	for _, observer := range observers {
		p.wg.Add(1)
		go func(obs Observer) {
			defer p.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Flush blocks until every notification sent so far has been handled
func (p *EventPublisher) Flush() {
	p.wg.Wait()
}
