package container

import (
	"fmt"
	"net/http"

	"go-image-forensics/internal/config"
	"go-image-forensics/internal/detector"
	"go-image-forensics/internal/logger"
	"go-image-forensics/internal/observer"
	"go-image-forensics/internal/service"
	"go-image-forensics/internal/transport"
	"go-image-forensics/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config           *config.Config
	forgeryDetector  detector.ForgeryDetector
	workerPool       *detector.WorkerPool
	publisher        *observer.EventPublisher
	metrics          *observer.MetricsObserver
	detectionService service.DetectionService
	handler          http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	// Build dependency graph
	forgeryDetector := detector.NewForgeryDetector()

	workerPool := detector.NewWorkerPool(cfg.DetectionWorkers)
	workerPool.Start()

	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	detectionService := service.NewDetectionService(
		forgeryDetector,
		workerPool,
		validation.NewPayloadValidatorWithLimit(cfg.MaxRequestBodySize),
		publisher,
		metrics,
		cfg.DetectionTimeout,
	)
	handler := transport.NewHandler(detectionService, cfg)

	return &Container{
		config:           cfg,
		forgeryDetector:  forgeryDetector,
		workerPool:       workerPool,
		publisher:        publisher,
		metrics:          metrics,
		detectionService: detectionService,
		handler:          handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// DetectionService returns the detection service
func (c *Container) DetectionService() service.DetectionService {
	return c.detectionService
}

// Close stops the worker pool once queued detections finish and flushes
// pending observer notifications
func (c *Container) Close() {
	c.workerPool.Close()
	c.workerPool.Wait()
	c.publisher.Flush()
}
