package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go-image-forensics/internal/config"
	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/internal/logger"
	"go-image-forensics/internal/service"
	"go-image-forensics/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	uploadField     = "file"
	// multipartOverhead leaves room for boundaries and part headers
	multipartOverhead = 64 * 1024
)

func NewHandler(svc service.DetectionService, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestID(),
		requestSizeLimiter(cfg.MaxRequestBodySize+multipartOverhead),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/stats", detectionStats(svc))
	r.POST("/detect/image", detectImage(svc, cfg))

	return r
}

func detectImage(svc service.DetectionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		id := c.GetString(requestIDKey)

		// Log request start
		logger.WithFields(logrus.Fields{
			"method":       c.Request.Method,
			"path":         c.Request.URL.Path,
			"user_agent":   c.Request.UserAgent(),
			"ip":           c.ClientIP(),
			"request_id":   id,
			"content_type": c.ContentType(),
		}).Info("Processing image detection request")

		data, err := readPayload(c)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid upload", err)
			return
		}

		result, err := svc.Detect(ctx, id, data)
		if err != nil {
			respondError(c, determineStatusCode(err), "image detection failed", err)
			return
		}

		// Log successful completion
		duration := time.Since(startTime)
		logger.WithFields(logrus.Fields{
			"request_id":         id,
			"processing_time_ms": duration.Milliseconds(),
			"fake_score":         result.FakeScore,
			"mean_ela":           result.MeanELA,
			"suspicious_tags":    result.MetadataInfo.SuspiciousTags,
		}).Info("Image detection completed successfully")

		c.JSON(http.StatusOK, result)
	}
}

// readPayload takes the image from the multipart "file" field, or the raw body
// for any other content type. A missing image yields an empty payload.
func readPayload(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile(uploadField)
		if err != nil {
			if isBodyTooLarge(err) {
				return nil, apperrors.NewPayloadTooLargeError("image payload too large", err)
			}
			if errors.Is(err, http.ErrMissingFile) {
				return nil, nil
			}
			return nil, apperrors.NewValidationError("malformed multipart upload", err)
		}
		return readFormFile(header)
	}

	if c.Request.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, apperrors.NewPayloadTooLargeError("image payload too large", err)
		}
		return nil, apperrors.NewValidationError("failed to read request body", err)
	}
	return data, nil
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("failed to open uploaded file", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to read uploaded file", err)
	}
	return data, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func detectionStats(svc service.DetectionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Stats())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "available",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
		"request_id":  c.GetString(requestIDKey),
	}).Error("Request failed")

	response := models.ErrorResponse{
		Error:     http.StatusText(code),
		Message:   message,
		RequestID: c.GetString(requestIDKey),
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		response.Kind = string(appErr.Type)
		response.Message = appErr.Message
		if appErr.Details != "" {
			response.Message = fmt.Sprintf("%s: %s", appErr.Message, appErr.Details)
		}
	}

	c.AbortWithStatusJSON(code, response)
}
