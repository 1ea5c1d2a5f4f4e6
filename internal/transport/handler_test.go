package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-image-forensics/internal/config"
	"go-image-forensics/internal/detector"
	apperrors "go-image-forensics/internal/errors"
	"go-image-forensics/internal/observer"
	"go-image-forensics/internal/service"
	"go-image-forensics/pkg/models"
	"go-image-forensics/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	handler   http.Handler
	publisher *observer.EventPublisher
}

func newTestServer(t *testing.T, maxBody int64) *testServer {
	t.Helper()
	cfg := &config.Config{
		Host:               "127.0.0.1",
		Port:               "8080",
		RequestTimeout:     10 * time.Second,
		DetectionTimeout:   5 * time.Second,
		MaxRequestBodySize: maxBody,
		DetectionWorkers:   2,
	}

	pool := detector.NewWorkerPool(cfg.DetectionWorkers)
	pool.Start()
	t.Cleanup(pool.Close)

	publisher := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(metrics)

	svc := service.NewDetectionService(detector.NewForgeryDetector(), pool,
		validation.NewPayloadValidatorWithLimit(cfg.MaxRequestBodySize), publisher, metrics, cfg.DetectionTimeout)

	return &testServer{handler: NewHandler(svc, cfg), publisher: publisher}
}

func redJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 48, 48))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 180, 32, 32, 255
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, "upload.jpg")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file here"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/detect/image", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestDetectImage_Multipart(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, multipartRequest(t, "file", redJPEG(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.DetectionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.FakeScore >= 0 && result.FakeScore <= 1)
	assert.True(t, result.MeanELA >= 0 && result.MeanELA <= 1)
	assert.NotNil(t, result.MetadataInfo.SuspiciousTags)
	assert.True(t, strings.HasPrefix(result.ELAPreview, "data:image/"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestDetectImage_RawBody(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/detect/image", bytes.NewReader(redJPEG(t)))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Request-ID", "client-supplied")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "client-supplied", rec.Header().Get("X-Request-ID"))
}

func TestDetectImage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		request func(t *testing.T) *http.Request
		status  int
		kind    string
		message string
	}{
		{
			name:    "missing file",
			request: func(t *testing.T) *http.Request { return multipartRequest(t, "", nil) },
			status:  http.StatusBadRequest,
			kind:    "validation",
			message: "no image",
		},
		{
			name: "empty body",
			request: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/detect/image", nil)
			},
			status:  http.StatusBadRequest,
			kind:    "validation",
			message: "no image",
		},
		{
			name: "text body",
			request: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/detect/image", strings.NewReader("definitely not an image payload"))
			},
			status: http.StatusUnsupportedMediaType,
			kind:   "unsupported_format",
		},
		{
			name: "corrupt jpeg",
			request: func(t *testing.T) *http.Request {
				return multipartRequest(t, "file", []byte{0xFF, 0xD8, 0xFF, 0xD9, 0, 0, 0, 0, 0, 0, 0, 0})
			},
			status: http.StatusBadRequest,
			kind:   "corrupt_image",
		},
		{
			name: "oversize",
			request: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/detect/image", bytes.NewReader(make([]byte, 4096)))
			},
			status: http.StatusRequestEntityTooLarge,
			kind:   "payload_too_large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, 1024)

			rec := httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, tt.request(t))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.Kind)
			assert.NotEmpty(t, resp.RequestID)
			if tt.message != "" {
				assert.Contains(t, resp.Message, tt.message)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, 1024)

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "available", resp.Status)
	assert.Equal(t, Version, resp.Version)
	_, err := time.Parse(time.RFC3339, resp.Time)
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, multipartRequest(t, "file", redJPEG(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	srv.publisher.Flush()

	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.DetectionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalDetections)
	assert.Equal(t, int64(1), stats.SuccessfulDetections)
	assert.Equal(t, 2, stats.Pool.Workers)
	assert.Equal(t, int64(1), stats.Pool.TotalJobs)
}

func TestDetermineStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"app error", apperrors.NewUnsupportedFormatError("nope", nil), http.StatusUnsupportedMediaType},
		{"wrapped app error", fmt.Errorf("outer: %w", apperrors.NewTimeoutError("slow", nil)), http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusGatewayTimeout},
		{"other", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, determineStatusCode(tt.err))
		})
	}
}
