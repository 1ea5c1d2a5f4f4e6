package config

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	DetectionTimeout   time.Duration
	MaxRequestBodySize int64
	DetectionWorkers   int
	LogLevel           string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	requestTimeout, err := parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	detectionTimeout, err := parseDurationOrDefault("DETECTION_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	maxBody, err := parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024) // 10MB
	if err != nil {
		return nil, err
	}
	workers, err := parseIntOrDefault("DETECTION_WORKERS", int64(runtime.NumCPU()))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     requestTimeout,
		DetectionTimeout:   detectionTimeout,
		MaxRequestBodySize: maxBody,
		DetectionWorkers:   int(workers),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.DetectionWorkers <= 0 {
		return nil, fmt.Errorf("DETECTION_WORKERS must be > 0 (got %d)", cfg.DetectionWorkers)
	}
	if cfg.DetectionTimeout > cfg.RequestTimeout {
		return nil, fmt.Errorf("DETECTION_TIMEOUT (%s) must not exceed REQUEST_TIMEOUT (%s)",
			cfg.DetectionTimeout, cfg.RequestTimeout)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationOrDefault returns defaultValue when key is unset and an error
// when it is set to anything other than a positive duration
func parseDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("invalid %s: %q is not a positive duration", key, value)
	}
	return duration, nil
}

func parseIntOrDefault(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", key, value)
	}
	return intValue, nil
}
