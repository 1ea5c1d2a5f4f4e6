package validation

import (
	"fmt"

	apperrors "go-image-forensics/internal/errors"
)

// DefaultMaxPayloadSize is used when no limit is configured
const DefaultMaxPayloadSize int64 = 10 * 1024 * 1024

// PayloadValidator handles upload validation logic
type PayloadValidator struct {
	maxSize int64
}

// NewPayloadValidator creates a new payload validator with default settings
func NewPayloadValidator() *PayloadValidator {
	return &PayloadValidator{
		maxSize: DefaultMaxPayloadSize,
	}
}

// NewPayloadValidatorWithLimit creates a payload validator with a custom size limit
func NewPayloadValidatorWithLimit(maxSize int64) *PayloadValidator {
	if maxSize <= 0 {
		maxSize = DefaultMaxPayloadSize
	}
	return &PayloadValidator{
		maxSize: maxSize,
	}
}

// MaxSize returns the configured limit in bytes
func (v *PayloadValidator) MaxSize() int64 {
	return v.maxSize
}

// ValidatePayload checks an image payload before it reaches the detector.
// The content itself is never inspected here.
func (v *PayloadValidator) ValidatePayload(data []byte) error {
	if len(data) == 0 {
		return apperrors.NewValidationError("no image provided", nil)
	}
	return v.ValidateSize(int64(len(data)))
}

// ValidateSize checks a declared or measured payload length
func (v *PayloadValidator) ValidateSize(size int64) error {
	if size > v.maxSize {
		return apperrors.NewPayloadTooLargeError("image payload too large", nil).
			WithDetails(fmt.Sprintf("payload is %d bytes, limit is %d", size, v.maxSize))
	}
	return nil
}
