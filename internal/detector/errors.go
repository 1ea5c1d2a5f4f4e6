package detector

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failures the detector reports
type ErrorKind string

const (
	KindNoPayload         ErrorKind = "no_payload"
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindCorruptImage      ErrorKind = "corrupt_image"
	KindProcessingFailure ErrorKind = "processing_failure"
)

// Stage names the pipeline step that failed
type Stage string

const (
	StageInput   Stage = "input"
	StageDecode  Stage = "decode"
	StageELA     Stage = "ela"
	StagePreview Stage = "preview"
)

// DetectionError describes why a detection could not produce a report
type DetectionError struct {
	Kind    ErrorKind
	Stage   Stage
	Message string
	Cause   error
}

// Sentinels for errors.Is; only the Kind is compared.
var (
	ErrNoPayload         = &DetectionError{Kind: KindNoPayload, Stage: StageInput, Message: "no image payload"}
	ErrUnsupportedFormat = &DetectionError{Kind: KindUnsupportedFormat, Stage: StageDecode, Message: "unsupported image format"}
	ErrCorruptImage      = &DetectionError{Kind: KindCorruptImage, Stage: StageDecode, Message: "corrupt image"}
	ErrProcessingFailure = &DetectionError{Kind: KindProcessingFailure, Message: "processing failure"}
)

// Error implements the error interface
func (e *DetectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Kind, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
}

// Unwrap returns the underlying error
func (e *DetectionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DetectionError of the same kind
func (e *DetectionError) Is(target error) bool {
	t, ok := target.(*DetectionError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newDetectionError(kind ErrorKind, stage Stage, message string, cause error) *DetectionError {
	return &DetectionError{
		Kind:    kind,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// KindOf extracts the ErrorKind from err, or "" if err is not a DetectionError
func KindOf(err error) ErrorKind {
	var de *DetectionError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// StageOf extracts the failing Stage from err, or "" if err is not a DetectionError
func StageOf(err error) Stage {
	var de *DetectionError
	if errors.As(err, &de) {
		return de.Stage
	}
	return ""
}
