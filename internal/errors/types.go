package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	ErrorTypeConfig ErrorType = "CONFIG_ERROR"
	ErrorTypeInit   ErrorType = "INIT_ERROR"
	ErrorTypeExport ErrorType = "EXPORT_FAILURE"
)

// AppError represents a structured error for the application
type AppError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	ErrorCode string    `json:"errorCode"`
	// Signal is the telemetry signal the error belongs to, if any.
	Signal   string `json:"signal,omitempty"`
	Recovery string `json:"recoverySuggestion,omitempty"`
	Err      error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if e.Signal != "" {
		msg = fmt.Sprintf("%s: %s", e.Signal, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the application-specific error code
func (e *AppError) Code() string {
	return e.ErrorCode
}

// RecoverySuggestion returns the suggestion on how to recover from the error
func (e *AppError) RecoverySuggestion() string {
	return e.Recovery
}

// IsFatal reports whether the error must stop the process from serving.
// Export failures are contained in the export layer and never are.
func (e *AppError) IsFatal() bool {
	switch e.Type {
	case ErrorTypeConfig, ErrorTypeInit:
		return true
	default:
		return false
	}
}

// NewConfigError creates an error for malformed exporter or transport configuration.
func NewConfigError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:      ErrorTypeConfig,
		Message:   message,
		ErrorCode: errorCode,
		Recovery:  suggestion,
	}
}

// NewInitError creates an error for a failed telemetry pipeline assembly.
func NewInitError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:      ErrorTypeInit,
		Message:   message,
		ErrorCode: errorCode,
		Recovery:  "Check the OTLP endpoint and license key configuration.",
		Err:       err,
	}
}

// NewExportFailure creates an error for a failed send to the collector.
func NewExportFailure(signal string, message string, err error) *AppError {
	return &AppError{
		Type:      ErrorTypeExport,
		Message:   message,
		ErrorCode: "EXPORT_FAILED",
		Signal:    signal,
		Err:       err,
	}
}

// WithSignal returns a copy of the error attributed to the given signal.
func (e *AppError) WithSignal(signal string) *AppError {
	c := *e
	c.Signal = signal
	return &c
}

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	for appErr != nil {
		if appErr.Type == t {
			return true
		}
		if !stderrors.As(appErr.Err, &appErr) {
			return false
		}
	}
	return false
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	return isType(err, ErrorTypeConfig)
}

// IsInitError reports whether err wraps an InitError.
func IsInitError(err error) bool {
	return isType(err, ErrorTypeInit)
}

// IsExportFailure reports whether err wraps an ExportFailure.
func IsExportFailure(err error) bool {
	return isType(err, ErrorTypeExport)
}
