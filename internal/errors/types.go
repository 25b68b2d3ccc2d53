package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of a failure.
type ErrorType string

const (
	// ErrorTypeConfig is a missing or malformed manifest. Fatal before any rendering.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeLoad is a post that cannot be parsed.
	ErrorTypeLoad ErrorType = "load"
	// ErrorTypeRender is a template or output I/O failure.
	ErrorTypeRender ErrorType = "render"
	// ErrorTypeWatch is a failure of the filesystem watch primitive on a root.
	ErrorTypeWatch ErrorType = "watch"
)

// Common error codes.
const (
	ErrCodeConfigNotFound = "ERR_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_CONFIG_INVALID"
	ErrCodeConfigExists   = "ERR_CONFIG_EXISTS"
	ErrCodeReadFailed     = "ERR_READ_FAILED"
	ErrCodeMalformedPost  = "ERR_MALFORMED_POST"
	ErrCodeBadMetadata    = "ERR_BAD_METADATA"
	ErrCodeBadFilename    = "ERR_BAD_FILENAME"
	ErrCodeInvalidDate    = "ERR_INVALID_DATE"
	ErrCodeTemplate       = "ERR_TEMPLATE"
	ErrCodeWriteFailed    = "ERR_WRITE_FAILED"
	ErrCodeWatchRoot      = "ERR_WATCH_ROOT"
)

// Error is a structured error carrying its category, a stable code and the
// path it concerns.
type Error struct {
	Type    ErrorType
	Code    string
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Path != "" {
		parts = append(parts, e.Path+":")
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same type and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithPath sets the path the error refers to.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *Error {
	return &Error{Type: ErrorTypeConfig, Code: code, Message: message, Cause: cause}
}

// NewLoadError creates a post load error.
func NewLoadError(code, path, message string, cause error) *Error {
	return &Error{Type: ErrorTypeLoad, Code: code, Path: path, Message: message, Cause: cause}
}

// NewRenderError creates a render error.
func NewRenderError(code, path, message string, cause error) *Error {
	return &Error{Type: ErrorTypeRender, Code: code, Path: path, Message: message, Cause: cause}
}

// NewWatchError creates a watch error for a tracked root.
func NewWatchError(path string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeWatch,
		Code:    ErrCodeWatchRoot,
		Path:    path,
		Message: "cannot watch root",
		Cause:   cause,
	}
}

// TypeOf returns the category of err, or "" if err is not an *Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool { return TypeOf(err) == ErrorTypeConfig }

// IsLoadError reports whether err is a post load error.
func IsLoadError(err error) bool { return TypeOf(err) == ErrorTypeLoad }

// IsRenderError reports whether err is a render error.
func IsRenderError(err error) bool { return TypeOf(err) == ErrorTypeRender }

// IsWatchError reports whether err is a watch error.
func IsWatchError(err error) bool { return TypeOf(err) == ErrorTypeWatch }

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Logger is the subset of logging.Logger the handler needs.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// Handler logs errors according to their category. The watch loop routes
// every batch failure through it instead of propagating.
type Handler struct {
	logger Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle logs err. A nil err is ignored.
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var e *Error
	if !errors.As(err, &e) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch e.Type {
	case ErrorTypeLoad:
		h.logger.Warn(ctx, err, "Post could not be loaded, batch skipped",
			"code", e.Code,
			"path", e.Path)
	case ErrorTypeRender:
		h.logger.Error(ctx, err, "Render failed",
			"code", e.Code,
			"path", e.Path)
	case ErrorTypeWatch:
		h.logger.Warn(ctx, err, "Root is no longer observed",
			"path", e.Path)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", e.Type,
			"code", e.Code)
	}
}
