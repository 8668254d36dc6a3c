package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeIO          ErrorType = "io"
	ErrorTypeAI          ErrorType = "ai"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeSource      ErrorType = "source"
	ErrorTypeForm        ErrorType = "form"
	ErrorTypeSubmission  ErrorType = "submission"
	ErrorTypePersistence ErrorType = "persistence"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for different types
func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewAIError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeAI, code, message, cause)
}

func NewNetworkError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeNetwork, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// NewSourceError reports that no job listings could be obtained. It ends a run.
func NewSourceError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeSource, code, message, cause)
}

// NewFormError reports that an application form could not be described.
func NewFormError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeForm, code, message, cause)
}

func NewSubmissionError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeSubmission, code, message, cause)
}

// NewPersistenceError reports that the outcome log could not be written.
// In-memory outcomes are unaffected.
func NewPersistenceError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypePersistence, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsType reports whether any AppError in err's chain has the given type.
func IsType(err error, typ ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == typ {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger
func NewLogger(level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)

	return &Logger{logger: logger}
}

// With returns a logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "error_cause", appErr.Cause.Error())
		}

		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}

		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
	} else {
		logArgs := append([]any{"error", err.Error()}, args...)
		l.logger.Error(message, logArgs...)
	}
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeFileNotFound       = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable    = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat      = "INVALID_FORMAT"
	ErrCodeAIServiceFailed    = "AI_SERVICE_FAILED"
	ErrCodeAIResponseParse    = "AI_RESPONSE_PARSE_FAILED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeMissingAPIKey      = "MISSING_API_KEY"
	ErrCodeNetworkTimeout     = "NETWORK_TIMEOUT"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeSourceUnavailable  = "SOURCE_UNAVAILABLE"
	ErrCodeFormUnparseable    = "FORM_UNPARSEABLE"
	ErrCodePageLoadFailed     = "PAGE_LOAD_FAILED"
	ErrCodeSubmissionFailed   = "SUBMISSION_FAILED"
	ErrCodePersistenceFailed  = "PERSISTENCE_FAILED"
	ErrCodeBrowserUnavailable = "BROWSER_UNAVAILABLE"
	ErrCodeSecretNotFound     = "SECRET_NOT_FOUND"
)
