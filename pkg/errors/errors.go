package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// Input rejected before any persistence or network attempt
	ErrTypeValidation ErrorType = "validation"
	// Durable store failures (I/O, quota, corruption)
	ErrTypeStorage ErrorType = "storage"
	// Analysis service failures, recovered by the fallback record
	ErrTypeAnalysis ErrorType = "analysis"
	// Destructive actions attempted without confirmation
	ErrTypeConfirmation ErrorType = "confirmation"
	// Missing records
	ErrTypeNotFound ErrorType = "not_found"
	// Admin mode required
	ErrTypeForbidden ErrorType = "forbidden"
	// Configuration errors
	ErrTypeConfig ErrorType = "configuration"
	// Generic application errors
	ErrTypeApp ErrorType = "application"
)

// AppError represents a structured application error
type AppError struct {
	Type        ErrorType              `json:"type"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	UserMessage string                 `json:"userMessage"`
	InternalErr error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.InternalErr != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.InternalErr)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *AppError) Unwrap() error {
	return e.InternalErr
}

// Is matches any AppError carrying the same type and code, so copies made by
// WithContext still compare equal to the predefined errors below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

func (e *AppError) clone() *AppError {
	c := *e
	if e.Context != nil {
		c.Context = make(map[string]interface{}, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	return &c
}

// WithContext returns a copy of the error with an extra context entry
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	c := e.clone()
	if c.Context == nil {
		c.Context = make(map[string]interface{})
	}
	c.Context[key] = value
	return c
}

// WithUserMessage returns a copy with a user-friendly message
func (e *AppError) WithUserMessage(msg string) *AppError {
	c := e.clone()
	c.UserMessage = msg
	return c
}

// WithCause returns a copy wrapping err
func (e *AppError) WithCause(err error) *AppError {
	c := e.clone()
	c.InternalErr = err
	return c
}

// Log logs the error with its context as structured fields
func (e *AppError) Log() {
	ev := log.Error().
		Str("type", string(e.Type)).
		Str("code", e.Code)
	if e.InternalErr != nil {
		ev = ev.Err(e.InternalErr)
	}
	if len(e.Context) > 0 {
		ev = ev.Fields(e.Context)
	}
	ev.Msg(e.Message)
}

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:        errType,
		Code:        code,
		Message:     message,
		InternalErr: err,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Predefined errors for common scenarios
var (
	ErrNoPhotos = New(ErrTypeValidation, "NO_PHOTOS", "at least one photo is required").
			WithUserMessage("Please add at least one photo")

	ErrInvalidItem = New(ErrTypeValidation, "INVALID_ITEM", "item failed validation").
			WithUserMessage("Some fields need attention before this item can be saved")

	ErrInvalidRequest = New(ErrTypeValidation, "INVALID_REQUEST", "malformed request").
				WithUserMessage("The request could not be understood")

	ErrItemNotFound = New(ErrTypeNotFound, "ITEM_NOT_FOUND", "item not found").
			WithUserMessage("The requested item could not be found")

	ErrNoPendingDraft = New(ErrTypeNotFound, "NO_PENDING_DRAFT", "no draft is waiting to be resumed").
				WithUserMessage("There is no unfinished item to resume")

	ErrPhotoNotFound = New(ErrTypeNotFound, "PHOTO_NOT_FOUND", "photo not found").
				WithUserMessage("The requested photo could not be found")

	ErrConfirmationRequired = New(ErrTypeConfirmation, "CONFIRMATION_REQUIRED", "destructive action requires confirmation").
				WithUserMessage("Are you sure you want to delete this listing?")

	ErrAdminRequired = New(ErrTypeForbidden, "ADMIN_REQUIRED", "admin mode is required").
				WithUserMessage("Switch to admin mode to manage listings")

	ErrStoreIO = New(ErrTypeStorage, "STORE_IO", "storage operation failed").
			WithUserMessage("Unable to save changes. Check disk space and permissions")

	ErrCorruptRecord = New(ErrTypeStorage, "CORRUPT_RECORD", "stored record is corrupted").
				WithUserMessage("A stored listing could not be read")

	ErrSchemaTooNew = New(ErrTypeStorage, "SCHEMA_TOO_NEW", "store was written by a newer version").
			WithUserMessage("This data was created by a newer version of the app")

	ErrUnsupported = New(ErrTypeStorage, "UNSUPPORTED", "operation not supported by this store").
			WithUserMessage("This action is not available with the configured storage")

	ErrAnalysisUnavailable = New(ErrTypeAnalysis, "ANALYSIS_UNAVAILABLE", "analysis service not configured")

	ErrAnalysisMalformed = New(ErrTypeAnalysis, "ANALYSIS_MALFORMED", "analysis response malformed")

	ErrConfigInvalid = New(ErrTypeConfig, "CONFIG_INVALID", "invalid configuration")
)
