package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors carrying the same code and message, so wrapped copies
// made with Wrap still satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error types
var (
	ErrBadRequest         = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized       = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden          = New(http.StatusForbidden, "Forbidden", nil)
	ErrNotFound           = New(http.StatusNotFound, "Not found", nil)
	ErrInternalServer     = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "Service unavailable", nil)
)

// Import pipeline error types
var (
	ErrFileRequired    = New(http.StatusBadRequest, "Excel file is required", nil)
	ErrEmptyFile       = New(http.StatusBadRequest, "Empty Excel file", nil)
	ErrInvalidWorkbook = New(http.StatusBadRequest, "Invalid Excel file", nil)
	ErrFileTooLarge    = New(http.StatusBadRequest, "File too large", nil)
	ErrQueueImport     = New(http.StatusInternalServerError, "Failed to queue import", nil)
	ErrJobNotFound     = New(http.StatusNotFound, "Job not found", nil)
	ErrJobNotFinished  = New(http.StatusConflict, "Job has not finished yet", nil)
	ErrHistoryDisabled = New(http.StatusServiceUnavailable, "Import history is not enabled", nil)
)

// From converts any error into an *Error. Unknown errors become a fresh
// internal server error wrapping the cause.
func From(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.Wrap(err)
}

// Respond writes err to the gin context as {"error": message}.
func Respond(c *gin.Context, err error) {
	appErr := From(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}

// Error middleware for Gin
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			appErr := From(c.Errors.Last().Err)
			c.JSON(appErr.Code, appErr)
			c.Abort()
		}
	}
}
