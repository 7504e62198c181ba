package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDataUnavailable    = errors.New("data unavailable")
	ErrInvalidFilterValue = errors.New("invalid filter value")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Unavailable builds the DataUnavailable error surfaced when no feed source
// could produce a record set.
func Unavailable(cause error) *AppError {
	return &AppError{
		Err:        ErrDataUnavailable,
		Message:    cause.Error(),
		StatusCode: http.StatusServiceUnavailable,
	}
}

// Body is the structured failure object returned to callers.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Response converts err into the {error, message} failure object.
func Response(err error) Body {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return Body{Error: appErr.Err.Error(), Message: appErr.Message}
	}
	for _, sentinel := range []error{ErrDataUnavailable, ErrInvalidFilterValue, ErrInvalidInput, ErrNotFound, ErrRateLimited, ErrTimeout} {
		if errors.Is(err, sentinel) {
			return Body{Error: sentinel.Error(), Message: err.Error()}
		}
	}
	return Body{Error: ErrInternal.Error(), Message: err.Error()}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidFilterValue):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrDataUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}

}
