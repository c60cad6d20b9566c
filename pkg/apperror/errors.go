package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrInternal          = errors.New("internal server error")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Gateway transport failures.
	ErrNetwork           = errors.New("gateway unreachable")
	ErrMalformedResponse = errors.New("malformed gateway response")

	// Server-supplied login/signup codes.
	ErrWrongPassword   = errors.New("wrong password")
	ErrUnknownID       = errors.New("unknown student id")
	ErrPendingApproval = errors.New("approval pending")
	ErrAlreadyExists   = errors.New("already registered")
	ErrAuthFailed      = errors.New("authentication failed")

	// Local gate refusals.
	ErrLocked             = errors.New("content locked")
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// AppError carries a user-facing message next to the sentinel that
// decides the HTTP status.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap builds an AppError whose status comes from the wrapped sentinel.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:    MapErrorToStatus(err),
		Message: message,
		Err:     err,
	}
}

// MapErrorToStatus maps common errors to HTTP status codes
func MapErrorToStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrWrongPassword), errors.Is(err, ErrUnknownID), errors.Is(err, ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrLocked), errors.Is(err, ErrPendingApproval):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimitExceeded), errors.Is(err, ErrSubmissionInFlight):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrMalformedResponse):
		return http.StatusBadGateway
	}
	// Default to internal server error
	return http.StatusInternalServerError
}

// UserMessage returns the message to surface to the user.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	switch {
	case errors.Is(err, ErrNetwork):
		return "서버 연결 실패. 인터넷 상태를 확인하거나 잠시 후 다시 시도해주세요."
	case errors.Is(err, ErrMalformedResponse):
		return "서버 응답을 해석할 수 없습니다. 잠시 후 다시 시도해주세요."
	case errors.Is(err, ErrLocked):
		return "로그인 후 선생님의 승인을 받으면 볼 수 있습니다."
	case errors.Is(err, ErrSubmissionInFlight):
		return "이전 글을 전송하는 중입니다. 잠시만 기다려주세요."
	}
	return err.Error()
}
