package utils

import (
	"fmt"
	"net/http"
)

type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("error %d: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func WrapError(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

const (
	ErrCodeInvalidInput       = 1001
	ErrCodeNotFound           = 1002
	ErrCodeAlreadyExists      = 1003
	ErrCodeInternalError      = 1004
	ErrCodeValidationFailed   = 1005
	ErrCodeUnauthorized       = 1006
	ErrCodeForbidden          = 1007
	ErrCodeConflict           = 1008
	ErrCodeBadRequest         = 1009
	ErrCodeServiceUnavailable = 1010
	ErrCodeTimeout            = 1011
	ErrCodeRateLimited        = 1012
	ErrCodeInvalidState       = 1013
)

var (
	ErrInvalidInput     = NewError(ErrCodeInvalidInput, "invalid input")
	ErrNotFound         = NewError(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = NewError(ErrCodeAlreadyExists, "resource already exists")
	ErrInternalError    = NewError(ErrCodeInternalError, "internal server error")
	ErrValidationFailed = NewError(ErrCodeValidationFailed, "validation failed")
)

// GetHTTPStatusCode 业务错误码到 HTTP 状态码
func GetHTTPStatusCode(code int) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeValidationFailed, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists, ErrCodeConflict, ErrCodeInvalidState:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
