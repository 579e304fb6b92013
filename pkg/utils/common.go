package utils

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/utils"
)

const (
	ErrCodeInvalidInput       = utils.ErrCodeInvalidInput
	ErrCodeNotFound           = utils.ErrCodeNotFound
	ErrCodeAlreadyExists      = utils.ErrCodeAlreadyExists
	ErrCodeInternalError      = utils.ErrCodeInternalError
	ErrCodeValidationFailed   = utils.ErrCodeValidationFailed
	ErrCodeUnauthorized       = utils.ErrCodeUnauthorized
	ErrCodeForbidden          = utils.ErrCodeForbidden
	ErrCodeConflict           = utils.ErrCodeConflict
	ErrCodeBadRequest         = utils.ErrCodeBadRequest
	ErrCodeServiceUnavailable = utils.ErrCodeServiceUnavailable
	ErrCodeTimeout            = utils.ErrCodeTimeout
	ErrCodeRateLimited        = utils.ErrCodeRateLimited
	ErrCodeInvalidState       = utils.ErrCodeInvalidState
)

func ParseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return result
}

func ParseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// ParseOptionalUUID 空字符串返回 nil
func ParseOptionalUUID(s string) (*uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
