package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/taichu-system/rental-management/internal/logger"
	"github.com/taichu-system/rental-management/internal/service"
	"github.com/taichu-system/rental-management/pkg/utils"
	"go.uber.org/zap"
)

// failure 决策类接口失败时 data 的内容
type failure struct {
	Success bool                   `json:"success"`
	Kind    string                 `json:"kind,omitempty"`
	Status  string                 `json:"status,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Reason  map[string]interface{} `json:"reason,omitempty"`
}

// HandleServiceError 把服务层错误映射为业务错误码：400/403/404/409/503
func HandleServiceError(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		conflictErr   *service.ConflictError
		txErr         *service.TransactionFailure
	)

	switch {
	case errors.As(err, &validationErr):
		utils.ErrorWithData(c, utils.ErrCodeValidationFailed, failure{Field: validationErr.Field}, "%s", err.Error())
	case errors.Is(err, service.ErrNotFound):
		utils.Error(c, utils.ErrCodeNotFound, "%s", err.Error())
	case errors.Is(err, service.ErrForbidden):
		utils.Error(c, utils.ErrCodeForbidden, "%s", err.Error())
	case errors.As(err, &conflictErr):
		data := failure{Kind: string(conflictErr.Kind), Status: conflictErr.Status}
		if conflictErr.Reason != nil {
			data.Reason = map[string]interface{}{
				"kind":    conflictErr.Reason.Kind(),
				"details": conflictErr.Reason.Details(),
			}
		}
		code := utils.ErrCodeConflict
		if conflictErr.Kind == service.ConflictApplicationNotPending || conflictErr.Kind == service.ConflictTenancyNotActive {
			code = utils.ErrCodeInvalidState
		}
		utils.ErrorWithData(c, code, data, "%s", err.Error())
	case errors.As(err, &txErr):
		logger.FromGin(c).Error("transaction failed", zap.Error(err))
		utils.Error(c, utils.ErrCodeServiceUnavailable, "事务执行失败，请重试")
	case errors.Is(err, context.DeadlineExceeded):
		utils.Error(c, utils.ErrCodeTimeout, "请求超时")
	default:
		logger.FromGin(c).Error("unhandled error", zap.Error(err))
		utils.HandleError(c, err, "内部错误")
	}
}
