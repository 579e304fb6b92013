package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("参数校验失败")
	ErrNotFound           = errors.New("资源不存在")
	ErrConflict           = errors.New("状态冲突")
	ErrForbidden          = errors.New("无权操作")
	ErrTransactionFailure = errors.New("事务执行失败")
	ErrLedgerDrift        = errors.New("入住台账不一致")
)

// ValidationError 输入不合法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError 资源不存在
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s不存在: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictKind 冲突类型，调用方据此区分"申请已处理"与"单元不可用"
type ConflictKind string

const (
	ConflictApplicationNotPending ConflictKind = "application_not_pending"
	ConflictUnitUnavailable       ConflictKind = "unit_unavailable"
	ConflictConcurrentApproval    ConflictKind = "concurrent_approval"
	ConflictTenancyNotActive      ConflictKind = "tenancy_not_active"
)

// ConflictError 业务状态冲突
type ConflictError struct {
	Kind ConflictKind
	// Status 申请当前状态，仅 ConflictApplicationNotPending 时有值
	Status string
	// Reason 可用性判定的具体原因，仅 ConflictUnitUnavailable 时有值
	Reason UnavailableReason
}

func (e *ConflictError) Error() string {
	switch e.Kind {
	case ConflictApplicationNotPending:
		return fmt.Sprintf("申请已处理，当前状态: %s", e.Status)
	case ConflictUnitUnavailable:
		if e.Reason != nil {
			return "单元不可用: " + e.Reason.Message()
		}
		return "单元不可用"
	case ConflictConcurrentApproval:
		return "该单元已被并发审批占用"
	case ConflictTenancyNotActive:
		return "租约已终止"
	default:
		return "状态冲突"
	}
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ForbiddenError 非物业业主
type ForbiddenError struct {
	UserID     string
	PropertyID string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("用户 %s 不是物业 %s 的业主", e.UserID, e.PropertyID)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// TransactionFailure 存储层中止，未提交任何数据，可安全重试
type TransactionFailure struct {
	Op  string
	Err error
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("事务操作 %s 失败: %v", e.Op, e.Err)
}

func (e *TransactionFailure) Unwrap() error {
	return e.Err
}

func (e *TransactionFailure) Is(target error) bool {
	return target == ErrTransactionFailure
}

// isBusinessError 业务错误原样返回，不包装也不重试
func isBusinessError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden)
}
