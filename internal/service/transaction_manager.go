package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/taichu-system/rental-management/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	retryBaseDelay = 20 * time.Millisecond
)

// TransactionManager 事务管理器
type TransactionManager struct {
	db         *gorm.DB
	timeout    time.Duration
	maxRetries int
}

// NewTransactionManager 创建事务管理器；maxRetries 为失败后的额外尝试次数
func NewTransactionManager(db *gorm.DB, timeout time.Duration, maxRetries int) *TransactionManager {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TransactionManager{db: db, timeout: timeout, maxRetries: maxRetries}
}

// ExecuteWithContext 在事务中执行操作，超时后整体回滚
func (t *TransactionManager) ExecuteWithContext(ctx context.Context, operation func(tx *gorm.DB) error) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.db.WithContext(ctx).Transaction(operation)
}

// ExecuteWithRetry 带重试的事务执行，仅对序列化失败、死锁重试，退避时间指数增长
func (t *TransactionManager) ExecuteWithRetry(ctx context.Context, operation func(tx *gorm.DB) error) error {
	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		err := t.ExecuteWithContext(ctx, operation)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableError(err) || attempt == t.maxRetries {
			break
		}

		delay := retryBaseDelay << attempt
		logger.FromContext(ctx).Warn("transaction aborted, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// isRetryableError 序列化失败与死锁可重试；业务错误、唯一约束冲突不重试
func isRetryableError(err error) bool {
	if err == nil || isBusinessError(err) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return strings.Contains(err.Error(), "database is locked")
}

// isUniqueViolation 唯一索引冲突（并发审批的失败方）
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// classifyTransactionError 把事务错误归入业务错误分类
func classifyTransactionError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isBusinessError(err) {
		return err
	}
	if isUniqueViolation(err) {
		return &ConflictError{Kind: ConflictConcurrentApproval}
	}
	return &TransactionFailure{Op: op, Err: err}
}
