package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/model"
	"gorm.io/gorm"
)

const paymentBatchSize = 100

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

// CreateBatch 批量写入付款计划
func (r *PaymentRepository) CreateBatch(ctx context.Context, payments []*model.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(payments, paymentBatchSize).Error
}

func (r *PaymentRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("due_date ASC").Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Payment{}).Where("tenant_id = ?", tenantID).Count(&total).Error
	return total, err
}

// MarkOverdue 把到期未付的 pending 记录标记为 overdue
func (r *PaymentRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("status = ? AND due_date < ?", constants.PaymentStatusPending, asOf).
		Update("status", constants.PaymentStatusOverdue)
	return result.RowsAffected, result.Error
}
