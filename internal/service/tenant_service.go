package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/logger"
	"github.com/taichu-system/rental-management/internal/metrics"
	"github.com/taichu-system/rental-management/internal/model"
	"github.com/taichu-system/rental-management/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TenantService 租约与付款记录的只读查询，以及逾期标记
type TenantService struct {
	tenantRepo  *repository.TenantRepository
	paymentRepo *repository.PaymentRepository
	metrics     *metrics.Metrics
}

func NewTenantService(tenantRepo *repository.TenantRepository, paymentRepo *repository.PaymentRepository, m *metrics.Metrics) *TenantService {
	return &TenantService{
		tenantRepo:  tenantRepo,
		paymentRepo: paymentRepo,
		metrics:     m,
	}
}

func (s *TenantService) GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "租约", ID: id.String()}
	}
	return tenant, err
}

func (s *TenantService) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*model.Tenant, error) {
	return s.tenantRepo.ListByProperty(ctx, propertyID)
}

// ListPayments 按到期日升序返回付款计划
func (s *TenantService) ListPayments(ctx context.Context, tenantID uuid.UUID) ([]*model.Payment, error) {
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.paymentRepo.ListByTenant(ctx, tenantID)
}

// MarkOverdue 到期未付的 pending 记录标记为 overdue
func (s *TenantService) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	marked, err := s.paymentRepo.MarkOverdue(ctx, asOf)
	if err != nil {
		return 0, err
	}
	s.metrics.AddOverdue(marked)
	if marked > 0 {
		logger.FromContext(ctx).Info("payments marked overdue", zap.Int64("count", marked), zap.Time("as_of", asOf))
	}
	return marked, nil
}
