package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/model"
	"gorm.io/gorm"
)

// liveTenantStatuses 占用单元的租约状态
var liveTenantStatuses = []string{constants.TenantStatusActive, constants.TenantStatusPending}

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) WithTx(tx *gorm.DB) *TenantRepository {
	return &TenantRepository{db: tx}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *model.Tenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *TenantRepository) GetByApplicationID(ctx context.Context, applicationID uuid.UUID) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := r.db.WithContext(ctx).Where("application_id = ?", applicationID).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// FindLiveByUnit 查找占用该单元的 active/pending 租约
func (r *TenantRepository) FindLiveByUnit(ctx context.Context, propertyID uuid.UUID, unitNumber string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND unit_number = ? AND status IN ?", propertyID, unitNumber, liveTenantStatuses).
		First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *TenantRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*model.Tenant, error) {
	var tenants []*model.Tenant
	err := r.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("lease_start DESC").Find(&tenants).Error
	return tenants, err
}

// CountLiveByProperty 按物业统计 active/pending 租约数
func (r *TenantRepository) CountLiveByProperty(ctx context.Context) (map[uuid.UUID]int, error) {
	var rows []struct {
		PropertyID uuid.UUID
		Total      int
	}
	err := r.db.WithContext(ctx).Model(&model.Tenant{}).
		Select("property_id, COUNT(*) AS total").
		Where("status IN ?", liveTenantStatuses).
		Group("property_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		counts[row.PropertyID] = row.Total
	}
	return counts, nil
}

// Terminate 仅终止仍在占用的租约
func (r *TenantRepository) Terminate(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Tenant{}).
		Where("id = ? AND status IN ?", id, liveTenantStatuses).
		Updates(map[string]interface{}{
			"status":        constants.TenantStatusTerminated,
			"terminated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
