package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplicationRepository 租赁申请数据访问层
type ApplicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository 创建申请仓库
func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *ApplicationRepository) WithTx(tx *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: tx}
}

// Create 创建申请
func (r *ApplicationRepository) Create(ctx context.Context, app *model.RentalApplication) error {
	return r.db.WithContext(ctx).Create(app).Error
}

// GetByID 根据ID获取申请
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RentalApplication, error) {
	var app model.RentalApplication
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&app).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// LockByID 加行锁读取申请
func (r *ApplicationRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.RentalApplication, error) {
	var app model.RentalApplication
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// FindCompeting 查找同一单元上仍然有效（pending/approved）的其他申请，最早提交的优先
//
// 租约已终止的 approved 申请不再占用单元。
func (r *ApplicationRepository) FindCompeting(ctx context.Context, propertyID uuid.UUID, unitNumber string, excludeID *uuid.UUID) (*model.RentalApplication, error) {
	query := r.db.WithContext(ctx).
		Where("property_id = ? AND unit_number = ?", propertyID, unitNumber).
		Where("status IN ?", []string{constants.ApplicationStatusPending, constants.ApplicationStatusApproved}).
		Where("NOT EXISTS (SELECT 1 FROM tenants WHERE tenants.application_id = rental_applications.id AND tenants.status = ?)", constants.TenantStatusTerminated)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var apps []*model.RentalApplication
	if err := query.Order("submitted_at ASC").Find(&apps).Error; err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	// approved 优先于 pending
	for _, app := range apps {
		if app.Status == constants.ApplicationStatusApproved {
			return app, nil
		}
	}
	return apps[0], nil
}

// ApplicationFilter 申请列表过滤条件
type ApplicationFilter struct {
	PropertyID  *uuid.UUID
	ApplicantID *uuid.UUID
	UnitNumber  string
	Status      string
}

// List 获取申请列表（分页）
func (r *ApplicationRepository) List(ctx context.Context, filter ApplicationFilter, page, pageSize int) ([]*model.RentalApplication, int64, error) {
	var apps []*model.RentalApplication
	var total int64

	query := r.db.WithContext(ctx).Model(&model.RentalApplication{})
	if filter.PropertyID != nil {
		query = query.Where("property_id = ?", *filter.PropertyID)
	}
	if filter.ApplicantID != nil {
		query = query.Where("applicant_id = ?", *filter.ApplicantID)
	}
	if filter.UnitNumber != "" {
		query = query.Where("unit_number = ?", filter.UnitNumber)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("submitted_at DESC").Find(&apps).Error
	return apps, total, err
}

// UpdateIfPending 仅当申请仍为 pending 时更新，返回是否更新成功
func (r *ApplicationRepository) UpdateIfPending(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.RentalApplication{}).
		Where("id = ? AND status = ?", id, constants.ApplicationStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete 删除申请及其附件记录，不触及 tenants / payments
func (r *ApplicationRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	var removedDocs int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("application_id = ?", id).Delete(&model.ApplicationDocument{})
		if result.Error != nil {
			return result.Error
		}
		removedDocs = result.RowsAffected

		result = tx.Delete(&model.RentalApplication{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return removedDocs, err
}
