package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PropertyRepository 物业及入住台账数据访问层
type PropertyRepository struct {
	db *gorm.DB
}

// NewPropertyRepository 创建物业仓库
func NewPropertyRepository(db *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *PropertyRepository) WithTx(tx *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: tx}
}

func (r *PropertyRepository) Create(ctx context.Context, property *model.Property) error {
	return r.db.WithContext(ctx).Create(property).Error
}

func (r *PropertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Property, error) {
	var property model.Property
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&property).Error; err != nil {
		return nil, err
	}
	return &property, nil
}

// LockByID SELECT ... FOR UPDATE，同一物业的审批在此串行化
func (r *PropertyRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Property, error) {
	var property model.Property
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&property).Error
	if err != nil {
		return nil, err
	}
	return &property, nil
}

func (r *PropertyRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Property, error) {
	var properties []*model.Property
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&properties).Error
	return properties, err
}

func (r *PropertyRepository) ListAll(ctx context.Context) ([]*model.Property, error) {
	var properties []*model.Property
	err := r.db.WithContext(ctx).Find(&properties).Error
	return properties, err
}

// IncrementOccupied occupied_units + 1，已满时不更新并返回 false
func (r *PropertyRepository) IncrementOccupied(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Property{}).
		Where("id = ? AND occupied_units < total_units", id).
		Update("occupied_units", gorm.Expr("occupied_units + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DecrementOccupied occupied_units - 1，不会低于 0
func (r *PropertyRepository) DecrementOccupied(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Property{}).
		Where("id = ? AND occupied_units > 0", id).
		Update("occupied_units", gorm.Expr("occupied_units - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetOccupied 台账对账修复使用
func (r *PropertyRepository) SetOccupied(ctx context.Context, id uuid.UUID, occupied int) error {
	return r.db.WithContext(ctx).Model(&model.Property{}).
		Where("id = ?", id).
		Update("occupied_units", occupied).Error
}
