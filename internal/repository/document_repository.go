package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/model"
	"gorm.io/gorm"
)

// DocumentRepository 申请附件元数据
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.ApplicationDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*model.ApplicationDocument, error) {
	var docs []*model.ApplicationDocument
	err := r.db.WithContext(ctx).Where("application_id = ?", applicationID).Find(&docs).Error
	return docs, err
}

// StorageKeys 返回附件在外部存储中的键
func (r *DocumentRepository) StorageKeys(ctx context.Context, applicationID uuid.UUID) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Model(&model.ApplicationDocument{}).
		Where("application_id = ?", applicationID).
		Pluck("storage_key", &keys).Error
	return keys, err
}
