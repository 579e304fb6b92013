package repository

import (
	"context"

	"github.com/taichu-system/rental-management/internal/model"
	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, auditEvent *model.AuditEvent) error {
	return r.db.WithContext(ctx).Create(auditEvent).Error
}

func (r *AuditRepository) ListByResource(ctx context.Context, resource, resourceID string) ([]*model.AuditEvent, error) {
	var events []*model.AuditEvent
	err := r.db.WithContext(ctx).
		Where("resource = ? AND resource_id = ?", resource, resourceID).
		Order("timestamp DESC").
		Find(&events).Error
	return events, err
}
