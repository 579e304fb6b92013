package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditEvent struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PropertyID uuid.UUID `json:"property_id" gorm:"type:uuid;index"`
	EventType  string    `json:"event_type" gorm:"size:50;not null"`
	Resource   string    `json:"resource" gorm:"size:100;not null"`
	ResourceID string    `json:"resource_id" gorm:"size:255"`
	User       string    `json:"user" gorm:"size:100;not null"`
	Details    JSONMap   `json:"details" gorm:"type:jsonb"`
	Result     string    `json:"result" gorm:"size:20;default:'success'"`
	ErrorMsg   string    `json:"error_msg" gorm:"type:text"`
	Timestamp  time.Time `json:"timestamp" gorm:"autoCreateTime;index"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// AllModels 按依赖顺序列出全部表模型，测试库 AutoMigrate 使用
func AllModels() []interface{} {
	return []interface{}{
		&Property{},
		&RentalApplication{},
		&ApplicationDocument{},
		&Tenant{},
		&Payment{},
		&AuditEvent{},
	}
}
