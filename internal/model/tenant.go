package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant 租约 - 仅由审批事务创建
//
// idx_tenants_live_unit 是部分唯一索引：同一单元最多一条未终止租约。
type Tenant struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	PropertyID    uuid.UUID  `json:"property_id" gorm:"type:uuid;not null;uniqueIndex:idx_tenants_live_unit,where:status <> 'terminated'"`
	UnitNumber    string     `json:"unit_number" gorm:"size:64;not null;uniqueIndex:idx_tenants_live_unit,where:status <> 'terminated'"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty" gorm:"type:uuid;index;comment:'来源申请'"`
	LeaseStart    time.Time  `json:"lease_start" gorm:"not null"`
	LeaseEnd      time.Time  `json:"lease_end" gorm:"not null"`
	MonthlyRent   float64    `json:"monthly_rent" gorm:"type:numeric(12,2);not null"`
	Status        string     `json:"status" gorm:"size:20;not null;default:'active';index;comment:'状态(active/pending/terminated)'"`
	TerminatedAt  *time.Time `json:"terminated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Tenant) TableName() string {
	return "tenants"
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
