package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment 租金应付记录，审批时按租期整批生成
type Payment struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index"`
	DueDate   time.Time `json:"due_date" gorm:"not null;index"`
	Amount    float64   `json:"amount" gorm:"type:numeric(12,2);not null"`
	Status    string    `json:"status" gorm:"size:20;not null;default:'pending';index"`
	LateFee   float64   `json:"late_fee" gorm:"type:numeric(12,2);not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
