package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Property 物业 - 同时承载入住台账（total_units / occupied_units）
type Property struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID       uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index;comment:'业主ID'"`
	Name          string    `json:"name" gorm:"size:255;not null"`
	Address       string    `json:"address" gorm:"type:text"`
	TotalUnits    int       `json:"total_units" gorm:"not null;default:0;comment:'总单元数'"`
	OccupiedUnits int       `json:"occupied_units" gorm:"not null;default:0;comment:'已入住单元数'"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Property) TableName() string {
	return "properties"
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// AvailableUnits 剩余可租单元
func (p *Property) AvailableUnits() int {
	return p.TotalUnits - p.OccupiedUnits
}

// AtCapacity 是否已满租
func (p *Property) AtCapacity() bool {
	return p.OccupiedUnits >= p.TotalUnits
}
