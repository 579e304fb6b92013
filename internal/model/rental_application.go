package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RentalApplication 租赁申请
type RentalApplication struct {
	ID                  uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	PropertyID          uuid.UUID  `json:"property_id" gorm:"type:uuid;not null;index:idx_applications_unit;comment:'物业ID'"`
	UnitNumber          string     `json:"unit_number" gorm:"size:64;not null;index:idx_applications_unit;comment:'单元号'"`
	ApplicantID         uuid.UUID  `json:"applicant_id" gorm:"type:uuid;not null;index"`
	MonthlyRent         float64    `json:"monthly_rent" gorm:"type:numeric(12,2);not null"`
	MoveInDate          time.Time  `json:"move_in_date" gorm:"not null"`
	Status              string     `json:"status" gorm:"size:20;not null;default:'pending';index;comment:'状态(pending/approved/rejected)'"`
	RejectionReason     string     `json:"rejection_reason,omitempty" gorm:"type:text"`
	LeaseDurationMonths *int       `json:"lease_duration_months,omitempty" gorm:"comment:'审批时确定的租期(月)'"`
	ApprovalKey         *string    `json:"-" gorm:"size:128;comment:'审批幂等键'"`
	DecidedBy           *uuid.UUID `json:"decided_by,omitempty" gorm:"type:uuid"`
	SubmittedAt         time.Time  `json:"submitted_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (RentalApplication) TableName() string {
	return "rental_applications"
}

func (a *RentalApplication) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
