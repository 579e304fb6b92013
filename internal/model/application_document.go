package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApplicationDocument 申请附件元数据，文件本体在外部存储
type ApplicationDocument struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ApplicationID uuid.UUID `json:"application_id" gorm:"type:uuid;not null;index"`
	FileName      string    `json:"file_name" gorm:"size:255;not null"`
	StorageKey    string    `json:"storage_key" gorm:"size:512;not null"`
	ContentType   string    `json:"content_type" gorm:"size:100"`
	UploadedAt    time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
}

func (ApplicationDocument) TableName() string {
	return "application_documents"
}

func (d *ApplicationDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
