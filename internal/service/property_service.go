package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/model"
	"github.com/taichu-system/rental-management/internal/repository"
	"gorm.io/gorm"
)

// PropertyService 物业管理与业主鉴权
type PropertyService struct {
	propertyRepo *repository.PropertyRepository
	audit        *AuditService
}

func NewPropertyService(propertyRepo *repository.PropertyRepository, audit *AuditService) *PropertyService {
	return &PropertyService{propertyRepo: propertyRepo, audit: audit}
}

// CreateProperty 新建物业，occupied_units 从 0 开始
func (s *PropertyService) CreateProperty(ctx context.Context, ownerID uuid.UUID, name, address string, totalUnits int) (*model.Property, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newValidationError("name", "物业名称不能为空")
	}
	if totalUnits <= 0 {
		return nil, newValidationError("total_units", "总单元数必须为正整数")
	}

	property := &model.Property{
		OwnerID:    ownerID,
		Name:       name,
		Address:    address,
		TotalUnits: totalUnits,
	}
	if err := s.propertyRepo.Create(ctx, property); err != nil {
		return nil, err
	}

	s.audit.CreateAuditEvent(ctx, property.ID, constants.EventTypeCreate, constants.ResourceTypeProperty, property.ID.String(), ownerID.String(), map[string]interface{}{
		"total_units": totalUnits,
	}, nil)
	return property, nil
}

func (s *PropertyService) GetProperty(ctx context.Context, id uuid.UUID) (*model.Property, error) {
	property, err := s.propertyRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "物业", ID: id.String()}
	}
	return property, err
}

func (s *PropertyService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Property, error) {
	return s.propertyRepo.ListByOwner(ctx, ownerID)
}

// AuthorizeOwner 只有物业业主（或管理员）可以对其申请做决定
func (s *PropertyService) AuthorizeOwner(ctx context.Context, userID uuid.UUID, role string, propertyID uuid.UUID) error {
	property, err := s.GetProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	if role == constants.RoleAdmin || property.OwnerID == userID {
		return nil
	}
	return &ForbiddenError{UserID: userID.String(), PropertyID: propertyID.String()}
}
