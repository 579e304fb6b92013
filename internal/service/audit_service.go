package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/logger"
	"github.com/taichu-system/rental-management/internal/model"
	"github.com/taichu-system/rental-management/internal/repository"
	"go.uber.org/zap"
)

// AuditService 审批决策审计，写入失败只记录日志
type AuditService struct {
	auditRepo *repository.AuditRepository
}

func NewAuditService(auditRepo *repository.AuditRepository) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
	}
}

func (s *AuditService) CreateAuditEvent(ctx context.Context, propertyID uuid.UUID, eventType, resource, resourceID, user string, details map[string]interface{}, opErr error) {
	if s == nil || s.auditRepo == nil {
		return
	}

	auditEvent := &model.AuditEvent{
		PropertyID: propertyID,
		EventType:  eventType,
		Resource:   resource,
		ResourceID: resourceID,
		User:       user,
		Details:    details,
		Result:     constants.AuditResultSuccess,
	}
	if opErr != nil {
		auditEvent.Result = constants.AuditResultFailed
		auditEvent.ErrorMsg = opErr.Error()
	}

	if err := s.auditRepo.Create(ctx, auditEvent); err != nil {
		logger.FromContext(ctx).Warn("failed to write audit event",
			zap.String("event_type", eventType),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
	}
}

func (s *AuditService) LogApplicationDecision(ctx context.Context, app *model.RentalApplication, eventType, user string, details map[string]interface{}, opErr error) {
	s.CreateAuditEvent(ctx, app.PropertyID, eventType, constants.ResourceTypeApplication, app.ID.String(), user, details, opErr)
}

func (s *AuditService) LogTenantOperation(ctx context.Context, tenant *model.Tenant, eventType, user string, details map[string]interface{}) {
	s.CreateAuditEvent(ctx, tenant.PropertyID, eventType, constants.ResourceTypeTenant, tenant.ID.String(), user, details, nil)
}

func (s *AuditService) GetAuditLogs(ctx context.Context, resource, resourceID string) ([]*model.AuditEvent, error) {
	return s.auditRepo.ListByResource(ctx, resource, resourceID)
}
