package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/middleware"
	"github.com/taichu-system/rental-management/internal/service"
	"github.com/taichu-system/rental-management/pkg/utils"
)

type AuditHandler struct {
	auditService *service.AuditService
	registry     *service.ApplicationRegistry
	tenants      *service.TenantService
	properties   *service.PropertyService
}

type AuditEventResponse struct {
	ID         uuid.UUID              `json:"id"`
	EventType  string                 `json:"event_type"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id"`
	User       string                 `json:"user"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Result     string                 `json:"result"`
	ErrorMsg   string                 `json:"error_msg,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

func NewAuditHandler(auditService *service.AuditService, registry *service.ApplicationRegistry, tenants *service.TenantService, properties *service.PropertyService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		registry:     registry,
		tenants:      tenants,
		properties:   properties,
	}
}

// ListApplicationAudit 申请的决策记录，仅业主
func (h *AuditHandler) ListApplicationAudit(c *gin.Context) {
	id, err := utils.ParseUUID(c.Param("id"))
	if err != nil {
		utils.Error(c, utils.ErrCodeInvalidInput, "无效的申请ID")
		return
	}
	app, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.list(c, app.PropertyID, constants.ResourceTypeApplication, id.String())
}

// ListTenantAudit 租约操作记录，仅业主
func (h *AuditHandler) ListTenantAudit(c *gin.Context) {
	id, err := utils.ParseUUID(c.Param("id"))
	if err != nil {
		utils.Error(c, utils.ErrCodeInvalidInput, "无效的租约ID")
		return
	}
	tenant, err := h.tenants.GetTenant(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.list(c, tenant.PropertyID, constants.ResourceTypeTenant, id.String())
}

func (h *AuditHandler) list(c *gin.Context, propertyID uuid.UUID, resource, resourceID string) {
	userID, role, _ := middleware.CurrentUser(c)
	if err := h.properties.AuthorizeOwner(c.Request.Context(), userID, role, propertyID); err != nil {
		HandleServiceError(c, err)
		return
	}

	events, err := h.auditService.GetAuditLogs(c.Request.Context(), resource, resourceID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	responses := make([]*AuditEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, &AuditEventResponse{
			ID:         event.ID,
			EventType:  event.EventType,
			Resource:   event.Resource,
			ResourceID: event.ResourceID,
			User:       event.User,
			Details:    event.Details,
			Result:     event.Result,
			ErrorMsg:   event.ErrorMsg,
			Timestamp:  event.Timestamp.Format(time.RFC3339),
		})
	}

	utils.Success(c, http.StatusOK, gin.H{
		"events": responses,
		"total":  len(responses),
	})
}
