package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taichu-system/rental-management/internal/middleware"
	"github.com/taichu-system/rental-management/internal/model"
	"github.com/taichu-system/rental-management/internal/service"
	"github.com/taichu-system/rental-management/pkg/utils"
)

// TenantHandler 租约与付款计划
type TenantHandler struct {
	tenants    *service.TenantService
	transition *service.TransitionService
	properties *service.PropertyService
}

func NewTenantHandler(tenants *service.TenantService, transition *service.TransitionService, properties *service.PropertyService) *TenantHandler {
	return &TenantHandler{
		tenants:    tenants,
		transition: transition,
		properties: properties,
	}
}

func (h *TenantHandler) GetTenant(c *gin.Context) {
	tenant, ok := h.loadVisible(c)
	if !ok {
		return
	}
	utils.Success(c, http.StatusOK, tenant)
}

// ListPayments 付款计划，按到期日升序
func (h *TenantHandler) ListPayments(c *gin.Context) {
	tenant, ok := h.loadVisible(c)
	if !ok {
		return
	}

	payments, err := h.tenants.ListPayments(c.Request.Context(), tenant.ID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, gin.H{
		"tenant_id": tenant.ID,
		"payments":  payments,
	})
}

// TerminateTenancy 终止租约，仅业主
func (h *TenantHandler) TerminateTenancy(c *gin.Context) {
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

	userID, role, _ := middleware.CurrentUser(c)
	if err := h.properties.AuthorizeOwner(c.Request.Context(), userID, role, tenant.PropertyID); err != nil {
		HandleServiceError(c, err)
		return
	}

	terminated, err := h.transition.TerminateTenancy(c.Request.Context(), id, &userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, terminated)
}

// loadVisible 租客本人、物业业主或管理员
func (h *TenantHandler) loadVisible(c *gin.Context) (*model.Tenant, bool) {
	id, err := utils.ParseUUID(c.Param("id"))
	if err != nil {
		utils.Error(c, utils.ErrCodeInvalidInput, "无效的租约ID")
		return nil, false
	}

	tenant, err := h.tenants.GetTenant(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return nil, false
	}

	userID, role, _ := middleware.CurrentUser(c)
	if tenant.UserID == userID {
		return tenant, true
	}
	if err := h.properties.AuthorizeOwner(c.Request.Context(), userID, role, tenant.PropertyID); err != nil {
		HandleServiceError(c, err)
		return nil, false
	}
	return tenant, true
}
