package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taichu-system/rental-management/internal/middleware"
	"github.com/taichu-system/rental-management/internal/service"
	"github.com/taichu-system/rental-management/pkg/utils"
)

// PropertyHandler 物业与单元可用性
type PropertyHandler struct {
	properties *service.PropertyService
	transition *service.TransitionService
	tenants    *service.TenantService
}

func NewPropertyHandler(properties *service.PropertyService, transition *service.TransitionService, tenants *service.TenantService) *PropertyHandler {
	return &PropertyHandler{
		properties: properties,
		transition: transition,
		tenants:    tenants,
	}
}

type CreatePropertyRequest struct {
	Name       string `json:"name" binding:"required,notblank"`
	Address    string `json:"address"`
	TotalUnits int    `json:"total_units" binding:"required,gt=0"`
}

// CreateProperty 创建物业，当前用户为业主
func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)

	var req CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.ErrCodeValidationFailed, "请求参数错误: %v", err)
		return
	}

	property, err := h.properties.CreateProperty(c.Request.Context(), userID, req.Name, req.Address, req.TotalUnits)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, property)
}

func (h *PropertyHandler) GetProperty(c *gin.Context) {
	id, err := utils.ParseUUID(c.Param("id"))
	if err != nil {
		utils.Error(c, utils.ErrCodeInvalidInput, "无效的物业ID")
		return
	}

	property, err := h.properties.GetProperty(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, gin.H{
		"property":        property,
		"available_units": property.AvailableUnits(),
	})
}

// ListMyProperties 当前业主名下的物业
func (h *PropertyHandler) ListMyProperties(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)

	properties, err := h.properties.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, properties)
}

// CheckAvailability 单元可用性（展示用，审批时会在事务内重新判定）
func (h *PropertyHandler) CheckAvailability(c *gin.Context) {
	id, err := utils.ParseUUID(c.Param("id"))
	if err != nil {
		utils.Error(c, utils.ErrCodeInvalidInput, "无效的物业ID")
		return
	}
	exclude, err := utils.ParseOptionalUUID(c.Query("exclude_application_id"))
	if err != nil {
		utils.Error(c, utils.ErrCodeInvalidInput, "无效的申请ID")
		return
	}

	result, err := h.transition.CheckAvailability(c.Request.Context(), id, c.Param("unit"), exclude)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, result)
}

// ListTenants 物业下的租约，仅业主
func (h *PropertyHandler) ListTenants(c *gin.Context) {
	id, err := utils.ParseUUID(c.Param("id"))
	if err != nil {
		utils.Error(c, utils.ErrCodeInvalidInput, "无效的物业ID")
		return
	}

	userID, role, _ := middleware.CurrentUser(c)
	if err := h.properties.AuthorizeOwner(c.Request.Context(), userID, role, id); err != nil {
		HandleServiceError(c, err)
		return
	}

	tenants, err := h.tenants.ListByProperty(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, tenants)
}
