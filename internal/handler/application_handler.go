package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/middleware"
	"github.com/taichu-system/rental-management/internal/model"
	"github.com/taichu-system/rental-management/internal/repository"
	"github.com/taichu-system/rental-management/internal/service"
	"github.com/taichu-system/rental-management/pkg/utils"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// ApplicationHandler 租赁申请处理器
type ApplicationHandler struct {
	transition *service.TransitionService
	registry   *service.ApplicationRegistry
	properties *service.PropertyService
}

// NewApplicationHandler 创建申请处理器
func NewApplicationHandler(
	transition *service.TransitionService,
	registry *service.ApplicationRegistry,
	properties *service.PropertyService,
) *ApplicationHandler {
	return &ApplicationHandler{
		transition: transition,
		registry:   registry,
		properties: properties,
	}
}

type SubmitApplicationRequest struct {
	PropertyID  string  `json:"property_id" binding:"required,uuid"`
	UnitNumber  string  `json:"unit_number" binding:"required,notblank"`
	MonthlyRent float64 `json:"monthly_rent" binding:"gte=0"`
	// MoveInDate 2006-01-02 或 RFC3339
	MoveInDate string `json:"move_in_date" binding:"required"`
}

type ApproveRequest struct {
	LeaseDurationMonths int `json:"lease_duration_months" binding:"required,lease_duration"`
}

type RejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

type AttachDocumentRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	StorageKey  string `json:"storage_key" binding:"required,notblank"`
	ContentType string `json:"content_type"`
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// SubmitApplication 提交申请
func (h *ApplicationHandler) SubmitApplication(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)

	var req SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.ErrCodeValidationFailed, "请求参数错误: %v", err)
		return
	}
	moveIn, err := parseDate(req.MoveInDate)
	if err != nil {
		utils.Error(c, utils.ErrCodeValidationFailed, "入住日期格式错误: %v", err)
		return
	}

	app, err := h.registry.Submit(c.Request.Context(), service.SubmitApplicationRequest{
		PropertyID:  uuid.MustParse(req.PropertyID),
		UnitNumber:  req.UnitNumber,
		ApplicantID: userID,
		MonthlyRent: req.MonthlyRent,
		MoveInDate:  moveIn,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	utils.Success(c, http.StatusCreated, app)
}

// GetApplication 获取申请详情
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	app, ok := h.loadVisible(c)
	if !ok {
		return
	}
	utils.Success(c, http.StatusOK, app)
}

// ListApplications 申请列表；申请人只能看到自己的申请
func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	userID, role, _ := middleware.CurrentUser(c)
	page := utils.ParseInt(c.DefaultQuery("page", "1"), 1)
	pageSize := utils.ParseInt(c.DefaultQuery("page_size", "10"), 10)
	if pageSize > 100 {
		pageSize = 100
	}

	propertyID, err := utils.ParseOptionalUUID(c.Query("property_id"))
	if err != nil {
		utils.Error(c, utils.ErrCodeInvalidInput, "无效的物业ID")
		return
	}

	filter := repository.ApplicationFilter{
		PropertyID: propertyID,
		UnitNumber: c.Query("unit_number"),
		Status:     c.Query("status"),
	}
	switch {
	case role == constants.RoleAdmin:
	case propertyID != nil && h.properties.AuthorizeOwner(c.Request.Context(), userID, role, *propertyID) == nil:
	default:
		filter.ApplicantID = &userID
	}

	apps, total, err := h.registry.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, gin.H{
		"applications": apps,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

// ApproveApplication 审批通过，Idempotency-Key 相同时重放首次结果
func (h *ApplicationHandler) ApproveApplication(c *gin.Context) {
	app, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorWithData(c, utils.ErrCodeValidationFailed, failure{Field: "lease_duration_months"}, "请求参数错误: %v", err)
		return
	}

	userID, _, _ := middleware.CurrentUser(c)
	result, err := h.transition.Approve(c.Request.Context(), app.ID, req.LeaseDurationMonths, service.ApproveOptions{
		IdempotencyKey: strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)),
		Actor:          &userID,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, gin.H{
		"success":       true,
		"tenant_id":     result.TenantID,
		"replayed":      result.Replayed,
		"payment_count": result.PaymentCount,
	})
}

// RejectApplication 拒绝申请
func (h *ApplicationHandler) RejectApplication(c *gin.Context) {
	app, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.ErrCodeValidationFailed, "请求参数错误: %v", err)
		return
	}

	userID, _, _ := middleware.CurrentUser(c)
	if _, err := h.transition.Reject(c.Request.Context(), app.ID, req.RejectionReason, &userID); err != nil {
		HandleServiceError(c, err)
		return
	}

	utils.Success(c, http.StatusOK, gin.H{"success": true})
}

// DeleteApplication 删除申请；业主或申请人本人可删除
func (h *ApplicationHandler) DeleteApplication(c *gin.Context) {
	app, ok := h.loadVisible(c)
	if !ok {
		return
	}

	userID, _, _ := middleware.CurrentUser(c)
	result, err := h.transition.DeleteApplication(c.Request.Context(), app.ID, &userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	data := gin.H{
		"success":           true,
		"documents_removed": result.DocumentsRemoved,
	}
	if result.Warning != "" {
		data["warning"] = result.Warning
	}
	utils.Success(c, http.StatusOK, data)
}

// AttachDocument 登记申请附件
func (h *ApplicationHandler) AttachDocument(c *gin.Context) {
	app, ok := h.loadVisible(c)
	if !ok {
		return
	}

	var req AttachDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, utils.ErrCodeValidationFailed, "请求参数错误: %v", err)
		return
	}

	doc, err := h.registry.AttachDocument(c.Request.Context(), app.ID, req.FileName, req.StorageKey, req.ContentType)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, doc)
}

// ListDocuments 申请附件列表
func (h *ApplicationHandler) ListDocuments(c *gin.Context) {
	app, ok := h.loadVisible(c)
	if !ok {
		return
	}

	docs, err := h.registry.ListDocuments(c.Request.Context(), app.ID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, docs)
}

func (h *ApplicationHandler) load(c *gin.Context) (*model.RentalApplication, bool) {
	id, err := utils.ParseUUID(c.Param("id"))
	if err != nil {
		utils.Error(c, utils.ErrCodeInvalidInput, "无效的申请ID")
		return nil, false
	}

	app, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		HandleServiceError(c, err)
		return nil, false
	}
	return app, true
}

// loadOwned 只有物业业主或管理员可以做审批决定
func (h *ApplicationHandler) loadOwned(c *gin.Context) (*model.RentalApplication, bool) {
	app, ok := h.load(c)
	if !ok {
		return nil, false
	}

	userID, role, _ := middleware.CurrentUser(c)
	if err := h.properties.AuthorizeOwner(c.Request.Context(), userID, role, app.PropertyID); err != nil {
		HandleServiceError(c, err)
		return nil, false
	}
	return app, true
}

// loadVisible 申请人本人、物业业主或管理员
func (h *ApplicationHandler) loadVisible(c *gin.Context) (*model.RentalApplication, bool) {
	app, ok := h.load(c)
	if !ok {
		return nil, false
	}

	userID, role, _ := middleware.CurrentUser(c)
	if app.ApplicantID == userID {
		return app, true
	}
	if err := h.properties.AuthorizeOwner(c.Request.Context(), userID, role, app.PropertyID); err != nil {
		HandleServiceError(c, err)
		return nil, false
	}
	return app, true
}
