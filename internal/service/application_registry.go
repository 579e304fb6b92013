package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/logger"
	"github.com/taichu-system/rental-management/internal/model"
	"github.com/taichu-system/rental-management/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LeasePolicy 允许的租期
type LeasePolicy struct {
	AllowedDurations []int
	AllowCustom      bool
}

// Validate 租期必须在允许列表内；AllowCustom 时任意正整数均可
func (p LeasePolicy) Validate(months int) error {
	if months <= 0 {
		return newValidationError("lease_duration_months", "租期必须为正整数")
	}
	if p.AllowCustom {
		return nil
	}
	allowed := p.AllowedDurations
	if len(allowed) == 0 {
		allowed = constants.DefaultLeaseDurations
	}
	for _, d := range allowed {
		if d == months {
			return nil
		}
	}
	return newValidationError("lease_duration_months", "不支持的租期")
}

// DocumentStore 外部附件存储
type DocumentStore interface {
	DeleteObjects(ctx context.Context, keys []string) error
}

// SubmitApplicationRequest 提交申请
type SubmitApplicationRequest struct {
	PropertyID  uuid.UUID
	UnitNumber  string
	ApplicantID uuid.UUID
	MonthlyRent float64
	MoveInDate  time.Time
}

// DeleteResult 删除结果；删除已批准的申请时带 Warning
type DeleteResult struct {
	ApplicationID    uuid.UUID `json:"application_id"`
	DocumentsRemoved int64     `json:"documents_removed"`
	Warning          string    `json:"warning,omitempty"`
}

const approvedDeleteWarning = "申请已批准，删除申请不会影响已生成的租约和付款计划"

// ApplicationRegistry 租赁申请的增删查与状态流转
type ApplicationRegistry struct {
	applications *repository.ApplicationRepository
	properties   *repository.PropertyRepository
	documents    *repository.DocumentRepository
	store        DocumentStore
	policy       LeasePolicy
}

func NewApplicationRegistry(
	applications *repository.ApplicationRepository,
	properties *repository.PropertyRepository,
	documents *repository.DocumentRepository,
	store DocumentStore,
	policy LeasePolicy,
) *ApplicationRegistry {
	return &ApplicationRegistry{
		applications: applications,
		properties:   properties,
		documents:    documents,
		store:        store,
		policy:       policy,
	}
}

// Submit 创建 pending 申请
func (r *ApplicationRegistry) Submit(ctx context.Context, req SubmitApplicationRequest) (*model.RentalApplication, error) {
	unit := strings.TrimSpace(req.UnitNumber)
	if unit == "" {
		return nil, newValidationError("unit_number", "单元号不能为空")
	}
	if req.MonthlyRent < 0 {
		return nil, newValidationError("monthly_rent", "月租不能为负数")
	}
	if req.MoveInDate.IsZero() {
		return nil, newValidationError("move_in_date", "入住日期不能为空")
	}

	if _, err := r.properties.GetByID(ctx, req.PropertyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "物业", ID: req.PropertyID.String()}
		}
		return nil, err
	}

	app := &model.RentalApplication{
		PropertyID:  req.PropertyID,
		UnitNumber:  unit,
		ApplicantID: req.ApplicantID,
		MonthlyRent: req.MonthlyRent,
		MoveInDate:  req.MoveInDate,
		Status:      constants.ApplicationStatusPending,
	}
	if err := r.applications.Create(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

func (r *ApplicationRegistry) Get(ctx context.Context, id uuid.UUID) (*model.RentalApplication, error) {
	app, err := r.applications.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "申请", ID: id.String()}
	}
	return app, err
}

func (r *ApplicationRegistry) List(ctx context.Context, filter repository.ApplicationFilter, page, pageSize int) ([]*model.RentalApplication, int64, error) {
	return r.applications.List(ctx, filter, page, pageSize)
}

// Reject pending → rejected，不影响入住台账
func (r *ApplicationRegistry) Reject(ctx context.Context, id uuid.UUID, reason string, actor *uuid.UUID) (*model.RentalApplication, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newValidationError("rejection_reason", "拒绝原因不能为空")
	}

	app, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != constants.ApplicationStatusPending {
		return nil, &ConflictError{Kind: ConflictApplicationNotPending, Status: app.Status}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":           constants.ApplicationStatusRejected,
		"rejection_reason": reason,
		"updated_at":       now,
	}
	if actor != nil {
		updates["decided_by"] = *actor
	}

	ok, err := r.applications.UpdateIfPending(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 读取之后被其他请求处理
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &ConflictError{Kind: ConflictApplicationNotPending, Status: current.Status}
	}

	app.Status = constants.ApplicationStatusRejected
	app.RejectionReason = reason
	app.UpdatedAt = now
	app.DecidedBy = actor
	return app, nil
}

// markApproved 审批事务内调用，apps 必须是绑定事务的仓库
func (r *ApplicationRegistry) markApproved(ctx context.Context, apps *repository.ApplicationRepository, app *model.RentalApplication, months int, idempotencyKey string, actor *uuid.UUID) error {
	if err := r.policy.Validate(months); err != nil {
		return err
	}
	if app.Status != constants.ApplicationStatusPending {
		return &ConflictError{Kind: ConflictApplicationNotPending, Status: app.Status}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":                constants.ApplicationStatusApproved,
		"lease_duration_months": months,
		"updated_at":            now,
	}
	if idempotencyKey != "" {
		updates["approval_key"] = idempotencyKey
	}
	if actor != nil {
		updates["decided_by"] = *actor
	}

	ok, err := apps.UpdateIfPending(ctx, app.ID, updates)
	if err != nil {
		return err
	}
	if !ok {
		return &ConflictError{Kind: ConflictConcurrentApproval}
	}

	app.Status = constants.ApplicationStatusApproved
	app.LeaseDurationMonths = &months
	app.UpdatedAt = now
	app.DecidedBy = actor
	if idempotencyKey != "" {
		app.ApprovalKey = &idempotencyKey
	}
	return nil
}

// Delete 删除申请及附件，租约与付款记录保留
//
// 外部存储中的文件在数据库提交后尽力删除，失败只记日志。
func (r *ApplicationRegistry) Delete(ctx context.Context, id uuid.UUID) (*DeleteResult, *model.RentalApplication, error) {
	app, err := r.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	keys, err := r.documents.StorageKeys(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	removed, err := r.applications.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, &NotFoundError{Resource: "申请", ID: id.String()}
	}
	if err != nil {
		return nil, nil, err
	}

	if r.store != nil && len(keys) > 0 {
		if err := r.store.DeleteObjects(ctx, keys); err != nil {
			logger.FromContext(ctx).Warn("failed to delete application documents from store",
				zap.String("application_id", id.String()),
				zap.Strings("keys", keys),
				zap.Error(err),
			)
		}
	}

	result := &DeleteResult{ApplicationID: id, DocumentsRemoved: removed}
	if app.Status == constants.ApplicationStatusApproved {
		result.Warning = approvedDeleteWarning
	}
	return result, app, nil
}

// AttachDocument 登记附件元数据
func (r *ApplicationRegistry) AttachDocument(ctx context.Context, applicationID uuid.UUID, fileName, storageKey, contentType string) (*model.ApplicationDocument, error) {
	if strings.TrimSpace(storageKey) == "" {
		return nil, newValidationError("storage_key", "存储键不能为空")
	}
	if _, err := r.Get(ctx, applicationID); err != nil {
		return nil, err
	}

	doc := &model.ApplicationDocument{
		ApplicationID: applicationID,
		FileName:      fileName,
		StorageKey:    storageKey,
		ContentType:   contentType,
	}
	if err := r.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *ApplicationRegistry) ListDocuments(ctx context.Context, applicationID uuid.UUID) ([]*model.ApplicationDocument, error) {
	return r.documents.ListByApplication(ctx, applicationID)
}
