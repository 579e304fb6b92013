package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/logger"
	"github.com/taichu-system/rental-management/internal/metrics"
	"github.com/taichu-system/rental-management/internal/model"
	"github.com/taichu-system/rental-management/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApproveOptions 审批附加参数
type ApproveOptions struct {
	// IdempotencyKey 与首次审批相同的键重放时直接返回原租约
	IdempotencyKey string
	Actor          *uuid.UUID
}

// ApproveResult 审批结果
type ApproveResult struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	Replayed     bool      `json:"replayed,omitempty"`
	PaymentCount int       `json:"payment_count"`
}

// TransitionDeps 构造 TransitionService 的依赖
type TransitionDeps struct {
	TxManager    *TransactionManager
	Properties   *repository.PropertyRepository
	Applications *repository.ApplicationRepository
	Tenants      *repository.TenantRepository
	Payments     *repository.PaymentRepository
	Registry     *ApplicationRegistry
	Ledger       *OccupancyLedger
	Schedule     *PaymentScheduleGenerator
	Audit        *AuditService
	Notifier     Notifier
	Metrics      *metrics.Metrics
}

// TransitionService 申请 → 租约的状态流转
type TransitionService struct {
	txManager    *TransactionManager
	properties   *repository.PropertyRepository
	applications *repository.ApplicationRepository
	tenants      *repository.TenantRepository
	payments     *repository.PaymentRepository
	registry     *ApplicationRegistry
	ledger       *OccupancyLedger
	schedule     *PaymentScheduleGenerator
	audit        *AuditService
	notifier     Notifier
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewTransitionService(deps TransitionDeps) *TransitionService {
	schedule := deps.Schedule
	if schedule == nil {
		schedule = NewPaymentScheduleGenerator(constants.BillingAnchorArrears)
	}
	return &TransitionService{
		txManager:    deps.TxManager,
		properties:   deps.Properties,
		applications: deps.Applications,
		tenants:      deps.Tenants,
		payments:     deps.Payments,
		registry:     deps.Registry,
		ledger:       deps.Ledger,
		schedule:     schedule,
		audit:        deps.Audit,
		notifier:     deps.Notifier,
		metrics:      deps.Metrics,
		now:          time.Now,
	}
}

// CheckAvailability 事务外的可用性查询，仅供展示
func (s *TransitionService) CheckAvailability(ctx context.Context, propertyID uuid.UUID, unitNumber string, excludingApplicationID *uuid.UUID) (AvailabilityResult, error) {
	oracle := NewAvailabilityOracle(NewRepositoryReader(s.properties, s.tenants, s.applications))
	result, err := oracle.Check(ctx, propertyID, unitNumber, excludingApplicationID)
	if err != nil {
		return result, err
	}
	if result.IsAvailable() {
		s.metrics.ObserveAvailability("available")
	} else {
		s.metrics.ObserveAvailability(string(result.Reason.Kind()))
	}
	return result, nil
}

// Approve 审批通过：标记申请、创建租约、生成付款计划、占用台账，全部在一个事务内完成
func (s *TransitionService) Approve(ctx context.Context, applicationID uuid.UUID, months int, opts ApproveOptions) (*ApproveResult, error) {
	started := s.now()
	result, err := s.approve(ctx, applicationID, months, opts)
	s.metrics.ObserveTransition(constants.EventTypeApprove, outcomeOf(err), started)
	return result, err
}

func (s *TransitionService) approve(ctx context.Context, applicationID uuid.UUID, months int, opts ApproveOptions) (*ApproveResult, error) {
	log := logger.FromContext(ctx).With(
		zap.String("application_id", applicationID.String()),
		zap.Int("lease_duration_months", months),
	)

	app, err := s.registry.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != constants.ApplicationStatusPending {
		if replay, err := s.replay(ctx, app, opts.IdempotencyKey); replay != nil || err != nil {
			return replay, err
		}
		return nil, &ConflictError{Kind: ConflictApplicationNotPending, Status: app.Status}
	}

	var (
		tenant   *model.Tenant
		replayed *ApproveResult
		count    int
	)
	err = s.txManager.ExecuteWithRetry(ctx, func(tx *gorm.DB) error {
		tenant, replayed, count = nil, nil, 0

		properties := s.properties.WithTx(tx)
		applications := s.applications.WithTx(tx)
		tenants := s.tenants.WithTx(tx)
		payments := s.payments.WithTx(tx)

		// 先锁物业行，同一物业的审批串行执行
		if _, err := properties.LockByID(ctx, app.PropertyID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "物业", ID: app.PropertyID.String()}
			}
			return err
		}

		locked, err := applications.LockByID(ctx, applicationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "申请", ID: applicationID.String()}
			}
			return err
		}
		if locked.Status != constants.ApplicationStatusPending {
			if replayed, err = s.replayWith(ctx, tenants, payments, locked, opts.IdempotencyKey); replayed != nil || err != nil {
				return err
			}
			return &ConflictError{Kind: ConflictApplicationNotPending, Status: locked.Status}
		}

		oracle := NewAvailabilityOracle(NewRepositoryReader(properties, tenants, applications))
		availability, err := oracle.Check(ctx, locked.PropertyID, locked.UnitNumber, &locked.ID)
		if err != nil {
			return err
		}
		if !availability.IsAvailable() {
			return &ConflictError{Kind: ConflictUnitUnavailable, Reason: availability.Reason}
		}

		if err := s.registry.markApproved(ctx, applications, locked, months, opts.IdempotencyKey, opts.Actor); err != nil {
			return err
		}

		appID := locked.ID
		tenant = &model.Tenant{
			UserID:        locked.ApplicantID,
			PropertyID:    locked.PropertyID,
			UnitNumber:    locked.UnitNumber,
			ApplicationID: &appID,
			LeaseStart:    locked.MoveInDate,
			LeaseEnd:      LeaseEnd(locked.MoveInDate, months),
			MonthlyRent:   locked.MonthlyRent,
			Status:        constants.TenantStatusActive,
		}
		if err := tenants.Create(ctx, tenant); err != nil {
			return err
		}

		schedule, err := s.schedule.Generate(tenant.LeaseStart, tenant.MonthlyRent, months)
		if err != nil {
			return err
		}
		rows := make([]*model.Payment, 0, len(schedule))
		for _, entry := range schedule {
			rows = append(rows, &model.Payment{
				TenantID: tenant.ID,
				DueDate:  entry.DueDate,
				Amount:   entry.Amount,
				Status:   constants.PaymentStatusPending,
				LateFee:  0,
			})
		}
		if err := payments.CreateBatch(ctx, rows); err != nil {
			return err
		}
		count = len(rows)

		app = locked
		return s.ledger.WithTx(tx).Occupy(ctx, locked.PropertyID)
	})

	if err = classifyTransactionError("approve", err); err != nil {
		log.Info("approval refused", zap.Error(err))
		s.audit.LogApplicationDecision(ctx, app, constants.EventTypeApprove, actorString(opts.Actor), map[string]interface{}{
			"lease_duration_months": months,
		}, err)
		return nil, err
	}
	if replayed != nil {
		return replayed, nil
	}

	log.Info("application approved",
		zap.String("tenant_id", tenant.ID.String()),
		zap.Int("payments", count),
	)
	s.audit.LogApplicationDecision(ctx, app, constants.EventTypeApprove, actorString(opts.Actor), map[string]interface{}{
		"tenant_id":             tenant.ID.String(),
		"lease_duration_months": months,
		"payments":              count,
	}, nil)

	tenantID := tenant.ID
	dispatchNotification(ctx, s.notifier, s.metrics, TransitionEvent{
		Type:          constants.EventTypeApprove,
		ApplicationID: app.ID,
		PropertyID:    app.PropertyID,
		UnitNumber:    app.UnitNumber,
		ApplicantID:   app.ApplicantID,
		TenantID:      &tenantID,
		Actor:         actorString(opts.Actor),
		OccurredAt:    s.now(),
	})

	return &ApproveResult{TenantID: tenant.ID, PaymentCount: count}, nil
}

func (s *TransitionService) replay(ctx context.Context, app *model.RentalApplication, key string) (*ApproveResult, error) {
	return s.replayWith(ctx, s.tenants, s.payments, app, key)
}

// replayWith 幂等键匹配时返回首次审批创建的租约，不匹配返回 (nil, nil)
func (s *TransitionService) replayWith(ctx context.Context, tenants *repository.TenantRepository, payments *repository.PaymentRepository, app *model.RentalApplication, key string) (*ApproveResult, error) {
	if key == "" || app.Status != constants.ApplicationStatusApproved || app.ApprovalKey == nil || *app.ApprovalKey != key {
		return nil, nil
	}
	tenant, err := tenants.GetByApplicationID(ctx, app.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	count, err := payments.CountByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	return &ApproveResult{TenantID: tenant.ID, Replayed: true, PaymentCount: int(count)}, nil
}

// Reject 拒绝申请
func (s *TransitionService) Reject(ctx context.Context, applicationID uuid.UUID, reason string, actor *uuid.UUID) (*model.RentalApplication, error) {
	started := s.now()
	app, err := s.registry.Reject(ctx, applicationID, reason, actor)
	s.metrics.ObserveTransition(constants.EventTypeReject, outcomeOf(err), started)
	if err != nil {
		return nil, err
	}

	s.audit.LogApplicationDecision(ctx, app, constants.EventTypeReject, actorString(actor), map[string]interface{}{
		"rejection_reason": app.RejectionReason,
	}, nil)
	dispatchNotification(ctx, s.notifier, s.metrics, TransitionEvent{
		Type:          constants.EventTypeReject,
		ApplicationID: app.ID,
		PropertyID:    app.PropertyID,
		UnitNumber:    app.UnitNumber,
		ApplicantID:   app.ApplicantID,
		Reason:        app.RejectionReason,
		Actor:         actorString(actor),
		OccurredAt:    s.now(),
	})
	return app, nil
}

// DeleteApplication 删除申请，已批准的申请删除时返回警告
func (s *TransitionService) DeleteApplication(ctx context.Context, applicationID uuid.UUID, actor *uuid.UUID) (*DeleteResult, error) {
	result, app, err := s.registry.Delete(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	details := map[string]interface{}{"documents_removed": result.DocumentsRemoved}
	if result.Warning != "" {
		details["warning"] = result.Warning
	}
	s.audit.LogApplicationDecision(ctx, app, constants.EventTypeDelete, actorString(actor), details, nil)
	return result, nil
}

// TerminateTenancy 终止租约并释放台账占用
func (s *TransitionService) TerminateTenancy(ctx context.Context, tenantID uuid.UUID, actor *uuid.UUID) (*model.Tenant, error) {
	started := s.now()
	tenant, err := s.terminate(ctx, tenantID)
	s.metrics.ObserveTransition(constants.EventTypeTerminate, outcomeOf(err), started)
	if err != nil {
		return nil, err
	}

	s.audit.LogTenantOperation(ctx, tenant, constants.EventTypeTerminate, actorString(actor), map[string]interface{}{
		"unit_number": tenant.UnitNumber,
	})
	tid := tenant.ID
	event := TransitionEvent{
		Type:       constants.EventTypeTerminate,
		PropertyID: tenant.PropertyID,
		UnitNumber: tenant.UnitNumber,
		TenantID:   &tid,
		Actor:      actorString(actor),
		OccurredAt: s.now(),
	}
	if tenant.ApplicationID != nil {
		event.ApplicationID = *tenant.ApplicationID
	}
	dispatchNotification(ctx, s.notifier, s.metrics, event)
	return tenant, nil
}

func (s *TransitionService) terminate(ctx context.Context, tenantID uuid.UUID) (*model.Tenant, error) {
	current, err := s.tenants.GetByID(ctx, tenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "租约", ID: tenantID.String()}
	}
	if err != nil {
		return nil, err
	}

	var tenant *model.Tenant
	err = s.txManager.ExecuteWithRetry(ctx, func(tx *gorm.DB) error {
		if _, err := s.properties.WithTx(tx).LockByID(ctx, current.PropertyID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "物业", ID: current.PropertyID.String()}
			}
			return err
		}

		tenants := s.tenants.WithTx(tx)
		at := s.now()
		ok, err := tenants.Terminate(ctx, tenantID, at)
		if err != nil {
			return err
		}
		if !ok {
			return &ConflictError{Kind: ConflictTenancyNotActive}
		}

		if err := s.ledger.WithTx(tx).Release(ctx, current.PropertyID); err != nil {
			if !errors.Is(err, ErrLedgerDrift) {
				return err
			}
			// 台账已为 0，交给对账任务修复
			logger.FromContext(ctx).Warn("ledger underflow on termination",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}

		tenant, err = tenants.GetByID(ctx, tenantID)
		return err
	})
	if err != nil {
		return nil, classifyTransactionError("terminate", err)
	}
	return tenant, nil
}

// outcomeOf 指标里的结果标签
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "failure"
	}
}

func actorString(actor *uuid.UUID) string {
	if actor == nil {
		return "system"
	}
	return actor.String()
}
