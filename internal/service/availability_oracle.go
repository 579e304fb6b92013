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

// AvailabilityReader 可用性判定所需的只读查询，查不到时返回 (nil, nil)
type AvailabilityReader interface {
	GetProperty(ctx context.Context, id uuid.UUID) (*model.Property, error)
	FindLiveTenant(ctx context.Context, propertyID uuid.UUID, unitNumber string) (*model.Tenant, error)
	FindCompetingApplication(ctx context.Context, propertyID uuid.UUID, unitNumber string, excludeID *uuid.UUID) (*model.RentalApplication, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*model.RentalApplication, error)
}

// AvailabilityOracle 判定单元能否分配给某个申请
type AvailabilityOracle struct {
	reader AvailabilityReader
}

// NewAvailabilityOracle 创建可用性判定器
func NewAvailabilityOracle(reader AvailabilityReader) *AvailabilityOracle {
	return &AvailabilityOracle{reader: reader}
}

// Check 依次检查：在租租约 → 竞争申请 → 物业容量
//
// excludingApplicationID 为空时是单纯的单元查询，任何 pending/approved 申请都报告为已决。
//
// 事务外调用只作展示用途，审批时必须在同一事务内重新调用。
func (o *AvailabilityOracle) Check(ctx context.Context, propertyID uuid.UUID, unitNumber string, excludingApplicationID *uuid.UUID) (AvailabilityResult, error) {
	unitNumber = strings.TrimSpace(unitNumber)
	if unitNumber == "" {
		return AvailabilityResult{}, newValidationError("unit_number", "单元号不能为空")
	}

	property, err := o.reader.GetProperty(ctx, propertyID)
	if err != nil {
		return AvailabilityResult{}, err
	}
	if property == nil {
		return AvailabilityResult{}, &NotFoundError{Resource: "物业", ID: propertyID.String()}
	}

	// 1. 在租租约
	tenant, err := o.reader.FindLiveTenant(ctx, propertyID, unitNumber)
	if err != nil {
		return AvailabilityResult{}, err
	}
	if tenant != nil {
		// 由另一份仍为 approved 的申请产生的租约，报告为该申请已决
		if tenant.ApplicationID != nil && (excludingApplicationID == nil || *tenant.ApplicationID != *excludingApplicationID) {
			source, err := o.reader.GetApplication(ctx, *tenant.ApplicationID)
			if err != nil {
				return AvailabilityResult{}, err
			}
			if source != nil && source.Status == constants.ApplicationStatusApproved {
				return Unavailable(AlreadyDecided{Status: source.Status, ApplicationID: source.ID}), nil
			}
		}
		return Unavailable(UnitOccupied{TenantID: tenant.ID}), nil
	}

	// 2. 竞争申请；评估具体申请时，其他 pending 申请不构成阻塞，先批先得
	competing, err := o.reader.FindCompetingApplication(ctx, propertyID, unitNumber, excludingApplicationID)
	if err != nil {
		return AvailabilityResult{}, err
	}
	if competing != nil && (excludingApplicationID == nil || competing.Status == constants.ApplicationStatusApproved) {
		return Unavailable(AlreadyDecided{Status: competing.Status, ApplicationID: competing.ID}), nil
	}

	// 3. 容量
	if property.AtCapacity() {
		return Unavailable(PropertyAtCapacity{Occupied: property.OccupiedUnits, Total: property.TotalUnits}), nil
	}

	return Available(), nil
}

// repositoryReader 基于 gorm 仓库的 AvailabilityReader
type repositoryReader struct {
	properties   *repository.PropertyRepository
	tenants      *repository.TenantRepository
	applications *repository.ApplicationRepository
}

// NewRepositoryReader 用仓库构造 AvailabilityReader；传入事务绑定的仓库即可在事务内判定
func NewRepositoryReader(
	properties *repository.PropertyRepository,
	tenants *repository.TenantRepository,
	applications *repository.ApplicationRepository,
) AvailabilityReader {
	return &repositoryReader{
		properties:   properties,
		tenants:      tenants,
		applications: applications,
	}
}

func (r *repositoryReader) GetProperty(ctx context.Context, id uuid.UUID) (*model.Property, error) {
	return absentAsNil(r.properties.GetByID(ctx, id))
}

func (r *repositoryReader) FindLiveTenant(ctx context.Context, propertyID uuid.UUID, unitNumber string) (*model.Tenant, error) {
	return absentAsNil(r.tenants.FindLiveByUnit(ctx, propertyID, unitNumber))
}

func (r *repositoryReader) FindCompetingApplication(ctx context.Context, propertyID uuid.UUID, unitNumber string, excludeID *uuid.UUID) (*model.RentalApplication, error) {
	return absentAsNil(r.applications.FindCompeting(ctx, propertyID, unitNumber, excludeID))
}

func (r *repositoryReader) GetApplication(ctx context.Context, id uuid.UUID) (*model.RentalApplication, error) {
	return absentAsNil(r.applications.GetByID(ctx, id))
}

func absentAsNil[T any](v *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
