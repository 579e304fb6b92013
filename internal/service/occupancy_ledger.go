package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/logger"
	"github.com/taichu-system/rental-management/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OccupancyLedger 入住台账，只在审批和终止租约的事务中修改
type OccupancyLedger struct {
	properties *repository.PropertyRepository
	tenants    *repository.TenantRepository
}

// NewOccupancyLedger 创建入住台账
func NewOccupancyLedger(properties *repository.PropertyRepository, tenants *repository.TenantRepository) *OccupancyLedger {
	return &OccupancyLedger{properties: properties, tenants: tenants}
}

// WithTx 返回绑定到事务的台账
func (l *OccupancyLedger) WithTx(tx *gorm.DB) *OccupancyLedger {
	return &OccupancyLedger{
		properties: l.properties.WithTx(tx),
		tenants:    l.tenants.WithTx(tx),
	}
}

// Occupy occupied_units + 1，已满时返回 PropertyAtCapacity 冲突
func (l *OccupancyLedger) Occupy(ctx context.Context, propertyID uuid.UUID) error {
	ok, err := l.properties.IncrementOccupied(ctx, propertyID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	property, err := l.properties.GetByID(ctx, propertyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: "物业", ID: propertyID.String()}
	}
	if err != nil {
		return err
	}
	return &ConflictError{
		Kind:   ConflictUnitUnavailable,
		Reason: PropertyAtCapacity{Occupied: property.OccupiedUnits, Total: property.TotalUnits},
	}
}

// Release occupied_units - 1，已为 0 说明台账漂移
func (l *OccupancyLedger) Release(ctx context.Context, propertyID uuid.UUID) error {
	ok, err := l.properties.DecrementOccupied(ctx, propertyID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: 物业 %s occupied_units 已为 0", ErrLedgerDrift, propertyID)
	}
	return nil
}

// LedgerDrift 台账记录值与实际在租租约数不一致
type LedgerDrift struct {
	PropertyID uuid.UUID `json:"property_id"`
	Recorded   int       `json:"recorded"`
	Actual     int       `json:"actual"`
	Repaired   bool      `json:"repaired"`
}

// Reconcile 用 active/pending 租约数核对 occupied_units，repair 为真时按实际值修正
func (l *OccupancyLedger) Reconcile(ctx context.Context, repair bool) ([]LedgerDrift, error) {
	properties, err := l.properties.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取物业列表失败: %w", err)
	}
	counts, err := l.tenants.CountLiveByProperty(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计在租租约失败: %w", err)
	}

	var drifts []LedgerDrift
	for _, property := range properties {
		actual := counts[property.ID]
		if actual == property.OccupiedUnits {
			continue
		}

		drift := LedgerDrift{PropertyID: property.ID, Recorded: property.OccupiedUnits, Actual: actual}
		if repair {
			if err := l.properties.SetOccupied(ctx, property.ID, actual); err != nil {
				return drifts, fmt.Errorf("修正物业 %s 台账失败: %w", property.ID, err)
			}
			drift.Repaired = true
		}

		logger.FromContext(ctx).Warn("occupancy ledger drift",
			zap.String("property_id", property.ID.String()),
			zap.Int("recorded", drift.Recorded),
			zap.Int("actual", drift.Actual),
			zap.Bool("repaired", drift.Repaired),
		)
		drifts = append(drifts, drift)
	}

	return drifts, nil
}
