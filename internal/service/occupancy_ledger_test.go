package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/model"
)

func TestOccupancyLedger_OccupyAndRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	property := f.seedProperty(t, 2, 1)

	require.NoError(t, f.ledger.Occupy(ctx, property.ID))
	assert.Equal(t, 2, f.occupied(t, property.ID))

	err := f.ledger.Occupy(ctx, property.ID)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ConflictUnitUnavailable, conflict.Kind)
	assert.Equal(t, PropertyAtCapacity{Occupied: 2, Total: 2}, conflict.Reason)
	assert.Equal(t, 2, f.occupied(t, property.ID))

	require.NoError(t, f.ledger.Release(ctx, property.ID))
	require.NoError(t, f.ledger.Release(ctx, property.ID))
	assert.Equal(t, 0, f.occupied(t, property.ID))

	err = f.ledger.Release(ctx, property.ID)
	assert.True(t, errors.Is(err, ErrLedgerDrift))
	assert.Equal(t, 0, f.occupied(t, property.ID))
}

func TestOccupancyLedger_OccupyMissingProperty(t *testing.T) {
	f := newFixture(t)
	err := f.ledger.Occupy(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOccupancyLedger_Reconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	healthy := f.seedProperty(t, 5, 1)
	drifted := f.seedProperty(t, 5, 4)

	for _, tenant := range []*model.Tenant{
		{UserID: uuid.New(), PropertyID: healthy.ID, UnitNumber: "1", LeaseStart: date(2025, 1, 1), LeaseEnd: date(2026, 1, 1), Status: constants.TenantStatusActive},
		{UserID: uuid.New(), PropertyID: drifted.ID, UnitNumber: "1", LeaseStart: date(2025, 1, 1), LeaseEnd: date(2026, 1, 1), Status: constants.TenantStatusActive},
		{UserID: uuid.New(), PropertyID: drifted.ID, UnitNumber: "2", LeaseStart: date(2025, 1, 1), LeaseEnd: date(2026, 1, 1), Status: constants.TenantStatusPending},
		{UserID: uuid.New(), PropertyID: drifted.ID, UnitNumber: "3", LeaseStart: date(2024, 1, 1), LeaseEnd: date(2025, 1, 1), Status: constants.TenantStatusTerminated},
	} {
		require.NoError(t, f.tenants.Create(ctx, tenant))
	}

	drifts, err := f.ledger.Reconcile(ctx, false)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, LedgerDrift{PropertyID: drifted.ID, Recorded: 4, Actual: 2}, drifts[0])
	assert.Equal(t, 4, f.occupied(t, drifted.ID), "report-only run must not write")

	drifts, err = f.ledger.Reconcile(ctx, true)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.True(t, drifts[0].Repaired)
	assert.Equal(t, 2, f.occupied(t, drifted.ID))

	drifts, err = f.ledger.Reconcile(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}
