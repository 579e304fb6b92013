package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/metrics"
	"github.com/taichu-system/rental-management/internal/model"
	"github.com/taichu-system/rental-management/internal/repository"
	"github.com/taichu-system/rental-management/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db         *gorm.DB
	properties *repository.PropertyRepository
	tenants    *repository.TenantRepository
	payments   *repository.PaymentRepository
	scheduler  *MaintenanceScheduler
}

func newTestEnv(t *testing.T, cfg MaintenanceConfig) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.AllModels()...))

	env := &testEnv{
		db:         db,
		properties: repository.NewPropertyRepository(db),
		tenants:    repository.NewTenantRepository(db),
		payments:   repository.NewPaymentRepository(db),
	}
	m := metrics.New(nil)
	env.scheduler = NewMaintenanceScheduler(
		service.NewTenantService(env.tenants, env.payments, m),
		service.NewOccupancyLedger(env.properties, env.tenants),
		m,
		cfg,
	)
	return env
}

func (e *testEnv) seedTenant(t *testing.T, occupied int) (*model.Property, *model.Tenant) {
	t.Helper()
	ctx := context.Background()

	property := &model.Property{OwnerID: uuid.New(), Name: "Harbor View", TotalUnits: 5, OccupiedUnits: occupied}
	require.NoError(t, e.properties.Create(ctx, property))

	tenant := &model.Tenant{
		UserID:      uuid.New(),
		PropertyID:  property.ID,
		UnitNumber:  "2A",
		LeaseStart:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		LeaseEnd:    time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		MonthlyRent: 1000,
		Status:      constants.TenantStatusActive,
	}
	require.NoError(t, e.tenants.Create(ctx, tenant))
	return property, tenant
}

func TestMaintenanceScheduler_RunOverdueSweep(t *testing.T) {
	env := newTestEnv(t, MaintenanceConfig{})
	ctx := context.Background()
	_, tenant := env.seedTenant(t, 1)

	var rows []*model.Payment
	for i := 1; i <= 3; i++ {
		rows = append(rows, &model.Payment{
			TenantID: tenant.ID,
			DueDate:  time.Date(2025, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC),
			Amount:   1000,
			Status:   constants.PaymentStatusPending,
		})
	}
	require.NoError(t, env.payments.CreateBatch(ctx, rows))

	env.scheduler.now = func() time.Time { return time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, env.scheduler.RunOverdueSweep(ctx))

	payments, err := env.payments.ListByTenant(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, constants.PaymentStatusOverdue, payments[0].Status)
	assert.Equal(t, constants.PaymentStatusOverdue, payments[1].Status)
	assert.Equal(t, constants.PaymentStatusPending, payments[2].Status)

	// 再次扫描不重复标记
	require.NoError(t, env.scheduler.RunOverdueSweep(ctx))
	var overdue int64
	require.NoError(t, env.db.Model(&model.Payment{}).Where("status = ?", constants.PaymentStatusOverdue).Count(&overdue).Error)
	assert.Equal(t, int64(2), overdue)
}

func TestMaintenanceScheduler_RunReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("report only", func(t *testing.T) {
		env := newTestEnv(t, MaintenanceConfig{})
		property, _ := env.seedTenant(t, 3)

		require.NoError(t, env.scheduler.RunReconcile(ctx))
		stored, err := env.properties.GetByID(ctx, property.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, stored.OccupiedUnits)
	})

	t.Run("repair", func(t *testing.T) {
		env := newTestEnv(t, MaintenanceConfig{RepairDrift: true})
		property, _ := env.seedTenant(t, 3)

		require.NoError(t, env.scheduler.RunReconcile(ctx))
		stored, err := env.properties.GetByID(ctx, property.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.OccupiedUnits)
	})
}

func TestMaintenanceScheduler_StartStop(t *testing.T) {
	env := newTestEnv(t, MaintenanceConfig{OverdueCron: "0 2 * * *", ReconcileCron: "*/30 * * * *"})
	require.NoError(t, env.scheduler.Start())
	env.scheduler.Stop()

	bad := newTestEnv(t, MaintenanceConfig{OverdueCron: "not a cron"})
	assert.Error(t, bad.scheduler.Start())
}
