package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/metrics"
	"github.com/taichu-system/rental-management/internal/model"
	"github.com/taichu-system/rental-management/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试独立的内存库；单连接保证事务串行
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

type recordingNotifier struct {
	events chan TransitionEvent
	err    error
	panics bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(chan TransitionEvent, 16)}
}

func (n *recordingNotifier) Notify(ctx context.Context, event TransitionEvent) error {
	n.events <- event
	if n.panics {
		panic("notifier exploded")
	}
	return n.err
}

func (n *recordingNotifier) next(t *testing.T) TransitionEvent {
	t.Helper()
	select {
	case e := <-n.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no notification delivered")
		return TransitionEvent{}
	}
}

type recordingStore struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (s *recordingStore) DeleteObjects(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, keys...)
	return s.err
}

type fixture struct {
	db           *gorm.DB
	properties   *repository.PropertyRepository
	applications *repository.ApplicationRepository
	tenants      *repository.TenantRepository
	payments     *repository.PaymentRepository
	documents    *repository.DocumentRepository
	audits       *repository.AuditRepository
	registry     *ApplicationRegistry
	ledger       *OccupancyLedger
	transition   *TransitionService
	tenantSvc    *TenantService
	notifier     *recordingNotifier
	store        *recordingStore
}

type fixtureOption func(*TransitionDeps, *LeasePolicy)

func withAnchor(anchor string) fixtureOption {
	return func(d *TransitionDeps, _ *LeasePolicy) {
		d.Schedule = NewPaymentScheduleGenerator(anchor)
	}
}

func withCustomDurations() fixtureOption {
	return func(_ *TransitionDeps, p *LeasePolicy) {
		p.AllowCustom = true
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	db := newTestDB(t)
	f := &fixture{
		db:           db,
		properties:   repository.NewPropertyRepository(db),
		applications: repository.NewApplicationRepository(db),
		tenants:      repository.NewTenantRepository(db),
		payments:     repository.NewPaymentRepository(db),
		documents:    repository.NewDocumentRepository(db),
		audits:       repository.NewAuditRepository(db),
		notifier:     newRecordingNotifier(),
		store:        &recordingStore{},
	}

	policy := LeasePolicy{AllowedDurations: constants.DefaultLeaseDurations}
	m := metrics.New(nil)
	deps := TransitionDeps{
		TxManager:    NewTransactionManager(db, 5*time.Second, 2),
		Properties:   f.properties,
		Applications: f.applications,
		Tenants:      f.tenants,
		Payments:     f.payments,
		Schedule:     NewPaymentScheduleGenerator(constants.BillingAnchorArrears),
		Audit:        NewAuditService(f.audits),
		Notifier:     f.notifier,
		Metrics:      m,
	}
	for _, opt := range opts {
		opt(&deps, &policy)
	}

	f.registry = NewApplicationRegistry(f.applications, f.properties, f.documents, f.store, policy)
	f.ledger = NewOccupancyLedger(f.properties, f.tenants)
	deps.Registry = f.registry
	deps.Ledger = f.ledger
	f.transition = NewTransitionService(deps)
	f.tenantSvc = NewTenantService(f.tenants, f.payments, m)
	return f
}

func (f *fixture) seedProperty(t *testing.T, total, occupied int) *model.Property {
	t.Helper()
	p := &model.Property{
		OwnerID:       uuid.New(),
		Name:          "Maple Court",
		TotalUnits:    total,
		OccupiedUnits: occupied,
	}
	require.NoError(t, f.properties.Create(context.Background(), p))
	return p
}

func (f *fixture) submit(t *testing.T, propertyID uuid.UUID, unit string, moveIn time.Time, rent float64) *model.RentalApplication {
	t.Helper()
	app, err := f.registry.Submit(context.Background(), SubmitApplicationRequest{
		PropertyID:  propertyID,
		UnitNumber:  unit,
		ApplicantID: uuid.New(),
		MonthlyRent: rent,
		MoveInDate:  moveIn,
	})
	require.NoError(t, err)
	return app
}

func (f *fixture) occupied(t *testing.T, propertyID uuid.UUID) int {
	t.Helper()
	p, err := f.properties.GetByID(context.Background(), propertyID)
	require.NoError(t, err)
	return p.OccupiedUnits
}

func (f *fixture) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
