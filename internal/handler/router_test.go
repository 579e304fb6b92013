package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/internal/metrics"
	"github.com/taichu-system/rental-management/internal/middleware"
	"github.com/taichu-system/rental-management/internal/model"
	"github.com/taichu-system/rental-management/internal/repository"
	"github.com/taichu-system/rental-management/internal/service"
	"github.com/taichu-system/rental-management/pkg/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testSecret = "handler-test-secret"
	testIssuer = "rental-management"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t          *testing.T
	router     *gin.Engine
	properties *repository.PropertyRepository
	db         *gorm.DB
}

type actor struct {
	id    uuid.UUID
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	m := metrics.New(nil)
	propertyRepo := repository.NewPropertyRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	auditService := service.NewAuditService(repository.NewAuditRepository(db))
	ledger := service.NewOccupancyLedger(propertyRepo, tenantRepo)
	registry := service.NewApplicationRegistry(applicationRepo, propertyRepo, repository.NewDocumentRepository(db), nil, service.LeasePolicy{
		AllowedDurations: constants.DefaultLeaseDurations,
	})
	propertyService := service.NewPropertyService(propertyRepo, auditService)
	tenantService := service.NewTenantService(tenantRepo, paymentRepo, m)
	transition := service.NewTransitionService(service.TransitionDeps{
		TxManager:    service.NewTransactionManager(db, 5*time.Second, 2),
		Properties:   propertyRepo,
		Applications: applicationRepo,
		Tenants:      tenantRepo,
		Payments:     paymentRepo,
		Registry:     registry,
		Ledger:       ledger,
		Audit:        auditService,
		Notifier:     service.NewLogNotifier(),
		Metrics:      m,
	})

	r := gin.New()
	RegisterRoutes(r, Handlers{
		Application: NewApplicationHandler(transition, registry, propertyService),
		Property:    NewPropertyHandler(propertyService, transition, tenantService),
		Tenant:      NewTenantHandler(tenantService, transition, propertyService),
		Audit:       NewAuditHandler(auditService, registry, tenantService, propertyService),
	}, RouteOptions{JWTSecret: testSecret, Issuer: testIssuer})

	return &testServer{t: t, router: r, properties: propertyRepo, db: db}
}

func (s *testServer) user(role string) actor {
	s.t.Helper()
	id := uuid.New()
	token, err := middleware.GenerateToken(id.String(), role, role, testSecret, testIssuer, time.Hour)
	require.NoError(s.t, err)
	return actor{id: id, token: token}
}

func (s *testServer) do(method, path string, who *actor, body interface{}, headers ...string) (int, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req.Header.Set("Authorization", "Bearer "+who.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *testServer) seedProperty(owner actor, total, occupied int) *model.Property {
	s.t.Helper()
	p := &model.Property{OwnerID: owner.id, Name: "Elm Street", TotalUnits: total, OccupiedUnits: occupied}
	require.NoError(s.t, s.properties.Create(context.Background(), p))
	return p
}

func (s *testServer) submit(applicant actor, propertyID uuid.UUID, unit string) uuid.UUID {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/v1/applications", &applicant, gin.H{
		"property_id":  propertyID.String(),
		"unit_number":  unit,
		"monthly_rent": 1500,
		"move_in_date": "2025-03-01",
	})
	require.Equal(s.t, http.StatusCreated, status, env.Message)

	var app model.RentalApplication
	require.NoError(s.t, json.Unmarshal(env.Data, &app))
	return app.ID
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type approveData struct {
	Success      bool      `json:"success"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Replayed     bool      `json:"replayed"`
	PaymentCount int       `json:"payment_count"`
}

type failureData struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Field  string `json:"field"`
	Reason struct {
		Kind    string                 `json:"kind"`
		Details map[string]interface{} `json:"details"`
	} `json:"reason"`
}

func TestApproveFlow_LastUnitThenCompetingApplication(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	alice := s.user(constants.RoleApplicant)
	bob := s.user(constants.RoleApplicant)
	property := s.seedProperty(owner, 10, 9)

	app1 := s.submit(alice, property.ID, "Unit 10")
	app2 := s.submit(bob, property.ID, "Unit 10")

	status, env := s.do(http.MethodPost, "/api/v1/applications/"+app1.String()+"/approve", &owner, gin.H{"lease_duration_months": 6})
	require.Equal(t, http.StatusOK, status, env.Message)
	approved := decode[approveData](t, env.Data)
	assert.True(t, approved.Success)
	assert.Equal(t, 6, approved.PaymentCount)

	status, env = s.do(http.MethodGet, "/api/v1/tenants/"+approved.TenantID.String()+"/payments", &alice, nil)
	require.Equal(t, http.StatusOK, status)
	payments := decode[struct {
		Payments []model.Payment `json:"payments"`
	}](t, env.Data)
	assert.Len(t, payments.Payments, 6)

	status, env = s.do(http.MethodGet, "/api/v1/properties/"+property.ID.String(), &owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), decode[map[string]interface{}](t, env.Data)["available_units"])

	status, env = s.do(http.MethodPost, "/api/v1/applications/"+app2.String()+"/approve", &owner, gin.H{"lease_duration_months": 12})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, utils.ErrCodeConflict, env.Code)
	failed := decode[failureData](t, env.Data)
	assert.Equal(t, string(service.ConflictUnitUnavailable), failed.Kind)
	assert.Equal(t, string(service.ReasonAlreadyDecided), failed.Reason.Kind)
	assert.Equal(t, app1.String(), failed.Reason.Details["application_id"])
}

func TestApprove_Validation(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	applicant := s.user(constants.RoleApplicant)
	property := s.seedProperty(owner, 3, 0)
	app := s.submit(applicant, property.ID, "1A")
	path := "/api/v1/applications/" + app.String() + "/approve"

	for _, months := range []int{0, -6, 7} {
		status, env := s.do(http.MethodPost, path, &owner, gin.H{"lease_duration_months": months})
		assert.Equal(t, http.StatusBadRequest, status, "months=%d", months)
		assert.Equal(t, "lease_duration_months", decode[failureData](t, env.Data).Field)
	}

	status, _ := s.do(http.MethodPost, "/api/v1/applications/not-a-uuid/approve", &owner, gin.H{"lease_duration_months": 6})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/api/v1/applications/"+uuid.NewString()+"/approve", &owner, gin.H{"lease_duration_months": 6})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestApprove_RequiresPropertyOwner(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	stranger := s.user(constants.RoleOwner)
	applicant := s.user(constants.RoleApplicant)
	property := s.seedProperty(owner, 3, 0)
	app := s.submit(applicant, property.ID, "1A")

	status, _ := s.do(http.MethodPost, "/api/v1/applications/"+app.String()+"/approve", &stranger, gin.H{"lease_duration_months": 6})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(http.MethodPost, "/api/v1/applications/"+app.String()+"/approve", &applicant, gin.H{"lease_duration_months": 6})
	assert.Equal(t, http.StatusForbidden, status)

	admin := s.user(constants.RoleAdmin)
	status, _ = s.do(http.MethodPost, "/api/v1/applications/"+app.String()+"/approve", &admin, gin.H{"lease_duration_months": 6})
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/v1/applications/"+app.String()+"/approve", nil, gin.H{"lease_duration_months": 6})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestReject_ThenApproveIsInvalidState(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	applicant := s.user(constants.RoleApplicant)
	property := s.seedProperty(owner, 3, 0)
	app := s.submit(applicant, property.ID, "1A")
	base := "/api/v1/applications/" + app.String()

	status, env := s.do(http.MethodPost, base+"/reject", &owner, gin.H{"rejection_reason": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "rejection_reason", decode[failureData](t, env.Data).Field)

	status, _ = s.do(http.MethodPost, base+"/reject", &owner, gin.H{"rejection_reason": "insufficient income"})
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(http.MethodGet, base, &applicant, nil)
	require.Equal(t, http.StatusOK, status)
	rejected := decode[model.RentalApplication](t, env.Data)
	assert.Equal(t, constants.ApplicationStatusRejected, rejected.Status)
	assert.Equal(t, "insufficient income", rejected.RejectionReason)

	status, env = s.do(http.MethodPost, base+"/approve", &owner, gin.H{"lease_duration_months": 6})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, utils.ErrCodeInvalidState, env.Code)
	failed := decode[failureData](t, env.Data)
	assert.Equal(t, string(service.ConflictApplicationNotPending), failed.Kind)
	assert.Equal(t, constants.ApplicationStatusRejected, failed.Status)

	status, _ = s.do(http.MethodPost, base+"/reject", &owner, gin.H{"rejection_reason": "again"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestApprove_IdempotencyKeyReplays(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	applicant := s.user(constants.RoleApplicant)
	property := s.seedProperty(owner, 3, 0)
	app := s.submit(applicant, property.ID, "1A")
	path := "/api/v1/applications/" + app.String() + "/approve"

	status, env := s.do(http.MethodPost, path, &owner, gin.H{"lease_duration_months": 12}, IdempotencyKeyHeader, "retry-1")
	require.Equal(t, http.StatusOK, status)
	first := decode[approveData](t, env.Data)
	assert.False(t, first.Replayed)

	status, env = s.do(http.MethodPost, path, &owner, gin.H{"lease_duration_months": 12}, IdempotencyKeyHeader, "retry-1")
	require.Equal(t, http.StatusOK, status)
	again := decode[approveData](t, env.Data)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.TenantID, again.TenantID)

	var tenants int64
	require.NoError(t, s.db.Model(&model.Tenant{}).Count(&tenants).Error)
	assert.Equal(t, int64(1), tenants)
}

func TestCheckAvailability_Anonymous(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	full := s.seedProperty(owner, 2, 2)
	open := s.seedProperty(owner, 2, 0)

	status, env := s.do(http.MethodGet, "/api/v1/properties/"+open.ID.String()+"/units/3B/availability", nil, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"is_available":true}`, string(env.Data))

	status, env = s.do(http.MethodGet, "/api/v1/properties/"+full.ID.String()+"/units/3B/availability", nil, nil)
	require.Equal(t, http.StatusOK, status)
	result := decode[struct {
		IsAvailable bool `json:"is_available"`
		Reason      struct {
			Kind string `json:"kind"`
		} `json:"reason"`
	}](t, env.Data)
	assert.False(t, result.IsAvailable)
	assert.Equal(t, string(service.ReasonPropertyAtCapacity), result.Reason.Kind)

	status, _ = s.do(http.MethodGet, "/api/v1/properties/"+uuid.NewString()+"/units/3B/availability", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodGet, "/api/v1/properties/"+open.ID.String()+"/units/3B/availability?exclude_application_id=nope", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDeleteApprovedApplication_Warns(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	applicant := s.user(constants.RoleApplicant)
	property := s.seedProperty(owner, 3, 0)
	app := s.submit(applicant, property.ID, "1A")
	base := "/api/v1/applications/" + app.String()

	status, _ := s.do(http.MethodPost, base+"/documents", &applicant, gin.H{"file_name": "id.pdf", "storage_key": "docs/id.pdf"})
	require.Equal(t, http.StatusCreated, status)

	status, env := s.do(http.MethodPost, base+"/approve", &owner, gin.H{"lease_duration_months": 6})
	require.Equal(t, http.StatusOK, status)
	tenantID := decode[approveData](t, env.Data).TenantID

	status, env = s.do(http.MethodDelete, base, &owner, nil)
	require.Equal(t, http.StatusOK, status)
	data := decode[map[string]interface{}](t, env.Data)
	assert.Equal(t, float64(1), data["documents_removed"])
	assert.NotEmpty(t, data["warning"])

	status, _ = s.do(http.MethodGet, base, &owner, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodGet, "/api/v1/tenants/"+tenantID.String(), &applicant, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestTerminateTenancy(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	applicant := s.user(constants.RoleApplicant)
	property := s.seedProperty(owner, 3, 0)
	app := s.submit(applicant, property.ID, "1A")

	status, env := s.do(http.MethodPost, "/api/v1/applications/"+app.String()+"/approve", &owner, gin.H{"lease_duration_months": 6})
	require.Equal(t, http.StatusOK, status)
	tenantPath := "/api/v1/tenants/" + decode[approveData](t, env.Data).TenantID.String()

	status, _ = s.do(http.MethodPost, tenantPath+"/terminate", &applicant, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(http.MethodPost, tenantPath+"/terminate", &owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, constants.TenantStatusTerminated, decode[model.Tenant](t, env.Data).Status)

	status, env = s.do(http.MethodPost, tenantPath+"/terminate", &owner, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, utils.ErrCodeInvalidState, env.Code)

	status, env = s.do(http.MethodGet, tenantPath+"/audit", &owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), decode[map[string]interface{}](t, env.Data)["total"])

	status, env = s.do(http.MethodGet, "/api/v1/applications/"+app.String()+"/audit", &owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), decode[map[string]interface{}](t, env.Data)["total"])
}

func TestListApplications_ScopedToCaller(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	alice := s.user(constants.RoleApplicant)
	bob := s.user(constants.RoleApplicant)
	property := s.seedProperty(owner, 3, 0)

	s.submit(alice, property.ID, "1A")
	s.submit(bob, property.ID, "1B")

	total := func(who actor, query string) float64 {
		status, env := s.do(http.MethodGet, "/api/v1/applications"+query, &who, nil)
		require.Equal(t, http.StatusOK, status)
		return decode[map[string]interface{}](t, env.Data)["total"].(float64)
	}

	assert.Equal(t, float64(1), total(alice, ""))
	assert.Equal(t, float64(1), total(alice, "?property_id="+property.ID.String()))
	assert.Equal(t, float64(2), total(owner, "?property_id="+property.ID.String()))
}

func TestCreateProperty(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	applicant := s.user(constants.RoleApplicant)

	status, env := s.do(http.MethodPost, "/api/v1/properties", &owner, gin.H{"name": "Cedar Flats", "total_units": 12})
	require.Equal(t, http.StatusCreated, status)
	created := decode[model.Property](t, env.Data)
	assert.Equal(t, 12, created.TotalUnits)
	assert.Equal(t, 0, created.OccupiedUnits)
	assert.Equal(t, owner.id, created.OwnerID)

	status, _ = s.do(http.MethodPost, "/api/v1/properties", &owner, gin.H{"name": "Cedar Flats", "total_units": 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/api/v1/properties", &applicant, gin.H{"name": "Nope", "total_units": 2})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(http.MethodGet, "/api/v1/properties", &owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]model.Property](t, env.Data), 1)

	status, _ = s.do(http.MethodGet, "/api/v1/properties/"+created.ID.String()+"/tenants", &applicant, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestSubmitApplication_Validation(t *testing.T) {
	s := newTestServer(t)
	owner := s.user(constants.RoleOwner)
	applicant := s.user(constants.RoleApplicant)
	property := s.seedProperty(owner, 3, 0)

	cases := []gin.H{
		{"property_id": "x", "unit_number": "1A", "move_in_date": "2025-03-01"},
		{"property_id": property.ID.String(), "unit_number": "  ", "move_in_date": "2025-03-01"},
		{"property_id": property.ID.String(), "unit_number": "1A", "move_in_date": "03/01/2025"},
		{"property_id": property.ID.String(), "unit_number": "1A", "move_in_date": "2025-03-01", "monthly_rent": -1},
	}
	for i, body := range cases {
		status, _ := s.do(http.MethodPost, "/api/v1/applications", &applicant, body)
		assert.Equal(t, http.StatusBadRequest, status, "case %d", i)
	}

	status, _ := s.do(http.MethodPost, "/api/v1/applications", &applicant, gin.H{
		"property_id":  uuid.NewString(),
		"unit_number":  "1A",
		"move_in_date": "2025-03-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRateLimitedDecisions(t *testing.T) {
	s := newTestServer(t)
	limiter := middleware.NewRateLimiter(0, 1)

	r := gin.New()
	RegisterRoutes(r, Handlers{
		Application: &ApplicationHandler{},
		Property:    &PropertyHandler{},
		Tenant:      &TenantHandler{},
		Audit:       &AuditHandler{},
	}, RouteOptions{JWTSecret: testSecret, Issuer: testIssuer, DecisionLimiter: limiter.Handler()})
	s.router = r

	owner := s.user(constants.RoleOwner)
	// 第一次通过限流后因 id 非法返回 400，第二次被限流
	status, _ := s.do(http.MethodPost, "/api/v1/applications/bad/approve", &owner, gin.H{"lease_duration_months": 6})
	assert.Equal(t, http.StatusBadRequest, status)
	status, env := s.do(http.MethodPost, "/api/v1/applications/bad/approve", &owner, gin.H{"lease_duration_months": 6})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, utils.ErrCodeRateLimited, env.Code)
}
