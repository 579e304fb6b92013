package main

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/taichu-system/rental-management/internal/config"
	"github.com/taichu-system/rental-management/internal/handler"
	"github.com/taichu-system/rental-management/internal/logger"
	"github.com/taichu-system/rental-management/internal/metrics"
	"github.com/taichu-system/rental-management/internal/repository"
	"github.com/taichu-system/rental-management/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// application 进程内的服务组装
type application struct {
	ledger          *service.OccupancyLedger
	transition      *service.TransitionService
	registry        *service.ApplicationRegistry
	propertyService *service.PropertyService
	tenantService   *service.TenantService
	auditService    *service.AuditService
	metrics         *metrics.Metrics
	closers         []func()
}

func buildApplication(cfg *config.Config, db *gorm.DB, reg prometheus.Registerer) *application {
	m := metrics.New(reg)

	propertyRepo := repository.NewPropertyRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditService := service.NewAuditService(auditRepo)
	ledger := service.NewOccupancyLedger(propertyRepo, tenantRepo)

	// 附件存储不在本服务内，只维护元数据
	registry := service.NewApplicationRegistry(applicationRepo, propertyRepo, documentRepo, nil, service.LeasePolicy{
		AllowedDurations: cfg.Lease.AllowedDurations,
		AllowCustom:      cfg.Lease.AllowCustomDuration,
	})

	app := &application{
		ledger:          ledger,
		registry:        registry,
		propertyService: service.NewPropertyService(propertyRepo, auditService),
		tenantService:   service.NewTenantService(tenantRepo, paymentRepo, m),
		auditService:    auditService,
		metrics:         m,
	}

	notifier := app.buildNotifier(cfg.Notifier)

	app.transition = service.NewTransitionService(service.TransitionDeps{
		TxManager:    service.NewTransactionManager(db, cfg.Transaction.Timeout, cfg.Transaction.MaxRetries),
		Properties:   propertyRepo,
		Applications: applicationRepo,
		Tenants:      tenantRepo,
		Payments:     paymentRepo,
		Registry:     registry,
		Ledger:       ledger,
		Schedule:     service.NewPaymentScheduleGenerator(cfg.Lease.BillingAnchor),
		Audit:        auditService,
		Notifier:     notifier,
		Metrics:      m,
	})
	return app
}

// buildNotifier redis 不可达时退回日志通知
func (a *application) buildNotifier(cfg config.NotifierConfig) service.Notifier {
	log := logger.GetLogger()
	if cfg.Driver != "redis" {
		return service.NewLogNotifier()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis notifier unavailable, falling back to log notifier",
			zap.String("addr", cfg.RedisAddr),
			zap.Error(err),
		)
		_ = client.Close()
		return service.NewLogNotifier()
	}

	a.closers = append(a.closers, func() { _ = client.Close() })
	log.Info("redis notifier enabled", zap.String("addr", cfg.RedisAddr), zap.String("channel", cfg.Channel))
	return service.NewRedisNotifier(client, cfg.Channel)
}

func (a *application) handlers() handler.Handlers {
	return handler.Handlers{
		Application: handler.NewApplicationHandler(a.transition, a.registry, a.propertyService),
		Property:    handler.NewPropertyHandler(a.propertyService, a.transition, a.tenantService),
		Tenant:      handler.NewTenantHandler(a.tenantService, a.transition, a.propertyService),
		Audit:       handler.NewAuditHandler(a.auditService, a.registry, a.tenantService, a.propertyService),
	}
}

func (a *application) Close() {
	for _, closeFn := range a.closers {
		closeFn()
	}
}
