package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/taichu-system/rental-management/internal/logger"
	"github.com/taichu-system/rental-management/internal/metrics"
	"github.com/taichu-system/rental-management/internal/service"
	"go.uber.org/zap"
)

const jobTimeout = 5 * time.Minute

// MaintenanceConfig 定时任务配置，cron 表达式为 5 段格式
type MaintenanceConfig struct {
	OverdueCron   string
	ReconcileCron string
	RepairDrift   bool
}

// MaintenanceScheduler 逾期付款扫描与入住台账对账
type MaintenanceScheduler struct {
	tenantService *service.TenantService
	ledger        *service.OccupancyLedger
	metrics       *metrics.Metrics
	config        MaintenanceConfig
	cron          *cron.Cron
	log           *zap.Logger
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	now           func() time.Time
}

func NewMaintenanceScheduler(
	tenantService *service.TenantService,
	ledger *service.OccupancyLedger,
	m *metrics.Metrics,
	config MaintenanceConfig,
) *MaintenanceScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &MaintenanceScheduler{
		tenantService: tenantService,
		ledger:        ledger,
		metrics:       m,
		config:        config,
		cron:          cron.New(),
		log:           logger.GetLogger().Named("maintenance"),
		ctx:           ctx,
		cancel:        cancel,
		now:           time.Now,
	}
}

// Start 注册任务并启动调度
func (s *MaintenanceScheduler) Start() error {
	if s.config.OverdueCron != "" {
		if _, err := s.cron.AddFunc(s.config.OverdueCron, s.runJob("overdue_sweep", s.RunOverdueSweep)); err != nil {
			return fmt.Errorf("注册逾期扫描任务失败: %w", err)
		}
	}
	if s.config.ReconcileCron != "" {
		if _, err := s.cron.AddFunc(s.config.ReconcileCron, s.runJob("ledger_reconcile", s.RunReconcile)); err != nil {
			return fmt.Errorf("注册台账对账任务失败: %w", err)
		}
	}

	s.cron.Start()
	s.log.Info("maintenance scheduler started",
		zap.String("overdue_cron", s.config.OverdueCron),
		zap.String("reconcile_cron", s.config.ReconcileCron),
	)
	return nil
}

func (s *MaintenanceScheduler) Stop() {
	s.log.Info("stopping maintenance scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *MaintenanceScheduler) runJob(name string, job func(ctx context.Context) error) func() {
	return func() {
		s.wg.Add(1)
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(logger.WithContext(s.ctx, s.log.With(zap.String("job", name))), jobTimeout)
		defer cancel()

		started := time.Now()
		if err := job(ctx); err != nil {
			s.log.Error("maintenance job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Debug("maintenance job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(started)))
	}
}

// RunOverdueSweep 把已过到期日的 pending 付款标记为 overdue
func (s *MaintenanceScheduler) RunOverdueSweep(ctx context.Context) error {
	_, err := s.tenantService.MarkOverdue(ctx, s.now())
	return err
}

// RunReconcile 对账并按配置修复漂移
func (s *MaintenanceScheduler) RunReconcile(ctx context.Context) error {
	drifts, err := s.ledger.Reconcile(ctx, s.config.RepairDrift)
	if err != nil {
		return err
	}
	s.metrics.SetLedgerDrift(len(drifts))
	return nil
}
