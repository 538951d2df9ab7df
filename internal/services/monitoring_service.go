package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/metrics"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/repository"
)

// MonitoringService 监控服务，负责定期更新 Prometheus metrics
type MonitoringService struct {
	db        *gorm.DB
	transfers repository.TransferRepository
	pause     *PauseControlService
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	interval  time.Duration
}

// NewMonitoringService 创建监控服务
func NewMonitoringService(db *gorm.DB, transfers repository.TransferRepository, pause *PauseControlService) *MonitoringService {
	return &MonitoringService{
		db:        db,
		transfers: transfers,
		pause:     pause,
		stopCh:    make(chan struct{}),
		interval:  10 * time.Second,
	}
}

// Start 启动监控服务
func (m *MonitoringService) Start() {
	log.Println("🚀 Starting monitoring service...")

	m.wg.Add(1)
	go m.monitor()

	log.Println("✅ Monitoring service started")
}

// Stop 停止监控服务
func (m *MonitoringService) Stop() {
	m.stopOnce.Do(func() {
		log.Println("🛑 Stopping monitoring service...")
		close(m.stopCh)
		m.wg.Wait()
		log.Println("✅ Monitoring service stopped")
	})
}

func (m *MonitoringService) monitor() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.refresh()
		}
	}
}

func (m *MonitoringService) refresh() {
	m.updateDatabaseMetrics()
	m.updateBridgeMetrics(context.Background())
}

// updateDatabaseMetrics 更新数据库指标
func (m *MonitoringService) updateDatabaseMetrics() {
	sqlDB, err := m.db.DB()
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return
	}

	stats := sqlDB.Stats()
	metrics.DBConnectionPoolSize.Set(float64(stats.MaxOpenConnections))
	metrics.DBConnectionActive.Set(float64(stats.OpenConnections - stats.Idle))
	metrics.DBConnectionIdle.Set(float64(stats.Idle))

	if err := sqlDB.Ping(); err != nil {
		metrics.DBConnectionStatus.Set(0)
	} else {
		metrics.DBConnectionStatus.Set(1)
	}
}

// updateBridgeMetrics resyncs gauges that are otherwise maintained incrementally.
func (m *MonitoringService) updateBridgeMetrics(ctx context.Context) {
	pending, err := m.transfers.CountByStatus(ctx, models.TransferStatusVerifying)
	if err != nil {
		log.Printf("⚠️ [Monitoring] Failed to count pending transfers: %v", err)
	} else {
		metrics.PendingTransfers.Set(float64(pending))
	}

	mask, err := m.pause.Mask(ctx)
	if err == nil {
		metrics.PausedMask.Set(float64(mask))
	}
}
