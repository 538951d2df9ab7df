package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// 跨链转账指标
	// ============================================
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transfers_total",
			Help: "Total number of bridge transfers by kind and status",
		},
		[]string{"kind", "status"},
	)

	PendingTransfers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_pending_transfers",
		Help: "Number of transfers awaiting a verification answer",
	})

	ProofVerificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_proof_verification_duration_seconds",
			Help:    "Proof verification round trip in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	ReplayedProofs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_replayed_proofs_total",
		Help: "Total number of proofs rejected because their event was already applied",
	})

	AssetsProvisioned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_assets_provisioned_total",
		Help: "Total number of provisioned assets",
	})

	WithdrawalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_withdrawals_total",
		Help: "Total number of reported outbound withdrawals",
	})

	PausedMask = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_paused_mask",
		Help: "Current pause mask",
	})

	// ============================================
	// 数据库连接指标
	// ============================================
	DBConnectionPoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_pool_size",
		Help: "Database connection pool size",
	})

	DBConnectionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_active",
		Help: "Number of active database connections",
	})

	DBConnectionIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_idle",
		Help: "Number of idle database connections",
	})

	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	// ============================================
	// NATS 连接和消息指标
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_nats_messages_received_total",
			Help: "Total number of NATS messages received",
		},
		[]string{"subject"},
	)

	NATSMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_nats_messages_failed_total",
			Help: "Total number of NATS messages failed to process",
		},
		[]string{"subject", "error_type"},
	)

	// ============================================
	// HTTP 指标
	// ============================================
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)
