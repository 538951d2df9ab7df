package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/clients"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/events"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/handlers"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/repository"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/router"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/services"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// ServiceContainer wires every bridge component.
type ServiceContainer struct {
	Config *config.Config

	// Database
	DB *gorm.DB
	Tx db.Transactor

	// Repositories
	StateRepo       repository.BridgeStateRepository
	AssetRepo       repository.AssetRepository
	UsedProofRepo   repository.UsedProofRepository
	MetadataRepo    repository.MetadataRepository
	TransferRepo    repository.TransferRepository
	WithdrawRepo    repository.WithdrawResultRepository
	BridgedTokenRep repository.BridgedTokenRepository

	// Core Services
	StorageMeter   *services.StorageMeter
	BridgeState    *services.BridgeStateService
	PauseControl   *services.PauseControlService
	ReplayLedger   *services.ReplayLedgerService
	AssetRegistry  *services.AssetRegistryService
	BridgedTokens  *services.BridgedTokenService
	Orchestrator   *services.TransferOrchestrator
	Dispatcher     *services.VerificationDispatcher
	ProverClient   *clients.ProverClient
	MonitoringSvc  *services.MonitoringService
	PushService    *services.WebSocketPushService
	EventPublisher services.EventPublisher

	// Event Services
	NATSClient *clients.NATSClient
	Relay      *events.Relay
}

// NewServiceContainer builds the container over an opened, migrated database.
func NewServiceContainer(cfg *config.Config, conn *gorm.DB) (*ServiceContainer, error) {
	log.Println("🚀 Initializing Service Container...")

	c := &ServiceContainer{Config: cfg, DB: conn, Tx: db.NewTransactor(conn)}

	c.initRepositories()

	if err := c.initEventServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize event services: %w", err)
	}
	if err := c.initCoreServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize core services: %w", err)
	}

	log.Println("✅ Service Container initialized successfully")
	return c, nil
}

// initRepositories  Repository
func (c *ServiceContainer) initRepositories() {
	log.Println("📦 Initializing Repositories...")

	c.StateRepo = repository.NewBridgeStateRepository(c.DB)
	c.AssetRepo = repository.NewAssetRepository(c.DB)
	c.UsedProofRepo = repository.NewUsedProofRepository(c.DB)
	c.MetadataRepo = repository.NewMetadataRepository(c.DB)
	c.TransferRepo = repository.NewTransferRepository(c.DB)
	c.WithdrawRepo = repository.NewWithdrawResultRepository(c.DB)
	c.BridgedTokenRep = repository.NewBridgedTokenRepository(c.DB)
}

// initEventServices sets up the push hub and, when enabled, NATS.
func (c *ServiceContainer) initEventServices() error {
	c.PushService = services.NewWebSocketPushService()
	publishers := services.MultiPublisher{c.PushService}

	if !c.Config.NATS.Enabled {
		log.Println("⚠️ NATS disabled, relay subjects and event fan-out are off")
		c.EventPublisher = publishers
		return nil
	}

	log.Println("🔌 Connecting to NATS...")
	natsClient, err := clients.NewNATSClient(c.Config.NATS)
	if err != nil {
		log.Printf("❌ Failed to connect to NATS at %s: %v", c.Config.NATS.URL, err)
		return err
	}
	c.NATSClient = natsClient
	log.Printf("✅ NATS client connected: %s", c.Config.NATS.URL)

	publishers = append(publishers, events.NewEventPublisher(natsClient, c.Config.NATS.Subjects.EventsPrefix))
	c.EventPublisher = publishers
	return nil
}

func (c *ServiceContainer) initCoreServices() error {
	bridgeCfg := c.Config.Bridge

	meter, err := services.NewStorageMeter(bridgeCfg)
	if err != nil {
		return err
	}
	c.StorageMeter = meter

	var emitter types.Address
	if bridgeCfg.EmitterAddress != "" {
		if emitter, err = types.DecodeAddress(bridgeCfg.EmitterAddress); err != nil {
			return fmt.Errorf("emitter address: %w", err)
		}
	}

	c.BridgeState = services.NewBridgeStateService(c.StateRepo, bridgeCfg.OwnerID, c.EventPublisher)
	c.PauseControl = services.NewPauseControlService(c.StateRepo, c.EventPublisher)
	c.ReplayLedger = services.NewReplayLedgerService(c.UsedProofRepo)
	c.BridgedTokens = services.NewBridgedTokenService(c.BridgedTokenRep, c.Tx, bridgeCfg.AccountID)
	c.AssetRegistry = services.NewAssetRegistryService(
		bridgeCfg.AccountID,
		c.AssetRepo,
		c.BridgedTokens,
		c.PauseControl,
		meter,
		c.Tx,
		c.EventPublisher,
	)
	c.Orchestrator = services.NewTransferOrchestrator(services.OrchestratorDeps{
		State:       c.StateRepo,
		Transfers:   c.TransferRepo,
		Metadata:    c.MetadataRepo,
		Withdrawals: c.WithdrawRepo,
		Registry:    c.AssetRegistry,
		Ledger:      c.ReplayLedger,
		Contracts:   c.BridgedTokens,
		Pause:       c.PauseControl,
		Meter:       meter,
		Tx:          c.Tx,
		Publisher:   c.EventPublisher,
		Emitter:     emitter,
	})
	c.BridgedTokens.SetWithdrawalReporter(c.Orchestrator)

	verifierCfg := c.Config.Verifier
	var remote services.VerificationRequestPublisher
	var verifier services.ProofVerifier
	if verifierCfg.Mode == config.VerifierModeNATS {
		remote = c.NATSClient
	} else {
		c.ProverClient = clients.NewProverClient(verifierCfg)
		verifier = c.ProverClient
	}
	c.Dispatcher = services.NewVerificationDispatcher(c.TransferRepo, verifier, remote, c.Orchestrator, services.DispatcherOptions{
		Workers:          verifierCfg.Workers,
		Timeout:          time.Duration(verifierCfg.Timeout) * time.Second,
		RecoveryInterval: time.Duration(verifierCfg.RecoveryInterval) * time.Second,
		StaleAfter:       time.Duration(verifierCfg.StaleAfter) * time.Second,
	})
	c.Orchestrator.SetScheduler(c.Dispatcher)

	if c.NATSClient != nil {
		var results events.ResultDeliverer
		if remote != nil {
			results = c.Dispatcher
		}
		c.Relay = events.NewRelay(c.NATSClient, c.Orchestrator, results, c.Config.NATS.Subjects)
	}

	c.MonitoringSvc = services.NewMonitoringService(c.DB, c.TransferRepo, c.PauseControl)
	return nil
}

// Start initializes the bridge state from config and starts background services.
func (c *ServiceContainer) Start(ctx context.Context) error {
	state, err := c.BridgeState.EnsureInitialized(ctx, c.Config.Bridge)
	if err != nil {
		return fmt.Errorf("failed to initialize bridge state: %w", err)
	}
	log.Printf("✅ [ServiceContainer] Bridge ready: owner=%s locker=%s paused=%v",
		state.OwnerID, state.LockerAddress.Hex(), services.FeatureNames(state.PausedMask))

	if c.Relay != nil {
		if err := c.Relay.Start(); err != nil {
			return fmt.Errorf("failed to start NATS relay: %w", err)
		}
		log.Printf("✅ [ServiceContainer] NATS relay subscribed")
	}

	c.Dispatcher.Start()
	log.Printf("✅ [ServiceContainer] Verification dispatcher started")

	c.MonitoringSvc.Start()
	return nil
}

// Handlers builds the HTTP handlers over the container's services.
func (c *ServiceContainer) Handlers() router.Handlers {
	return router.Handlers{
		Bridge:    handlers.NewBridgeHandler(c.BridgeState, c.AssetRegistry, c.Orchestrator, c.BridgedTokens),
		Admin:     handlers.NewAdminHandler(c.BridgeState, c.PauseControl),
		AdminAuth: handlers.NewAdminAuthHandler(c.Config.Admin, c.Config.Bridge.OwnerID),
		WebSocket: handlers.NewWebSocketHandler(c.PushService),
	}
}

// Cleanup stops background services and closes NATS. The database is closed by the caller.
func (c *ServiceContainer) Cleanup() {
	log.Println("🧹 Cleaning up services...")

	if c.MonitoringSvc != nil {
		c.MonitoringSvc.Stop()
	}
	if c.Dispatcher != nil {
		c.Dispatcher.Stop()
	}
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.PushService != nil {
		c.PushService.Stop()
	}
}
