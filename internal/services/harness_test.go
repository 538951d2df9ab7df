package services

import (
	"context"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db/dbtest"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/eventlog"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/repository"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

const (
	testOwner      = "bridge"
	testController = "guardian"
)

var (
	testLocker    = types.MustDecodeAddress("57f1887a8bf19b14fc0df6fd9b2acc9af147ea85")
	testConnector = types.MustDecodeAddress("6b175474e89094c77da98b954eedeac495271d0f")
	testAsset     = types.MustDecodeAddress("629a673a8242c2ac4b7b8c5d8735fbeac21a6205")
	testSender    = types.MustDecodeAddress("6b175474e89094c44da98b954eedeac495271d0f")
	testEmitter   = types.MustDecodeAddress("1111111111111111111111111111111111111111")

	testBridgeConfig = config.BridgeConfig{
		StorageByteCost:        "1",
		BridgeTokenInitBalance: "1000",
		TokenStorageDeposit:    "100",
		UpdateMetadataDeposit:  "50",
	}

	// covers every requirement of testBridgeConfig
	plenty = uint256.NewInt(10_000)
)

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []string
}

func (s *recordingScheduler) Schedule(_ context.Context, transfer *models.BridgeTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, transfer.ID)
	return nil
}

func (s *recordingScheduler) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scheduled...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []BridgeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event BridgeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	conn      *gorm.DB
	transfers repository.TransferRepository

	state     *BridgeStateService
	pause     *PauseControlService
	ledger    *ReplayLedgerService
	registry  *AssetRegistryService
	tokens    *BridgedTokenService
	orch      *TransferOrchestrator
	meter     *StorageMeter
	scheduler *recordingScheduler
	events    *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	conn := dbtest.New(t)
	tx := db.NewTransactor(conn)
	meter, err := NewStorageMeter(testBridgeConfig)
	require.NoError(t, err)

	h := &harness{
		t:         t,
		ctx:       context.Background(),
		conn:      conn,
		transfers: repository.NewTransferRepository(conn),
		meter:     meter,
		scheduler: &recordingScheduler{},
		events:    &recordingPublisher{},
	}

	stateRepo := repository.NewBridgeStateRepository(conn)
	h.state = NewBridgeStateService(stateRepo, testOwner, h.events)
	h.pause = NewPauseControlService(stateRepo, h.events)
	h.ledger = NewReplayLedgerService(repository.NewUsedProofRepository(conn))
	h.tokens = NewBridgedTokenService(repository.NewBridgedTokenRepository(conn), tx, testOwner)
	h.registry = NewAssetRegistryService(testOwner, repository.NewAssetRepository(conn), h.tokens, h.pause, meter, tx, h.events)
	h.orch = NewTransferOrchestrator(OrchestratorDeps{
		State:       stateRepo,
		Transfers:   h.transfers,
		Metadata:    repository.NewMetadataRepository(conn),
		Withdrawals: repository.NewWithdrawResultRepository(conn),
		Registry:    h.registry,
		Ledger:      h.ledger,
		Contracts:   h.tokens,
		Pause:       h.pause,
		Meter:       meter,
		Tx:          tx,
		Publisher:   h.events,
		Emitter:     testEmitter,
	})
	h.tokens.SetWithdrawalReporter(h.orch)
	h.orch.SetScheduler(h.scheduler)

	_, err = h.state.Initialize(h.ctx, testOwner, "prover", testLocker)
	require.NoError(t, err)
	require.NoError(t, h.state.SetController(h.ctx, testOwner, testController))
	require.NoError(t, h.state.SetMetadataConnector(h.ctx, testOwner, testConnector))
	return h
}

func (h *harness) provision(asset types.Address) string {
	h.t.Helper()
	contractID, err := h.registry.Provision(h.ctx, "alice", asset, plenty)
	require.NoError(h.t, err)
	return contractID
}

func lockedEvent(assetID, recipient string) *eventlog.LockedEvent {
	return &eventlog.LockedEvent{
		LockerAddress: testLocker,
		Asset:         testAsset,
		Sender:        testSender,
		AssetID:       assetID,
		Recipient:     recipient,
		TokenURI:      "ipfs://token/" + assetID,
	}
}

func (h *harness) lockedProof(ev *eventlog.LockedEvent, logIndex uint64, header string) *types.Proof {
	h.t.Helper()
	raw, err := eventlog.EncodeLocked(eventlog.LockedSchema, ev)
	require.NoError(h.t, err)
	return &types.Proof{
		LogIndex:     logIndex,
		LogEntryData: raw,
		ReceiptIndex: 0,
		ReceiptData:  []byte("receipt"),
		HeaderData:   []byte(header),
		ProofPath:    nil,
	}
}

func (h *harness) metadataProof(connector types.Address, name, symbol string, timestamp uint64) *types.Proof {
	h.t.Helper()
	raw, err := eventlog.EncodeMetadata(eventlog.MetadataSchema, &eventlog.MetadataUpdateEvent{
		ConnectorAddress: connector,
		Asset:            testAsset,
		Name:             name,
		Symbol:           symbol,
		Timestamp:        timestamp,
	})
	require.NoError(h.t, err)
	return &types.Proof{
		LogIndex:     1,
		LogEntryData: raw,
		HeaderData:   []byte("metadata header"),
	}
}

func (h *harness) transfer(id string) *models.BridgeTransfer {
	h.t.Helper()
	transfer, err := h.orch.GetTransfer(h.ctx, id)
	require.NoError(h.t, err)
	return transfer
}
