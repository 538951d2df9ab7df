package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/eventlog"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/metrics"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/repository"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// VerificationScheduler hands a transfer in status verifying to the proof verifier. The
// answer comes back through TransferOrchestrator.CompleteVerification.
type VerificationScheduler interface {
	Schedule(ctx context.Context, transfer *models.BridgeTransfer) error
}

// OrchestratorDeps are the collaborators of a TransferOrchestrator.
type OrchestratorDeps struct {
	State       repository.BridgeStateRepository
	Transfers   repository.TransferRepository
	Metadata    repository.MetadataRepository
	Withdrawals repository.WithdrawResultRepository
	Registry    AssetRegistry
	Ledger      ReplayLedger
	Contracts   SubContractGateway
	Pause       PauseChecker
	Meter       *StorageMeter
	Tx          db.Transactor
	Publisher   EventPublisher
	// Emitter is the address outbound Withdraw logs are rendered with.
	Emitter types.Address
}

// TransferOrchestrator drives inbound transfers and metadata updates through
// submitted → verifying → applied|rejected and certifies outbound withdrawals.
type TransferOrchestrator struct {
	deps      OrchestratorDeps
	scheduler VerificationScheduler
	mu        sync.Mutex // one continuation at a time
}

// NewTransferOrchestrator 创建转账编排服务
func NewTransferOrchestrator(deps OrchestratorDeps) *TransferOrchestrator {
	if deps.Publisher == nil {
		deps.Publisher = NopPublisher{}
	}
	return &TransferOrchestrator{deps: deps}
}

// SetScheduler 设置验证调度器（避免循环依赖）
func (o *TransferOrchestrator) SetScheduler(scheduler VerificationScheduler) {
	o.scheduler = scheduler
}

// FinalizeInboundTransfer validates a Locked proof and schedules its verification. Nothing
// but the transfer record is written before a positive verification answer.
func (o *TransferOrchestrator) FinalizeInboundTransfer(ctx context.Context, submitter string, proof *types.Proof, deposit *uint256.Int) (*models.BridgeTransfer, error) {
	if err := o.deps.Pause.Check(ctx, FeatureInboundTransfer); err != nil {
		return nil, err
	}
	state, err := o.deps.State.Get(ctx)
	if err != nil {
		return nil, err
	}

	event, err := eventlog.DecodeLocked(eventlog.LockedSchema, proof.LogEntryData)
	if err != nil {
		return nil, err
	}
	if event.LockerAddress != state.LockerAddress {
		return nil, fmt.Errorf("%w: got %s, expected %s", types.ErrLockerMismatch, event.LockerAddress.Hex(), state.LockerAddress.Hex())
	}
	provisioned, err := o.deps.Registry.Contains(ctx, event.Asset)
	if err != nil {
		return nil, fmt.Errorf("lookup asset: %w", err)
	}
	if !provisioned {
		return nil, fmt.Errorf("%w: %s", types.ErrAssetNotProvisioned, event.Asset.Hex())
	}

	fp := types.ComputeFingerprint(proof)
	used, err := o.deps.Ledger.Contains(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("lookup fingerprint: %w", err)
	}
	if used {
		metrics.ReplayedProofs.Inc()
		return nil, fmt.Errorf("%w: fingerprint %s", types.ErrProofReplayed, fp.Hex())
	}
	if err := o.deps.Meter.Require(deposit, o.deps.Meter.InboundRequirement(LedgerEntryDelta)); err != nil {
		return nil, err
	}

	transfer := &models.BridgeTransfer{
		Kind:        models.TransferKindInbound,
		Submitter:   submitter,
		Asset:       event.Asset,
		AssetID:     event.AssetID,
		Recipient:   event.Recipient,
		Sender:      event.Sender,
		TokenURI:    event.TokenURI,
		Fingerprint: fp.Hex(),
	}
	return o.submit(ctx, transfer, proof, deposit)
}

// UpdateMetadata validates a MetadataUpdated proof and schedules its verification.
func (o *TransferOrchestrator) UpdateMetadata(ctx context.Context, submitter string, proof *types.Proof, deposit *uint256.Int) (*models.BridgeTransfer, error) {
	if err := o.deps.Pause.Check(ctx, FeatureMetadataUpdate); err != nil {
		return nil, err
	}
	state, err := o.deps.State.Get(ctx)
	if err != nil {
		return nil, err
	}

	event, err := eventlog.DecodeMetadata(eventlog.MetadataSchema, proof.LogEntryData)
	if err != nil {
		return nil, err
	}
	if state.MetadataConnector.IsZero() || event.ConnectorAddress != state.MetadataConnector {
		return nil, fmt.Errorf("%w: got %s, expected %s", types.ErrConnectorMismatch, event.ConnectorAddress.Hex(), state.MetadataConnector.Hex())
	}
	provisioned, err := o.deps.Registry.Contains(ctx, event.Asset)
	if err != nil {
		return nil, fmt.Errorf("lookup asset: %w", err)
	}
	if !provisioned {
		return nil, fmt.Errorf("%w: %s", types.ErrAssetNotProvisioned, event.Asset.Hex())
	}
	if err := o.deps.Meter.Require(deposit, o.deps.Meter.MetadataRequirement()); err != nil {
		return nil, err
	}
	if err := o.checkFresh(ctx, event.Asset, event.Timestamp); err != nil {
		return nil, err
	}

	transfer := &models.BridgeTransfer{
		Kind:              models.TransferKindMetadata,
		Submitter:         submitter,
		Asset:             event.Asset,
		MetadataName:      event.Name,
		MetadataSymbol:    event.Symbol,
		MetadataTimestamp: event.Timestamp,
		Fingerprint:       types.ComputeFingerprint(proof).Hex(),
	}
	return o.submit(ctx, transfer, proof, deposit)
}

func (o *TransferOrchestrator) submit(ctx context.Context, transfer *models.BridgeTransfer, proof *types.Proof, deposit *uint256.Int) (*models.BridgeTransfer, error) {
	proofData, err := types.EncodeProof(proof)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidProof, err)
	}
	now := time.Now()
	transfer.ID = uuid.New().String()
	transfer.Status = models.TransferStatusSubmitted
	transfer.ProofData = proofData
	transfer.Deposit = deposit.Dec()
	transfer.CreatedAt = now
	transfer.UpdatedAt = now

	err = o.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := o.deps.Transfers.Create(ctx, transfer); err != nil {
			return fmt.Errorf("failed to create transfer: %w", err)
		}
		moved, err := o.deps.Transfers.Transition(ctx, transfer.ID, models.TransferStatusSubmitted, models.TransferStatusVerifying, nil)
		if err != nil {
			return fmt.Errorf("failed to move transfer to verifying: %w", err)
		}
		if !moved {
			return fmt.Errorf("%w: %s", types.ErrTransferNotPending, transfer.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	transfer.Status = models.TransferStatusVerifying
	metrics.TransfersTotal.WithLabelValues(string(transfer.Kind), string(models.TransferStatusSubmitted)).Inc()
	metrics.PendingTransfers.Inc()

	log.WithFields(log.Fields{
		"transfer_id": transfer.ID,
		"kind":        transfer.Kind,
		"asset":       transfer.Asset.Hex(),
		"submitter":   transfer.Submitter,
	}).Info("📥 Transfer submitted for verification")
	o.deps.Publisher.Publish(ctx, NewBridgeEvent(EventTransferSubmitted, transfer))

	if o.scheduler == nil {
		log.Printf("⚠️ [Orchestrator] No verification scheduler configured, transfer %s waits for recovery", transfer.ID)
		return transfer, nil
	}
	if err := o.scheduler.Schedule(ctx, transfer); err != nil {
		// the transfer stays in verifying and is picked up by recovery
		log.Printf("⚠️ [Orchestrator] Failed to schedule verification for %s: %v", transfer.ID, err)
	}
	return transfer, nil
}

// CompleteVerification is the continuation of a verification request. It applies or rejects
// the transfer exactly once; answers for transfers no longer verifying fail with
// ErrTransferNotPending.
func (o *TransferOrchestrator) CompleteVerification(ctx context.Context, transferID string, verified bool, verifyErr error) (*models.BridgeTransfer, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	transfer, err := o.deps.Transfers.GetByID(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transfer: %w", err)
	}
	if transfer == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrTransferNotFound, transferID)
	}
	if transfer.Status != models.TransferStatusVerifying {
		return transfer, fmt.Errorf("%w: %s is %s", types.ErrTransferNotPending, transferID, transfer.Status)
	}

	if !verified || verifyErr != nil {
		var cause error = types.ErrProofRejected
		if verifyErr != nil {
			cause = fmt.Errorf("%w: %v", types.ErrProofRejected, verifyErr)
		}
		return o.reject(ctx, transfer, cause)
	}

	var applyErr error
	switch transfer.Kind {
	case models.TransferKindInbound:
		applyErr = o.applyInbound(ctx, transfer)
	case models.TransferKindMetadata:
		applyErr = o.applyMetadata(ctx, transfer)
	default:
		applyErr = fmt.Errorf("unknown transfer kind %q", transfer.Kind)
	}
	if applyErr != nil {
		var be *types.BridgeError
		if errors.As(applyErr, &be) {
			return o.reject(ctx, transfer, applyErr)
		}
		// infrastructure failure, keep verifying so recovery retries
		log.Printf("❌ [Orchestrator] Failed to apply transfer %s: %v", transfer.ID, applyErr)
		return transfer, applyErr
	}

	now := time.Now()
	transfer.Status = models.TransferStatusApplied
	transfer.CompletedAt = &now
	metrics.TransfersTotal.WithLabelValues(string(transfer.Kind), string(models.TransferStatusApplied)).Inc()
	metrics.PendingTransfers.Dec()
	log.WithFields(log.Fields{
		"transfer_id": transfer.ID,
		"kind":        transfer.Kind,
		"asset":       transfer.Asset.Hex(),
	}).Info("✅ Transfer applied")
	o.deps.Publisher.Publish(ctx, NewBridgeEvent(EventTransferApplied, transfer))
	if transfer.Kind == models.TransferKindMetadata {
		o.deps.Publisher.Publish(ctx, NewBridgeEvent(EventMetadataUpdated, map[string]interface{}{
			"asset":     transfer.Asset.Hex(),
			"name":      transfer.MetadataName,
			"symbol":    transfer.MetadataSymbol,
			"timestamp": transfer.MetadataTimestamp,
		}))
	}
	return transfer, nil
}

func (o *TransferOrchestrator) applyInbound(ctx context.Context, transfer *models.BridgeTransfer) error {
	deposit, err := types.ParseAmount(transfer.Deposit)
	if err != nil {
		return err
	}
	proof, err := types.DecodeProof(transfer.ProofData)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidProof, err)
	}

	return o.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		delta, err := o.deps.Ledger.RecordIfNew(ctx, types.ComputeFingerprint(proof), transfer.ID)
		if err != nil {
			return err
		}
		if err := o.deps.Meter.Require(deposit, o.deps.Meter.InboundRequirement(delta)); err != nil {
			return err
		}
		contractID, err := o.deps.Registry.Resolve(ctx, transfer.Asset)
		if err != nil {
			return err
		}
		if err := o.deps.Contracts.Mint(ctx, contractID, MintRequest{
			TokenID:  transfer.AssetID,
			OwnerID:  transfer.Recipient,
			TokenURI: transfer.TokenURI,
		}); err != nil {
			return err
		}
		return o.finish(ctx, transfer.ID)
	})
}

func (o *TransferOrchestrator) applyMetadata(ctx context.Context, transfer *models.BridgeTransfer) error {
	return o.deps.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := o.checkFresh(ctx, transfer.Asset, transfer.MetadataTimestamp); err != nil {
			return err
		}
		contractID, err := o.deps.Registry.Resolve(ctx, transfer.Asset)
		if err != nil {
			return err
		}
		if err := o.deps.Metadata.Upsert(ctx, &models.MetadataCheckpoint{
			Asset:     transfer.Asset,
			Name:      transfer.MetadataName,
			Symbol:    transfer.MetadataSymbol,
			Timestamp: transfer.MetadataTimestamp,
			UpdatedAt: time.Now(),
		}); err != nil {
			return fmt.Errorf("failed to store metadata: %w", err)
		}
		if err := o.deps.Contracts.SetMetadata(ctx, contractID, transfer.MetadataName, transfer.MetadataSymbol); err != nil {
			return err
		}
		return o.finish(ctx, transfer.ID)
	})
}

func (o *TransferOrchestrator) finish(ctx context.Context, transferID string) error {
	moved, err := o.deps.Transfers.Transition(ctx, transferID, models.TransferStatusVerifying, models.TransferStatusApplied, map[string]interface{}{
		"completed_at": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to mark transfer applied: %w", err)
	}
	if !moved {
		return fmt.Errorf("%w: %s", types.ErrTransferNotPending, transferID)
	}
	return nil
}

// checkFresh rejects a metadata timestamp older than the recorded one. Equal is accepted.
func (o *TransferOrchestrator) checkFresh(ctx context.Context, asset types.Address, timestamp uint64) error {
	cp, err := o.deps.Metadata.Find(ctx, asset)
	if err != nil {
		return fmt.Errorf("failed to load metadata checkpoint: %w", err)
	}
	if cp != nil && timestamp < cp.Timestamp {
		return fmt.Errorf("%w: timestamp %d < %d", types.ErrStaleMetadata, timestamp, cp.Timestamp)
	}
	return nil
}

func (o *TransferOrchestrator) reject(ctx context.Context, transfer *models.BridgeTransfer, cause error) (*models.BridgeTransfer, error) {
	now := time.Now()
	moved, err := o.deps.Transfers.Transition(ctx, transfer.ID, models.TransferStatusVerifying, models.TransferStatusRejected, map[string]interface{}{
		"error_code":   types.CodeOf(cause),
		"last_error":   cause.Error(),
		"completed_at": now,
	})
	if err != nil {
		return transfer, fmt.Errorf("failed to mark transfer rejected: %w", err)
	}
	if !moved {
		return transfer, fmt.Errorf("%w: %s", types.ErrTransferNotPending, transfer.ID)
	}

	transfer.Status = models.TransferStatusRejected
	transfer.ErrorCode = types.CodeOf(cause)
	transfer.LastError = cause.Error()
	transfer.CompletedAt = &now
	metrics.TransfersTotal.WithLabelValues(string(transfer.Kind), string(models.TransferStatusRejected)).Inc()
	metrics.PendingTransfers.Dec()
	log.WithFields(log.Fields{
		"transfer_id": transfer.ID,
		"kind":        transfer.Kind,
		"code":        transfer.ErrorCode,
	}).Warnf("⚠️ Transfer rejected: %v", cause)
	o.deps.Publisher.Publish(ctx, NewBridgeEvent(EventTransferRejected, transfer))
	return transfer, cause
}

// ReportOutboundWithdrawal certifies a burn performed by the sub-contract of assetAddress.
// The burn already happened; nothing is recorded against replay. When ctx carries the burn's
// transaction the event is published after that transaction commits.
func (o *TransferOrchestrator) ReportOutboundWithdrawal(ctx context.Context, caller, assetID, assetAddress, recipientAddress string) (*models.WithdrawResult, error) {
	if err := o.deps.Pause.Check(ctx, FeatureOutboundTransfer); err != nil {
		return nil, err
	}
	asset, err := types.DecodeAddress(assetAddress)
	if err != nil {
		return nil, fmt.Errorf("asset address: %w", err)
	}
	legit, err := o.deps.Registry.IsCallerLegitimateSubcontract(ctx, asset, caller)
	if err != nil {
		return nil, err
	}
	if !legit {
		return nil, fmt.Errorf("%w: %s for asset %s", types.ErrUnauthorizedReporter, caller, asset.Hex())
	}
	recipient, err := types.DecodeAddress(recipientAddress)
	if err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}

	result := &models.WithdrawResult{
		Asset:      asset,
		AssetID:    assetID,
		Recipient:  recipient,
		ContractID: caller,
		CreatedAt:  time.Now(),
	}
	if err := o.deps.Withdrawals.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to store withdraw result: %w", err)
	}

	// relays unlock on this event; it fires only once the burn is committed
	db.AfterCommit(ctx, func() {
		metrics.WithdrawalsTotal.Inc()
		log.WithFields(log.Fields{
			"asset":     asset.Hex(),
			"asset_id":  assetID,
			"recipient": recipient.Hex(),
		}).Info("📤 Outbound withdrawal reported")
		payload := map[string]interface{}{"result": result}
		if raw, err := o.WithdrawLog(result); err == nil {
			payload["log"] = fmt.Sprintf("0x%x", raw)
		}
		o.deps.Publisher.Publish(ctx, NewBridgeEvent(EventWithdrawalReported, payload))
	})
	return result, nil
}

// WithdrawLog renders result as a Withdraw log emitted by the bridge, the form relays prove
// on the origin chain.
func (o *TransferOrchestrator) WithdrawLog(result *models.WithdrawResult) ([]byte, error) {
	return eventlog.EncodeWithdrawn(eventlog.WithdrawSchema, &eventlog.WithdrawnLog{
		EmitterAddress:   o.deps.Emitter,
		AssetAddress:     result.Asset,
		OriginContractID: result.ContractID,
		AssetID:          result.AssetID,
		Recipient:        result.Recipient.Hex(),
	})
}

// GetTransfer returns a transfer by request id.
func (o *TransferOrchestrator) GetTransfer(ctx context.Context, id string) (*models.BridgeTransfer, error) {
	transfer, err := o.deps.Transfers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if transfer == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrTransferNotFound, id)
	}
	return transfer, nil
}

const maxWithdrawalPage = 500

// ListWithdrawals pages through withdraw results with id > afterID. limit defaults to 100 and
// is capped at maxWithdrawalPage.
func (o *TransferOrchestrator) ListWithdrawals(ctx context.Context, afterID uint64, limit int) ([]*models.WithdrawResult, error) {
	switch {
	case limit <= 0:
		limit = 100
	case limit > maxWithdrawalPage:
		limit = maxWithdrawalPage
	}
	return o.deps.Withdrawals.ListAfter(ctx, afterID, limit)
}

// GetMetadata returns the last applied metadata of asset, or nil when none was applied.
func (o *TransferOrchestrator) GetMetadata(ctx context.Context, asset types.Address) (*models.MetadataCheckpoint, error) {
	return o.deps.Metadata.Find(ctx, asset)
}
