package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/eventlog"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/repository"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

func TestInboundTransferThenWithdrawal(t *testing.T) {
	h := newHarness(t)
	contractID := h.provision(testAsset)
	assert.Equal(t, "629a673a8242c2ac4b7b8c5d8735fbeac21a6205."+testOwner, contractID)

	proof := h.lockedProof(lockedEvent("0", "alice"), 0, "header-1")
	transfer, err := h.orch.FinalizeInboundTransfer(h.ctx, "relayer", proof, plenty)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusVerifying, transfer.Status)
	assert.Equal(t, []string{transfer.ID}, h.scheduler.IDs())

	// nothing is minted or recorded before the verifier answers
	_, err = h.tokens.OwnerOf(h.ctx, contractID, "0")
	assert.True(t, errors.Is(err, types.ErrTokenNotFound))
	used, err := h.ledger.Contains(h.ctx, types.ComputeFingerprint(proof))
	require.NoError(t, err)
	assert.False(t, used)

	applied, err := h.orch.CompleteVerification(h.ctx, transfer.ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusApplied, applied.Status)
	assert.Equal(t, models.TransferStatusApplied, h.transfer(transfer.ID).Status)

	token, err := h.tokens.OwnerOf(h.ctx, contractID, "0")
	require.NoError(t, err)
	assert.Equal(t, "alice", token.OwnerID)
	assert.Equal(t, "ipfs://token/0", token.TokenURI)

	used, err = h.ledger.Contains(h.ctx, types.ComputeFingerprint(proof))
	require.NoError(t, err)
	assert.True(t, used)

	// the 39 character recipient is not a valid address; the burn is undone
	_, err = h.tokens.Withdraw(h.ctx, contractID, "alice", "0", "47b78acc6d29428f128eb04b467d316e548e4b8")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidAddress))
	token, err = h.tokens.OwnerOf(h.ctx, contractID, "0")
	require.NoError(t, err)
	assert.Equal(t, "alice", token.OwnerID)

	_, err = h.tokens.Withdraw(h.ctx, contractID, "bob", "0", "047b78acc6d29428f128eb04b467d316e548e4b8")
	assert.True(t, errors.Is(err, types.ErrNotTokenOwner))

	result, err := h.tokens.Withdraw(h.ctx, contractID, "alice", "0", "047b78acc6d29428f128eb04b467d316e548e4b8")
	require.NoError(t, err)
	assert.Equal(t, testAsset, result.Asset)
	assert.Equal(t, "0", result.AssetID)
	assert.Equal(t, "047b78acc6d29428f128eb04b467d316e548e4b8", result.Recipient.Hex())
	assert.Equal(t, contractID, result.ContractID)

	_, err = h.tokens.OwnerOf(h.ctx, contractID, "0")
	assert.True(t, errors.Is(err, types.ErrTokenNotFound))

	withdrawals, err := h.orch.ListWithdrawals(h.ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)

	raw, err := h.orch.WithdrawLog(withdrawals[0])
	require.NoError(t, err)
	logged, err := eventlog.DecodeWithdrawn(eventlog.WithdrawSchema, raw)
	require.NoError(t, err)
	assert.Equal(t, testEmitter, logged.EmitterAddress)
	assert.Equal(t, testAsset, logged.AssetAddress)
	assert.Equal(t, contractID, logged.OriginContractID)
	assert.Equal(t, "047b78acc6d29428f128eb04b467d316e548e4b8", logged.Recipient)

	assert.Contains(t, h.events.Types(), EventTransferApplied)
	assert.Contains(t, h.events.Types(), EventWithdrawalReported)
}

func TestFinalizeRejectsReplayedProof(t *testing.T) {
	h := newHarness(t)
	h.provision(testAsset)

	proof := h.lockedProof(lockedEvent("7", "alice"), 3, "header-7")
	transfer, err := h.orch.FinalizeInboundTransfer(h.ctx, "relayer", proof, plenty)
	require.NoError(t, err)
	_, err = h.orch.CompleteVerification(h.ctx, transfer.ID, true, nil)
	require.NoError(t, err)

	_, err = h.orch.FinalizeInboundTransfer(h.ctx, "relayer", proof, plenty)
	assert.True(t, errors.Is(err, types.ErrProofReplayed))

	// a different log index in the same block is a different event
	other := h.lockedProof(lockedEvent("8", "alice"), 4, "header-7")
	_, err = h.orch.FinalizeInboundTransfer(h.ctx, "relayer", other, plenty)
	assert.NoError(t, err)
}

func TestConcurrentSubmissionsApplyOnce(t *testing.T) {
	h := newHarness(t)
	h.provision(testAsset)

	proof := h.lockedProof(lockedEvent("1", "alice"), 0, "header-1")
	first, err := h.orch.FinalizeInboundTransfer(h.ctx, "relayer-a", proof, plenty)
	require.NoError(t, err)
	second, err := h.orch.FinalizeInboundTransfer(h.ctx, "relayer-b", proof, plenty)
	require.NoError(t, err)

	_, err = h.orch.CompleteVerification(h.ctx, first.ID, true, nil)
	require.NoError(t, err)

	rejected, err := h.orch.CompleteVerification(h.ctx, second.ID, true, nil)
	assert.True(t, errors.Is(err, types.ErrProofReplayed))
	assert.Equal(t, models.TransferStatusRejected, rejected.Status)
	assert.Equal(t, "PROOF_REPLAYED", h.transfer(second.ID).ErrorCode)

	tokens, err := h.tokens.TokensForOwner(h.ctx, SubContractID(testAsset, testOwner), "alice")
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestNegativeVerificationLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	contractID := h.provision(testAsset)

	proof := h.lockedProof(lockedEvent("2", "alice"), 0, "header-2")
	transfer, err := h.orch.FinalizeInboundTransfer(h.ctx, "relayer", proof, plenty)
	require.NoError(t, err)

	rejected, err := h.orch.CompleteVerification(h.ctx, transfer.ID, false, nil)
	assert.True(t, errors.Is(err, types.ErrProofRejected))
	assert.Equal(t, models.TransferStatusRejected, rejected.Status)
	assert.Equal(t, "PROOF_REJECTED", h.transfer(transfer.ID).ErrorCode)
	assert.NotNil(t, h.transfer(transfer.ID).CompletedAt)

	used, err := h.ledger.Contains(h.ctx, types.ComputeFingerprint(proof))
	require.NoError(t, err)
	assert.False(t, used)
	_, err = h.tokens.OwnerOf(h.ctx, contractID, "2")
	assert.True(t, errors.Is(err, types.ErrTokenNotFound))

	// a verifier failure counts as a rejection too
	retry, err := h.orch.FinalizeInboundTransfer(h.ctx, "relayer", proof, plenty)
	require.NoError(t, err)
	_, err = h.orch.CompleteVerification(h.ctx, retry.ID, false, fmt.Errorf("prover unavailable"))
	assert.True(t, errors.Is(err, types.ErrProofRejected))
	assert.Contains(t, h.transfer(retry.ID).LastError, "prover unavailable")
}

func TestCompleteVerificationIsOneShot(t *testing.T) {
	h := newHarness(t)
	h.provision(testAsset)

	transfer, err := h.orch.FinalizeInboundTransfer(h.ctx, "relayer", h.lockedProof(lockedEvent("3", "alice"), 0, "h"), plenty)
	require.NoError(t, err)

	_, err = h.orch.CompleteVerification(h.ctx, transfer.ID, true, nil)
	require.NoError(t, err)

	again, err := h.orch.CompleteVerification(h.ctx, transfer.ID, false, nil)
	assert.True(t, errors.Is(err, types.ErrTransferNotPending))
	assert.Equal(t, models.TransferStatusApplied, again.Status)

	_, err = h.orch.CompleteVerification(h.ctx, "missing", true, nil)
	assert.True(t, errors.Is(err, types.ErrTransferNotFound))
}

func TestFinalizeValidation(t *testing.T) {
	h := newHarness(t)

	ev := lockedEvent("4", "alice")
	_, err := h.orch.FinalizeInboundTransfer(h.ctx, "relayer", h.lockedProof(ev, 0, "h"), plenty)
	assert.True(t, errors.Is(err, types.ErrAssetNotProvisioned))

	h.provision(testAsset)

	foreign := lockedEvent("4", "alice")
	foreign.LockerAddress = testConnector
	_, err = h.orch.FinalizeInboundTransfer(h.ctx, "relayer", h.lockedProof(foreign, 0, "h"), plenty)
	assert.True(t, errors.Is(err, types.ErrLockerMismatch))

	_, err = h.orch.FinalizeInboundTransfer(h.ctx, "relayer", &types.Proof{LogEntryData: []byte{0x01, 0x02}}, plenty)
	assert.True(t, errors.Is(err, types.ErrMalformedEventLog))

	// 100 token deposit + (40 + 32) ledger bytes at cost 1
	required := h.meter.InboundRequirement(LedgerEntryDelta)
	assert.Equal(t, uint64(172), required.Uint64())
	short := new(uint256.Int).SubUint64(required, 1)
	_, err = h.orch.FinalizeInboundTransfer(h.ctx, "relayer", h.lockedProof(ev, 0, "h"), short)
	assert.True(t, errors.Is(err, types.ErrInsufficientDeposit))

	_, err = h.orch.FinalizeInboundTransfer(h.ctx, "relayer", h.lockedProof(ev, 0, "h"), required)
	assert.NoError(t, err)
	assert.Len(t, h.scheduler.IDs(), 1)
}

func TestReportOutboundWithdrawalRequiresSubContract(t *testing.T) {
	h := newHarness(t)
	contractID := h.provision(testAsset)

	_, err := h.orch.ReportOutboundWithdrawal(h.ctx, "mallory", "0", testAsset.Hex(), "047b78acc6d29428f128eb04b467d316e548e4b8")
	assert.True(t, errors.Is(err, types.ErrUnauthorizedReporter))

	// unknown asset reads as unauthorized, not as a lookup failure
	_, err = h.orch.ReportOutboundWithdrawal(h.ctx, contractID, "0", testSender.Hex(), "047b78acc6d29428f128eb04b467d316e548e4b8")
	assert.True(t, errors.Is(err, types.ErrUnauthorizedReporter))

	_, err = h.orch.ReportOutboundWithdrawal(h.ctx, contractID, "0", "0x"+testAsset.Hex(), "047b78acc6d29428f128eb04b467d316e548e4b8")
	assert.True(t, errors.Is(err, types.ErrInvalidAddress))

	result, err := h.orch.ReportOutboundWithdrawal(h.ctx, contractID, "0", testAsset.Hex(), "047b78acc6d29428f128eb04b467d316e548e4b8")
	require.NoError(t, err)
	assert.NotZero(t, result.ID)

	results, err := h.orch.ListWithdrawals(h.ctx, result.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMetadataTimestampsAreMonotonic(t *testing.T) {
	h := newHarness(t)
	contractID := h.provision(testAsset)

	submit := func(name string, ts uint64) (*models.BridgeTransfer, error) {
		return h.orch.UpdateMetadata(h.ctx, "relayer", h.metadataProof(testConnector, name, "SYM", ts), plenty)
	}

	five, err := submit("Five", 5)
	require.NoError(t, err)
	_, err = h.orch.CompleteVerification(h.ctx, five.ID, true, nil)
	require.NoError(t, err)

	cp, err := h.orch.GetMetadata(h.ctx, testAsset)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, uint64(5), cp.Timestamp)
	assert.Equal(t, "Five", cp.Name)

	_, err = submit("Three", 3)
	assert.True(t, errors.Is(err, types.ErrStaleMetadata))

	// equal timestamps are accepted, and metadata does not consume the replay ledger
	again, err := submit("Five again", 5)
	require.NoError(t, err)
	_, err = h.orch.CompleteVerification(h.ctx, again.ID, true, nil)
	require.NoError(t, err)

	contract, err := h.tokens.Contract(h.ctx, contractID)
	require.NoError(t, err)
	assert.Equal(t, "Five again", contract.Name)
	assert.Equal(t, "SYM", contract.Symbol)
	assert.Contains(t, h.events.Types(), EventMetadataUpdated)
}

func TestMetadataStaleAtApplyIsRejected(t *testing.T) {
	h := newHarness(t)
	h.provision(testAsset)

	seven, err := h.orch.UpdateMetadata(h.ctx, "relayer", h.metadataProof(testConnector, "Seven", "S", 7), plenty)
	require.NoError(t, err)
	six, err := h.orch.UpdateMetadata(h.ctx, "relayer", h.metadataProof(testConnector, "Six", "S", 6), plenty)
	require.NoError(t, err)

	_, err = h.orch.CompleteVerification(h.ctx, seven.ID, true, nil)
	require.NoError(t, err)
	_, err = h.orch.CompleteVerification(h.ctx, six.ID, true, nil)
	assert.True(t, errors.Is(err, types.ErrStaleMetadata))
	assert.Equal(t, "STALE_METADATA", h.transfer(six.ID).ErrorCode)

	cp, err := h.orch.GetMetadata(h.ctx, testAsset)
	require.NoError(t, err)
	assert.Equal(t, "Seven", cp.Name)
}

func TestMetadataValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.UpdateMetadata(h.ctx, "relayer", h.metadataProof(testConnector, "N", "S", 1), plenty)
	assert.True(t, errors.Is(err, types.ErrAssetNotProvisioned))

	h.provision(testAsset)

	_, err = h.orch.UpdateMetadata(h.ctx, "relayer", h.metadataProof(testLocker, "N", "S", 1), plenty)
	assert.True(t, errors.Is(err, types.ErrConnectorMismatch))

	_, err = h.orch.UpdateMetadata(h.ctx, "relayer", h.metadataProof(testConnector, "N", "S", 1), uint256.NewInt(49))
	assert.True(t, errors.Is(err, types.ErrInsufficientDeposit))

	cp, err := h.orch.GetMetadata(h.ctx, testAsset)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

type reporterFunc func(ctx context.Context, caller, assetID, assetAddress, recipientAddress string) (*models.WithdrawResult, error)

func (f reporterFunc) ReportOutboundWithdrawal(ctx context.Context, caller, assetID, assetAddress, recipientAddress string) (*models.WithdrawResult, error) {
	return f(ctx, caller, assetID, assetAddress, recipientAddress)
}

func TestWithdrawalReportedOnlyAfterCommit(t *testing.T) {
	h := newHarness(t)
	contractID := h.provision(testAsset)
	transfer, err := h.orch.FinalizeInboundTransfer(h.ctx, "relayer", h.lockedProof(lockedEvent("0", "alice"), 0, "header-1"), plenty)
	require.NoError(t, err)
	_, err = h.orch.CompleteVerification(h.ctx, transfer.ID, true, nil)
	require.NoError(t, err)

	// the caller goes away after the report, so the burn transaction cannot commit
	ctx, cancel := context.WithCancel(h.ctx)
	h.tokens.SetWithdrawalReporter(reporterFunc(func(ctx context.Context, caller, assetID, assetAddress, recipientAddress string) (*models.WithdrawResult, error) {
		result, err := h.orch.ReportOutboundWithdrawal(ctx, caller, assetID, assetAddress, recipientAddress)
		cancel()
		return result, err
	}))

	_, err = h.tokens.Withdraw(ctx, contractID, "alice", "0", "047b78acc6d29428f128eb04b467d316e548e4b8")
	require.Error(t, err)
	assert.NotContains(t, h.events.Types(), EventWithdrawalReported)

	token, err := h.tokens.OwnerOf(h.ctx, contractID, "0")
	require.NoError(t, err)
	assert.Equal(t, "alice", token.OwnerID)
	withdrawals, err := h.orch.ListWithdrawals(h.ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, withdrawals)

	h.tokens.SetWithdrawalReporter(h.orch)
	_, err = h.tokens.Withdraw(h.ctx, contractID, "alice", "0", "047b78acc6d29428f128eb04b467d316e548e4b8")
	require.NoError(t, err)
	reported := 0
	for _, typ := range h.events.Types() {
		if typ == EventWithdrawalReported {
			reported++
		}
	}
	assert.Equal(t, 1, reported)
}

type failingTransitions struct {
	repository.TransferRepository
}

func (failingTransitions) Transition(context.Context, string, models.TransferStatus, models.TransferStatus, map[string]interface{}) (bool, error) {
	return false, errors.New("connection reset")
}

func TestSubmitLeavesNoTransferWhenTransitionFails(t *testing.T) {
	h := newHarness(t)
	h.provision(testAsset)

	deps := h.orch.deps
	deps.Transfers = failingTransitions{h.transfers}
	orch := NewTransferOrchestrator(deps)
	orch.SetScheduler(h.scheduler)

	_, err := orch.FinalizeInboundTransfer(h.ctx, "relayer", h.lockedProof(lockedEvent("0", "alice"), 0, "header-1"), plenty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	var count int64
	require.NoError(t, h.conn.Model(&models.BridgeTransfer{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, h.scheduler.IDs())
	assert.NotContains(t, h.events.Types(), EventTransferSubmitted)
}

func TestListWithdrawalsPageSize(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 501; i++ {
		require.NoError(t, h.orch.deps.Withdrawals.Create(h.ctx, &models.WithdrawResult{
			Asset:      testAsset,
			AssetID:    fmt.Sprint(i),
			Recipient:  testSender,
			ContractID: "c",
		}))
	}

	page, err := h.orch.ListWithdrawals(h.ctx, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, page, 500)

	page, err = h.orch.ListWithdrawals(h.ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, 100)

	page, err = h.orch.ListWithdrawals(h.ctx, 0, 250)
	require.NoError(t, err)
	assert.Len(t, page, 250)
}
