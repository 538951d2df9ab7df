package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db/dbtest"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

var (
	assetA = types.MustDecodeAddress("629a673a8242c2ac4b7b8c5d8735fbeac21a6205")
	assetB = types.MustDecodeAddress("57f1887a8bf19b14fc0df6fd9b2acc9af147ea85")
)

func TestBridgeStateRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBridgeStateRepository(dbtest.New(t))

	_, err := repo.Get(ctx)
	assert.True(t, errors.Is(err, types.ErrNotInitialized))

	require.NoError(t, repo.Create(ctx, &models.BridgeState{OwnerID: "bridge", VerifierID: "prover", LockerAddress: assetB}))
	err = repo.Create(ctx, &models.BridgeState{OwnerID: "other", VerifierID: "prover", LockerAddress: assetB})
	assert.True(t, errors.Is(err, types.ErrAlreadyInitialized))

	require.NoError(t, repo.UpdatePausedMask(ctx, 5))
	require.NoError(t, repo.UpdateController(ctx, "guardian"))
	require.NoError(t, repo.UpdateMetadataConnector(ctx, assetA))

	state, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bridge", state.OwnerID)
	assert.Equal(t, uint32(5), state.PausedMask)
	assert.Equal(t, "guardian", state.ControllerID)
	assert.Equal(t, assetA, state.MetadataConnector)
	assert.Equal(t, assetB, state.LockerAddress)
}

func TestAssetRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(dbtest.New(t))

	found, err := repo.Find(ctx, assetA)
	require.NoError(t, err)
	assert.Nil(t, found)

	inserted, err := repo.InsertIfAbsent(ctx, &models.RegisteredAsset{Asset: assetA, ContractID: assetA.Hex() + ".factory"})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(ctx, &models.RegisteredAsset{Asset: assetA, ContractID: "again"})
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = repo.InsertIfAbsent(ctx, &models.RegisteredAsset{Asset: assetB, ContractID: assetB.Hex() + ".factory"})
	require.NoError(t, err)

	found, err = repo.Find(ctx, assetA)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, assetA.Hex()+".factory", found.ContractID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUsedProofRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUsedProofRepository(dbtest.New(t))

	inserted, err := repo.InsertIfAbsent(ctx, &models.UsedProof{Fingerprint: "aa", TransferID: "t-1"})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(ctx, &models.UsedProof{Fingerprint: "aa", TransferID: "t-2"})
	require.NoError(t, err)
	assert.False(t, inserted)

	exists, err := repo.Exists(ctx, "aa")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, "bb")
	require.NoError(t, err)
	assert.False(t, exists)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMetadataRepositoryUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewMetadataRepository(dbtest.New(t))

	require.NoError(t, repo.Upsert(ctx, &models.MetadataCheckpoint{Asset: assetA, Name: "Kitty", Symbol: "KIT", Timestamp: 5}))
	require.NoError(t, repo.Upsert(ctx, &models.MetadataCheckpoint{Asset: assetA, Name: "Kitties", Symbol: "KTS", Timestamp: 7}))

	checkpoint, err := repo.Find(ctx, assetA)
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	assert.Equal(t, "Kitties", checkpoint.Name)
	assert.Equal(t, uint64(7), checkpoint.Timestamp)

	missing, err := repo.Find(ctx, assetB)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBridgedTokenRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBridgedTokenRepository(dbtest.New(t))
	contractID := assetA.Hex() + ".factory"

	require.NoError(t, repo.CreateContract(ctx, &models.BridgedContract{ContractID: contractID, Asset: assetA, ControllerID: "factory"}))
	require.NoError(t, repo.UpdateContractMetadata(ctx, contractID, "Kitty", "KIT"))
	contract, err := repo.FindContract(ctx, contractID)
	require.NoError(t, err)
	assert.Equal(t, "KIT", contract.Symbol)

	inserted, err := repo.InsertToken(ctx, &models.BridgedToken{ContractID: contractID, TokenID: "1", OwnerID: "alice"})
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = repo.InsertToken(ctx, &models.BridgedToken{ContractID: contractID, TokenID: "1", OwnerID: "bob"})
	require.NoError(t, err)
	assert.False(t, inserted)

	owned, err := repo.ListByOwner(ctx, contractID, "alice")
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	deleted, err := repo.DeleteToken(ctx, contractID, "1", "bob")
	require.NoError(t, err)
	assert.False(t, deleted)
	deleted, err = repo.DeleteToken(ctx, contractID, "1", "alice")
	require.NoError(t, err)
	assert.True(t, deleted)

	token, err := repo.FindToken(ctx, contractID, "1")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestTransferRepositoryTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewTransferRepository(dbtest.New(t))

	require.NoError(t, repo.Create(ctx, &models.BridgeTransfer{
		ID:     "t-1",
		Kind:   models.TransferKindInbound,
		Status: models.TransferStatusVerifying,
		Asset:  assetA,
	}))

	moved, err := repo.Transition(ctx, "t-1", models.TransferStatusSubmitted, models.TransferStatusApplied, nil)
	require.NoError(t, err)
	assert.False(t, moved)

	stale, err := repo.FindStale(ctx, models.TransferStatusVerifying, time.Now(), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	require.NoError(t, repo.MarkDispatched(ctx, "t-1"))
	require.NoError(t, repo.MarkDispatched(ctx, "t-1"))
	transfer, err := repo.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 2, transfer.DispatchCount)
	assert.NotNil(t, transfer.DispatchedAt)

	moved, err = repo.Transition(ctx, "t-1", models.TransferStatusVerifying, models.TransferStatusRejected, map[string]interface{}{
		"error_code": "PROOF_REJECTED",
	})
	require.NoError(t, err)
	assert.True(t, moved)

	transfer, err = repo.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusRejected, transfer.Status)
	assert.Equal(t, "PROOF_REJECTED", transfer.ErrorCode)

	count, err := repo.CountByStatus(ctx, models.TransferStatusVerifying)
	require.NoError(t, err)
	assert.Zero(t, count)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWithdrawResultRepositoryListAfter(t *testing.T) {
	ctx := context.Background()
	repo := NewWithdrawResultRepository(dbtest.New(t))

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, repo.Create(ctx, &models.WithdrawResult{Asset: assetA, AssetID: id, Recipient: assetB}))
	}

	page, err := repo.ListAfter(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "1", page[0].AssetID)

	rest, err := repo.ListAfter(ctx, page[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "3", rest[0].AssetID)
}

func TestTransactorRollsBack(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.New(t)
	tx := db.NewTransactor(conn)
	assets := NewAssetRepository(conn)
	proofs := NewUsedProofRepository(conn)

	boom := errors.New("boom")
	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := assets.InsertIfAbsent(ctx, &models.RegisteredAsset{Asset: assetA, ContractID: "a"}); err != nil {
			return err
		}
		// nested calls join the outer transaction
		return tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if _, err := proofs.InsertIfAbsent(ctx, &models.UsedProof{Fingerprint: "ff"}); err != nil {
				return err
			}
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	found, err := assets.Find(ctx, assetA)
	require.NoError(t, err)
	assert.Nil(t, found)
	count, err := proofs.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTransactorAfterCommit(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.New(t)
	tx := db.NewTransactor(conn)
	assets := NewAssetRepository(conn)

	var fired []string
	db.AfterCommit(ctx, func() { fired = append(fired, "direct") })
	assert.Equal(t, []string{"direct"}, fired)

	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := assets.InsertIfAbsent(ctx, &models.RegisteredAsset{Asset: assetA, ContractID: "a"}); err != nil {
			return err
		}
		db.AfterCommit(ctx, func() { fired = append(fired, "rolled back") })
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, []string{"direct"}, fired)

	err = tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if _, err := assets.InsertIfAbsent(ctx, &models.RegisteredAsset{Asset: assetA, ContractID: "a"}); err != nil {
				return err
			}
			db.AfterCommit(ctx, func() {
				// the row is visible outside the transaction by now
				found, err := assets.Find(context.Background(), assetA)
				require.NoError(t, err)
				require.NotNil(t, found)
				fired = append(fired, "committed")
			})
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"direct", "committed"}, fired)
}
