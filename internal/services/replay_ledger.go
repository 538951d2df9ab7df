package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/metrics"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/repository"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// ReplayLedger remembers every applied origin event. Entries are never removed.
type ReplayLedger interface {
	// RecordIfNew inserts fp and returns the storage it consumed, or ErrProofReplayed.
	RecordIfNew(ctx context.Context, fp types.Fingerprint, transferID string) (StorageDelta, error)
	Contains(ctx context.Context, fp types.Fingerprint) (bool, error)
}

// ReplayLedgerService is the database backed ReplayLedger.
type ReplayLedgerService struct {
	proofs repository.UsedProofRepository
}

// NewReplayLedgerService 创建重放保护账本
func NewReplayLedgerService(proofs repository.UsedProofRepository) *ReplayLedgerService {
	return &ReplayLedgerService{proofs: proofs}
}

func (s *ReplayLedgerService) RecordIfNew(ctx context.Context, fp types.Fingerprint, transferID string) (StorageDelta, error) {
	inserted, err := s.proofs.InsertIfAbsent(ctx, &models.UsedProof{
		Fingerprint: fp.Hex(),
		TransferID:  transferID,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("record fingerprint: %w", err)
	}
	if !inserted {
		metrics.ReplayedProofs.Inc()
		return 0, fmt.Errorf("%w: fingerprint %s", types.ErrProofReplayed, fp.Hex())
	}
	return LedgerEntryDelta, nil
}

func (s *ReplayLedgerService) Contains(ctx context.Context, fp types.Fingerprint) (bool, error) {
	return s.proofs.Exists(ctx, fp.Hex())
}
