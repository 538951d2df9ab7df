package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
)

// UsedProofRepository defines the interface for replay ledger rows. There is no delete.
type UsedProofRepository interface {
	// InsertIfAbsent reports false when the fingerprint is already recorded.
	InsertIfAbsent(ctx context.Context, proof *models.UsedProof) (bool, error)
	Exists(ctx context.Context, fingerprint string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type usedProofRepository struct {
	db *gorm.DB
}

// NewUsedProofRepository creates a new UsedProofRepository instance
func NewUsedProofRepository(conn *gorm.DB) UsedProofRepository {
	return &usedProofRepository{db: conn}
}

func (r *usedProofRepository) InsertIfAbsent(ctx context.Context, proof *models.UsedProof) (bool, error) {
	result := db.Conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(proof)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *usedProofRepository) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var count int64
	err := db.Conn(ctx, r.db).Model(&models.UsedProof{}).
		Where("fingerprint = ?", fingerprint).
		Count(&count).Error
	return count > 0, err
}

func (r *usedProofRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := db.Conn(ctx, r.db).Model(&models.UsedProof{}).Count(&count).Error
	return count, err
}
