package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// MetadataRepository defines the interface for per-asset metadata checkpoints
type MetadataRepository interface {
	// Find returns nil, nil when no update was applied yet.
	Find(ctx context.Context, asset types.Address) (*models.MetadataCheckpoint, error)
	Upsert(ctx context.Context, checkpoint *models.MetadataCheckpoint) error
}

type metadataRepository struct {
	db *gorm.DB
}

// NewMetadataRepository creates a new MetadataRepository instance
func NewMetadataRepository(conn *gorm.DB) MetadataRepository {
	return &metadataRepository{db: conn}
}

func (r *metadataRepository) Find(ctx context.Context, asset types.Address) (*models.MetadataCheckpoint, error) {
	var cp models.MetadataCheckpoint
	err := db.Conn(ctx, r.db).Where("asset = ?", asset).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *metadataRepository) Upsert(ctx context.Context, checkpoint *models.MetadataCheckpoint) error {
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "symbol", "timestamp", "updated_at"}),
	}).Create(checkpoint).Error
}
