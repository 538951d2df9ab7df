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

// AssetRepository defines the interface for registry entries
type AssetRepository interface {
	// InsertIfAbsent reports false when the asset is already registered.
	InsertIfAbsent(ctx context.Context, asset *models.RegisteredAsset) (bool, error)
	// Find returns nil, nil when the asset is not registered.
	Find(ctx context.Context, asset types.Address) (*models.RegisteredAsset, error)
	List(ctx context.Context) ([]*models.RegisteredAsset, error)
}

type assetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new AssetRepository instance
func NewAssetRepository(conn *gorm.DB) AssetRepository {
	return &assetRepository{db: conn}
}

func (r *assetRepository) InsertIfAbsent(ctx context.Context, asset *models.RegisteredAsset) (bool, error) {
	result := db.Conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(asset)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *assetRepository) Find(ctx context.Context, asset types.Address) (*models.RegisteredAsset, error) {
	var entry models.RegisteredAsset
	err := db.Conn(ctx, r.db).Where("asset = ?", asset).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *assetRepository) List(ctx context.Context) ([]*models.RegisteredAsset, error) {
	var assets []*models.RegisteredAsset
	err := db.Conn(ctx, r.db).Order("created_at ASC").Find(&assets).Error
	return assets, err
}
