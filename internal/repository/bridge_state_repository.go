// Package repository provides data access interfaces and implementations
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

// BridgeStateRepository defines the interface for the single bridge_state row
type BridgeStateRepository interface {
	// Get returns types.ErrNotInitialized when the row does not exist.
	Get(ctx context.Context) (*models.BridgeState, error)
	// Create returns types.ErrAlreadyInitialized when the row exists.
	Create(ctx context.Context, state *models.BridgeState) error
	UpdatePausedMask(ctx context.Context, mask uint32) error
	UpdateController(ctx context.Context, controllerID string) error
	UpdateMetadataConnector(ctx context.Context, connector types.Address) error
}

type bridgeStateRepository struct {
	db *gorm.DB
}

// NewBridgeStateRepository creates a new BridgeStateRepository instance
func NewBridgeStateRepository(conn *gorm.DB) BridgeStateRepository {
	return &bridgeStateRepository{db: conn}
}

func (r *bridgeStateRepository) Get(ctx context.Context) (*models.BridgeState, error) {
	var state models.BridgeState
	err := db.Conn(ctx, r.db).Where("id = ?", models.BridgeStateID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *bridgeStateRepository) Create(ctx context.Context, state *models.BridgeState) error {
	state.ID = models.BridgeStateID
	result := db.Conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrAlreadyInitialized
	}
	return nil
}

func (r *bridgeStateRepository) update(ctx context.Context, column string, value interface{}) error {
	result := db.Conn(ctx, r.db).Model(&models.BridgeState{}).
		Where("id = ?", models.BridgeStateID).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrNotInitialized
	}
	return nil
}

func (r *bridgeStateRepository) UpdatePausedMask(ctx context.Context, mask uint32) error {
	return r.update(ctx, "paused_mask", mask)
}

func (r *bridgeStateRepository) UpdateController(ctx context.Context, controllerID string) error {
	return r.update(ctx, "controller_id", controllerID)
}

func (r *bridgeStateRepository) UpdateMetadataConnector(ctx context.Context, connector types.Address) error {
	return r.update(ctx, "metadata_connector", connector)
}
