package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
)

// BridgedTokenRepository defines the interface for sub-contract token bookkeeping
type BridgedTokenRepository interface {
	CreateContract(ctx context.Context, contract *models.BridgedContract) error
	// FindContract returns nil, nil when the contract does not exist.
	FindContract(ctx context.Context, contractID string) (*models.BridgedContract, error)
	UpdateContractMetadata(ctx context.Context, contractID, name, symbol string) error

	// InsertToken reports false when the token id already exists in the contract.
	InsertToken(ctx context.Context, token *models.BridgedToken) (bool, error)
	// FindToken returns nil, nil when the token does not exist.
	FindToken(ctx context.Context, contractID, tokenID string) (*models.BridgedToken, error)
	// DeleteToken removes the token only if owned by ownerID and reports whether it did.
	DeleteToken(ctx context.Context, contractID, tokenID, ownerID string) (bool, error)
	ListByOwner(ctx context.Context, contractID, ownerID string) ([]*models.BridgedToken, error)
}

type bridgedTokenRepository struct {
	db *gorm.DB
}

// NewBridgedTokenRepository creates a new BridgedTokenRepository instance
func NewBridgedTokenRepository(conn *gorm.DB) BridgedTokenRepository {
	return &bridgedTokenRepository{db: conn}
}

func (r *bridgedTokenRepository) CreateContract(ctx context.Context, contract *models.BridgedContract) error {
	return db.Conn(ctx, r.db).Create(contract).Error
}

func (r *bridgedTokenRepository) FindContract(ctx context.Context, contractID string) (*models.BridgedContract, error) {
	var contract models.BridgedContract
	err := db.Conn(ctx, r.db).Where("contract_id = ?", contractID).First(&contract).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *bridgedTokenRepository) UpdateContractMetadata(ctx context.Context, contractID, name, symbol string) error {
	return db.Conn(ctx, r.db).Model(&models.BridgedContract{}).
		Where("contract_id = ?", contractID).
		Updates(map[string]interface{}{"name": name, "symbol": symbol}).Error
}

func (r *bridgedTokenRepository) InsertToken(ctx context.Context, token *models.BridgedToken) (bool, error) {
	result := db.Conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(token)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *bridgedTokenRepository) FindToken(ctx context.Context, contractID, tokenID string) (*models.BridgedToken, error) {
	var token models.BridgedToken
	err := db.Conn(ctx, r.db).
		Where("contract_id = ? AND token_id = ?", contractID, tokenID).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *bridgedTokenRepository) DeleteToken(ctx context.Context, contractID, tokenID, ownerID string) (bool, error) {
	result := db.Conn(ctx, r.db).
		Where("contract_id = ? AND token_id = ? AND owner_id = ?", contractID, tokenID, ownerID).
		Delete(&models.BridgedToken{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *bridgedTokenRepository) ListByOwner(ctx context.Context, contractID, ownerID string) ([]*models.BridgedToken, error) {
	var tokens []*models.BridgedToken
	err := db.Conn(ctx, r.db).
		Where("contract_id = ? AND owner_id = ?", contractID, ownerID).
		Order("created_at ASC").
		Find(&tokens).Error
	return tokens, err
}
