package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
)

// TransferRepository defines the interface for pending and finished transfers
type TransferRepository interface {
	Create(ctx context.Context, transfer *models.BridgeTransfer) error
	// GetByID returns nil, nil when the transfer does not exist.
	GetByID(ctx context.Context, id string) (*models.BridgeTransfer, error)
	// Transition moves id from one status to another and applies fields in the same update.
	// It reports false when the transfer was not in status from.
	Transition(ctx context.Context, id string, from, to models.TransferStatus, fields map[string]interface{}) (bool, error)
	MarkDispatched(ctx context.Context, id string) error
	// FindStale lists transfers in status whose last dispatch happened before cutoff.
	FindStale(ctx context.Context, status models.TransferStatus, cutoff time.Time, limit int) ([]*models.BridgeTransfer, error)
	CountByStatus(ctx context.Context, status models.TransferStatus) (int64, error)
}

type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository creates a new TransferRepository instance
func NewTransferRepository(conn *gorm.DB) TransferRepository {
	return &transferRepository{db: conn}
}

func (r *transferRepository) Create(ctx context.Context, transfer *models.BridgeTransfer) error {
	return db.Conn(ctx, r.db).Create(transfer).Error
}

func (r *transferRepository) GetByID(ctx context.Context, id string) (*models.BridgeTransfer, error) {
	var transfer models.BridgeTransfer
	err := db.Conn(ctx, r.db).Where("id = ?", id).First(&transfer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepository) Transition(ctx context.Context, id string, from, to models.TransferStatus, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to, "updated_at": time.Now()}
	for k, v := range fields {
		updates[k] = v
	}
	result := db.Conn(ctx, r.db).Model(&models.BridgeTransfer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *transferRepository) MarkDispatched(ctx context.Context, id string) error {
	now := time.Now()
	return db.Conn(ctx, r.db).Model(&models.BridgeTransfer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"dispatched_at":  now,
			"dispatch_count": gorm.Expr("dispatch_count + 1"),
			"updated_at":     now,
		}).Error
}

func (r *transferRepository) FindStale(ctx context.Context, status models.TransferStatus, cutoff time.Time, limit int) ([]*models.BridgeTransfer, error) {
	var transfers []*models.BridgeTransfer
	err := db.Conn(ctx, r.db).
		Where("status = ? AND (dispatched_at IS NULL OR dispatched_at < ?)", status, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&transfers).Error
	return transfers, err
}

func (r *transferRepository) CountByStatus(ctx context.Context, status models.TransferStatus) (int64, error) {
	var count int64
	err := db.Conn(ctx, r.db).Model(&models.BridgeTransfer{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
