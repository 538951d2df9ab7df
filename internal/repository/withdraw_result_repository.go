package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
)

// WithdrawResultRepository defines the interface for emitted withdraw results
type WithdrawResultRepository interface {
	Create(ctx context.Context, result *models.WithdrawResult) error
	// ListAfter returns results with id greater than afterID in id order.
	ListAfter(ctx context.Context, afterID uint64, limit int) ([]*models.WithdrawResult, error)
}

type withdrawResultRepository struct {
	db *gorm.DB
}

// NewWithdrawResultRepository creates a new WithdrawResultRepository instance
func NewWithdrawResultRepository(conn *gorm.DB) WithdrawResultRepository {
	return &withdrawResultRepository{db: conn}
}

func (r *withdrawResultRepository) Create(ctx context.Context, result *models.WithdrawResult) error {
	return db.Conn(ctx, r.db).Create(result).Error
}

func (r *withdrawResultRepository) ListAfter(ctx context.Context, afterID uint64, limit int) ([]*models.WithdrawResult, error) {
	var results []*models.WithdrawResult
	err := db.Conn(ctx, r.db).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&results).Error
	return results, err
}
