package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/metrics"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/repository"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// AssetRegistry maps origin assets to their sub-contracts, exactly once per asset.
type AssetRegistry interface {
	Contains(ctx context.Context, asset types.Address) (bool, error)
	// Resolve fails with ErrUnknownAsset when the asset is not provisioned.
	Resolve(ctx context.Context, asset types.Address) (string, error)
	IsCallerLegitimateSubcontract(ctx context.Context, asset types.Address, caller string) (bool, error)
}

// SubContractID derives the sub-contract identity of asset under the bridge account.
// Anyone can compute it without a lookup.
func SubContractID(asset types.Address, bridgeAccountID string) string {
	return asset.Hex() + "." + bridgeAccountID
}

// AssetRegistryService provisions per-asset sub-contracts.
type AssetRegistryService struct {
	accountID string
	assets    repository.AssetRepository
	contracts SubContractGateway
	pause     PauseChecker
	meter     *StorageMeter
	tx        db.Transactor
	publisher EventPublisher
}

// NewAssetRegistryService 创建资产注册服务
func NewAssetRegistryService(
	accountID string,
	assets repository.AssetRepository,
	contracts SubContractGateway,
	pause PauseChecker,
	meter *StorageMeter,
	tx db.Transactor,
	publisher EventPublisher,
) *AssetRegistryService {
	return &AssetRegistryService{
		accountID: accountID,
		assets:    assets,
		contracts: contracts,
		pause:     pause,
		meter:     meter,
		tx:        tx,
		publisher: publisher,
	}
}

// Provision registers asset and deploys its sub-contract. deposit must cover the base
// allocation plus the registry entry.
func (s *AssetRegistryService) Provision(ctx context.Context, caller string, asset types.Address, deposit *uint256.Int) (string, error) {
	if err := s.pause.Check(ctx, FeatureProvisionAsset); err != nil {
		return "", err
	}
	existing, err := s.assets.Find(ctx, asset)
	if err != nil {
		return "", fmt.Errorf("lookup asset: %w", err)
	}
	if existing != nil {
		return "", fmt.Errorf("%w: %s", types.ErrAssetAlreadyProvisioned, asset.Hex())
	}
	if err := s.meter.Require(deposit, s.meter.ProvisionRequirement(RegistryEntryDelta)); err != nil {
		return "", err
	}

	contractID := SubContractID(asset, s.accountID)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		inserted, err := s.assets.InsertIfAbsent(ctx, &models.RegisteredAsset{
			Asset:         asset,
			ContractID:    contractID,
			ProvisionedBy: caller,
			Deposit:       deposit.Dec(),
			CreatedAt:     time.Now(),
		})
		if err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}
		if !inserted {
			return fmt.Errorf("%w: %s", types.ErrAssetAlreadyProvisioned, asset.Hex())
		}
		return s.contracts.Deploy(ctx, contractID, asset)
	})
	if err != nil {
		return "", err
	}

	metrics.AssetsProvisioned.Inc()
	log.WithFields(log.Fields{
		"asset":    asset.Hex(),
		"contract": contractID,
		"caller":   caller,
	}).Info("✅ Asset provisioned")
	s.publisher.Publish(ctx, NewBridgeEvent(EventAssetProvisioned, map[string]string{
		"asset":       asset.Hex(),
		"contract_id": contractID,
	}))
	return contractID, nil
}

func (s *AssetRegistryService) Contains(ctx context.Context, asset types.Address) (bool, error) {
	entry, err := s.assets.Find(ctx, asset)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

func (s *AssetRegistryService) Resolve(ctx context.Context, asset types.Address) (string, error) {
	entry, err := s.assets.Find(ctx, asset)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", fmt.Errorf("%w: %s", types.ErrUnknownAsset, asset.Hex())
	}
	return entry.ContractID, nil
}

func (s *AssetRegistryService) IsCallerLegitimateSubcontract(ctx context.Context, asset types.Address, caller string) (bool, error) {
	contractID, err := s.Resolve(ctx, asset)
	if errors.Is(err, types.ErrUnknownAsset) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return caller != "" && caller == contractID, nil
}

// List returns every registered asset in provisioning order.
func (s *AssetRegistryService) List(ctx context.Context) ([]*models.RegisteredAsset, error) {
	return s.assets.List(ctx)
}
