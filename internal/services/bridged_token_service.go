package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/repository"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// MintRequest asks a sub-contract to register a token for an owner.
type MintRequest struct {
	TokenID  string
	OwnerID  string
	TokenURI string
}

// SubContractGateway is the boundary to per-asset sub-contracts. The bridge never touches
// their token bookkeeping directly.
type SubContractGateway interface {
	Deploy(ctx context.Context, contractID string, asset types.Address) error
	Mint(ctx context.Context, contractID string, req MintRequest) error
	SetMetadata(ctx context.Context, contractID, name, symbol string) error
}

// WithdrawalReporter receives burns from sub-contracts.
type WithdrawalReporter interface {
	ReportOutboundWithdrawal(ctx context.Context, caller, assetID, assetAddress, recipientAddress string) (*models.WithdrawResult, error)
}

// BridgedTokenService hosts the per-asset sub-contracts: token ownership for mirrored assets.
type BridgedTokenService struct {
	tokens       repository.BridgedTokenRepository
	tx           db.Transactor
	controllerID string
	reporter     WithdrawalReporter
}

// NewBridgedTokenService 创建子合约代币服务. controllerID is the only identity allowed to mint.
func NewBridgedTokenService(tokens repository.BridgedTokenRepository, tx db.Transactor, controllerID string) *BridgedTokenService {
	return &BridgedTokenService{tokens: tokens, tx: tx, controllerID: controllerID}
}

// SetWithdrawalReporter 设置提现上报服务（避免循环依赖）
func (s *BridgedTokenService) SetWithdrawalReporter(reporter WithdrawalReporter) {
	s.reporter = reporter
}

func (s *BridgedTokenService) Deploy(ctx context.Context, contractID string, asset types.Address) error {
	if err := s.tokens.CreateContract(ctx, &models.BridgedContract{
		ContractID:   contractID,
		Asset:        asset,
		ControllerID: s.controllerID,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}); err != nil {
		return fmt.Errorf("deploy %s: %w", contractID, err)
	}
	log.Printf("📦 [BridgedToken] Sub-contract deployed: %s", contractID)
	return nil
}

func (s *BridgedTokenService) contract(ctx context.Context, contractID string) (*models.BridgedContract, error) {
	c, err := s.tokens.FindContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: no sub-contract %s", types.ErrUnknownAsset, contractID)
	}
	return c, nil
}

func (s *BridgedTokenService) Mint(ctx context.Context, contractID string, req MintRequest) error {
	if _, err := s.contract(ctx, contractID); err != nil {
		return err
	}
	inserted, err := s.tokens.InsertToken(ctx, &models.BridgedToken{
		ContractID: contractID,
		TokenID:    req.TokenID,
		OwnerID:    req.OwnerID,
		TokenURI:   req.TokenURI,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("mint %s/%s: %w", contractID, req.TokenID, err)
	}
	if !inserted {
		return fmt.Errorf("%w: %s/%s", types.ErrTokenAlreadyMinted, contractID, req.TokenID)
	}
	log.Printf("🪙 [BridgedToken] Minted %s/%s to %s", contractID, req.TokenID, req.OwnerID)
	return nil
}

func (s *BridgedTokenService) SetMetadata(ctx context.Context, contractID, name, symbol string) error {
	if _, err := s.contract(ctx, contractID); err != nil {
		return err
	}
	return s.tokens.UpdateContractMetadata(ctx, contractID, name, symbol)
}

// Contract returns the sub-contract record.
func (s *BridgedTokenService) Contract(ctx context.Context, contractID string) (*models.BridgedContract, error) {
	return s.contract(ctx, contractID)
}

// OwnerOf returns the owner of a token.
func (s *BridgedTokenService) OwnerOf(ctx context.Context, contractID, tokenID string) (*models.BridgedToken, error) {
	token, err := s.tokens.FindToken(ctx, contractID, tokenID)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w: %s/%s", types.ErrTokenNotFound, contractID, tokenID)
	}
	return token, nil
}

// TokensForOwner lists tokens of owner in a sub-contract.
func (s *BridgedTokenService) TokensForOwner(ctx context.Context, contractID, ownerID string) ([]*models.BridgedToken, error) {
	return s.tokens.ListByOwner(ctx, contractID, ownerID)
}

// Withdraw burns the caller's token and reports the withdrawal to the bridge with the
// sub-contract as reporter. A failed report restores the token.
func (s *BridgedTokenService) Withdraw(ctx context.Context, contractID, caller, tokenID, recipient string) (*models.WithdrawResult, error) {
	if s.reporter == nil {
		return nil, fmt.Errorf("withdrawal reporter not configured")
	}
	c, err := s.contract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	var result *models.WithdrawResult
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		burned, err := s.tokens.DeleteToken(ctx, contractID, tokenID, caller)
		if err != nil {
			return fmt.Errorf("burn %s/%s: %w", contractID, tokenID, err)
		}
		if !burned {
			token, err := s.tokens.FindToken(ctx, contractID, tokenID)
			if err != nil {
				return err
			}
			if token == nil {
				return fmt.Errorf("%w: %s/%s", types.ErrTokenNotFound, contractID, tokenID)
			}
			return fmt.Errorf("%w: %s", types.ErrNotTokenOwner, caller)
		}
		result, err = s.reporter.ReportOutboundWithdrawal(ctx, contractID, tokenID, c.Asset.Hex(), recipient)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"contract":  contractID,
		"token_id":  tokenID,
		"owner":     caller,
		"recipient": recipient,
	}).Info("🔥 Token burned for withdrawal")
	return result, nil
}
