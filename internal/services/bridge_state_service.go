package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/repository"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// BridgeStateService manages initialization and the owner/controller settings.
type BridgeStateService struct {
	state     repository.BridgeStateRepository
	ownerID   string
	publisher EventPublisher
}

// NewBridgeStateService 创建桥状态服务
func NewBridgeStateService(state repository.BridgeStateRepository, ownerID string, publisher EventPublisher) *BridgeStateService {
	return &BridgeStateService{state: state, ownerID: ownerID, publisher: publisher}
}

// Initialize stores the verifier identity and origin locker. It succeeds once, for the owner.
// The pause mask starts all-clear.
func (s *BridgeStateService) Initialize(ctx context.Context, caller, verifierID string, locker types.Address) (*models.BridgeState, error) {
	if caller != s.ownerID {
		return nil, fmt.Errorf("%w: only the owner may initialize", types.ErrUnauthorizedAdmin)
	}
	if locker.IsZero() {
		return nil, fmt.Errorf("%w: locker address is zero", types.ErrInvalidAddress)
	}
	state := &models.BridgeState{
		OwnerID:       s.ownerID,
		VerifierID:    verifierID,
		LockerAddress: locker,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := s.state.Create(ctx, state); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"owner":    s.ownerID,
		"verifier": verifierID,
		"locker":   locker.Hex(),
	}).Info("✅ Bridge initialized")
	s.publisher.Publish(ctx, NewBridgeEvent(EventBridgeInitialized, state))
	return state, nil
}

// EnsureInitialized initializes the bridge from config on first start and applies the
// configured controller and metadata connector when they are not set yet.
func (s *BridgeStateService) EnsureInitialized(ctx context.Context, cfg config.BridgeConfig) (*models.BridgeState, error) {
	state, err := s.state.Get(ctx)
	if errors.Is(err, types.ErrNotInitialized) {
		locker, decodeErr := types.DecodeAddress(cfg.LockerAddress)
		if decodeErr != nil {
			return nil, fmt.Errorf("locker address: %w", decodeErr)
		}
		state, err = s.Initialize(ctx, s.ownerID, cfg.VerifierID, locker)
		if errors.Is(err, types.ErrAlreadyInitialized) {
			state, err = s.state.Get(ctx)
		}
	}
	if err != nil {
		return nil, err
	}

	if state.ControllerID == "" && cfg.ControllerID != "" {
		if err := s.SetController(ctx, s.ownerID, cfg.ControllerID); err != nil {
			return nil, err
		}
		state.ControllerID = cfg.ControllerID
	}
	if state.MetadataConnector.IsZero() && cfg.MetadataConnector != "" {
		connector, err := types.DecodeAddress(cfg.MetadataConnector)
		if err != nil {
			return nil, fmt.Errorf("metadata connector: %w", err)
		}
		if err := s.SetMetadataConnector(ctx, s.ownerID, connector); err != nil {
			return nil, err
		}
		state.MetadataConnector = connector
	}
	return state, nil
}

// State returns the stored bridge state.
func (s *BridgeStateService) State(ctx context.Context) (*models.BridgeState, error) {
	return s.state.Get(ctx)
}

// SetController replaces the controller. Owner only.
func (s *BridgeStateService) SetController(ctx context.Context, caller, controllerID string) error {
	st, err := s.state.Get(ctx)
	if err != nil {
		return err
	}
	if caller == "" || caller != st.OwnerID {
		return fmt.Errorf("%w: only the owner may set the controller", types.ErrUnauthorizedAdmin)
	}
	if err := s.state.UpdateController(ctx, controllerID); err != nil {
		return fmt.Errorf("update controller: %w", err)
	}
	log.WithFields(log.Fields{"caller": caller, "controller": controllerID}).Info("🔑 Controller updated")
	return nil
}

// SetMetadataConnector sets the origin contract allowed to emit metadata updates.
func (s *BridgeStateService) SetMetadataConnector(ctx context.Context, caller string, connector types.Address) error {
	st, err := s.state.Get(ctx)
	if err != nil {
		return err
	}
	if !isAdmin(st, caller) {
		return fmt.Errorf("%w: %s", types.ErrUnauthorizedAdmin, caller)
	}
	if err := s.state.UpdateMetadataConnector(ctx, connector); err != nil {
		return fmt.Errorf("update metadata connector: %w", err)
	}
	log.WithFields(log.Fields{"caller": caller, "connector": connector.Hex()}).Info("🔗 Metadata connector updated")
	return nil
}
