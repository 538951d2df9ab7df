package services

import (
	"context"
	"time"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// Event types pushed to NATS and websocket subscribers.
const (
	EventTransferSubmitted  = "transfer.submitted"
	EventTransferApplied    = "transfer.applied"
	EventTransferRejected   = "transfer.rejected"
	EventAssetProvisioned   = "asset.provisioned"
	EventWithdrawalReported = "withdrawal.reported"
	EventMetadataUpdated    = "metadata.updated"
	EventPauseUpdated       = "pause.updated"
	EventBridgeInitialized  = "bridge.initialized"
)

// BridgeEvent is a notification about a bridge state change.
type BridgeEvent struct {
	Type      string      `json:"type"`
	Asset     string      `json:"asset,omitempty"` // origin asset the event concerns, if any
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewBridgeEvent stamps an event with the current time.
func NewBridgeEvent(eventType string, data interface{}) BridgeEvent {
	return BridgeEvent{Type: eventType, Asset: assetOf(data), Data: data, Timestamp: time.Now().UTC()}
}

func assetOf(data interface{}) string {
	switch d := data.(type) {
	case *models.BridgeTransfer:
		return d.Asset.Hex()
	case *models.WithdrawResult:
		return d.Asset.Hex()
	case map[string]string:
		return d["asset"]
	case map[string]interface{}:
		switch a := d["asset"].(type) {
		case string:
			return a
		case types.Address:
			return a.Hex()
		}
		if r, ok := d["result"].(*models.WithdrawResult); ok {
			return r.Asset.Hex()
		}
	}
	return ""
}

// EventPublisher delivers bridge events. Delivery is best effort and never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event BridgeEvent)
}

// MultiPublisher fans an event out to every publisher.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event BridgeEvent) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BridgeEvent) {}
