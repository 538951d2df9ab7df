package eventlog

import (
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// LockedEvent reports an asset escrowed by the origin locker for a destination recipient.
type LockedEvent struct {
	LockerAddress types.Address `json:"locker_address"`
	Asset         types.Address `json:"asset"`
	Sender        types.Address `json:"sender"`
	AssetID       string        `json:"asset_id"`
	Recipient     string        `json:"recipient"`
	TokenURI      string        `json:"token_uri,omitempty"`
}

// WithdrawnLog is the Withdraw event log relays carry from the destination side to the origin.
type WithdrawnLog struct {
	EmitterAddress   types.Address `json:"emitter_address"`
	AssetAddress     types.Address `json:"asset_address"`
	Sender           types.Address `json:"sender"`
	OriginContractID string        `json:"origin_contract_id"`
	AssetID          string        `json:"asset_id"`
	Recipient        string        `json:"recipient"`
}

// MetadataUpdateEvent carries name and symbol of an origin asset at a point in time.
type MetadataUpdateEvent struct {
	ConnectorAddress types.Address `json:"connector_address"`
	Asset            types.Address `json:"asset"`
	Name             string        `json:"name"`
	Symbol           string        `json:"symbol"`
	Timestamp        uint64        `json:"timestamp"`
}

// DecodeLocked decodes a Locked log. token_uri is optional in the schema.
func DecodeLocked(s *Schema, raw []byte) (*LockedEvent, error) {
	l, err := Decode(s, raw)
	if err != nil {
		return nil, err
	}
	ev := &LockedEvent{LockerAddress: l.Emitter}
	if ev.Asset, err = l.Address("token"); err != nil {
		return nil, err
	}
	if ev.Sender, err = l.Address("sender"); err != nil {
		return nil, err
	}
	if ev.AssetID, err = l.String("token_id"); err != nil {
		return nil, err
	}
	if ev.Recipient, err = l.String("account_id"); err != nil {
		return nil, err
	}
	if s.has("token_uri") {
		if ev.TokenURI, err = l.String("token_uri"); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

// EncodeLocked builds the raw log DecodeLocked accepts.
func EncodeLocked(s *Schema, ev *LockedEvent) ([]byte, error) {
	values := map[string]interface{}{
		"token":      ev.Asset,
		"sender":     ev.Sender,
		"token_id":   ev.AssetID,
		"account_id": ev.Recipient,
	}
	if s.has("token_uri") {
		values["token_uri"] = ev.TokenURI
	}
	return Encode(s, &Log{Emitter: ev.LockerAddress, Values: values})
}

// DecodeWithdrawn decodes a Withdraw log.
func DecodeWithdrawn(s *Schema, raw []byte) (*WithdrawnLog, error) {
	l, err := Decode(s, raw)
	if err != nil {
		return nil, err
	}
	ev := &WithdrawnLog{EmitterAddress: l.Emitter}
	if ev.AssetAddress, err = l.Address("token_address"); err != nil {
		return nil, err
	}
	if ev.Sender, err = l.Address("sender"); err != nil {
		return nil, err
	}
	if ev.OriginContractID, err = l.String("token_account_id"); err != nil {
		return nil, err
	}
	if ev.AssetID, err = l.String("token_id"); err != nil {
		return nil, err
	}
	if ev.Recipient, err = l.String("account_id"); err != nil {
		return nil, err
	}
	return ev, nil
}

// EncodeWithdrawn builds the raw log DecodeWithdrawn accepts.
func EncodeWithdrawn(s *Schema, ev *WithdrawnLog) ([]byte, error) {
	return Encode(s, &Log{Emitter: ev.EmitterAddress, Values: map[string]interface{}{
		"token_address":    ev.AssetAddress,
		"sender":           ev.Sender,
		"token_account_id": ev.OriginContractID,
		"token_id":         ev.AssetID,
		"account_id":       ev.Recipient,
	}})
}

// DecodeMetadata decodes a MetadataUpdated log.
func DecodeMetadata(s *Schema, raw []byte) (*MetadataUpdateEvent, error) {
	l, err := Decode(s, raw)
	if err != nil {
		return nil, err
	}
	ev := &MetadataUpdateEvent{ConnectorAddress: l.Emitter}
	if ev.Asset, err = l.Address("token"); err != nil {
		return nil, err
	}
	if ev.Name, err = l.String("name"); err != nil {
		return nil, err
	}
	if ev.Symbol, err = l.String("symbol"); err != nil {
		return nil, err
	}
	if ev.Timestamp, err = l.Uint("timestamp"); err != nil {
		return nil, err
	}
	return ev, nil
}

// EncodeMetadata builds the raw log DecodeMetadata accepts.
func EncodeMetadata(s *Schema, ev *MetadataUpdateEvent) ([]byte, error) {
	return Encode(s, &Log{Emitter: ev.ConnectorAddress, Values: map[string]interface{}{
		"token":     ev.Asset,
		"name":      ev.Name,
		"symbol":    ev.Symbol,
		"timestamp": ev.Timestamp,
	}})
}
