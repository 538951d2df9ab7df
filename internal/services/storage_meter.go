package services

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// StorageRecordOverhead is charged for every stored entry on top of its key and value bytes.
const StorageRecordOverhead = 40

// StorageDelta is a number of bytes added to bridge storage.
type StorageDelta uint64

// EntryDelta is the storage consumed by one new entry.
func EntryDelta(keyLen, valueLen int) StorageDelta {
	return StorageDelta(StorageRecordOverhead + keyLen + valueLen)
}

var (
	// LedgerEntryDelta is the cost of one replay fingerprint.
	LedgerEntryDelta = EntryDelta(types.FingerprintLength, 0)
	// RegistryEntryDelta is the cost of one registered asset, keyed by its hex form.
	RegistryEntryDelta = EntryDelta(2*types.AddressLength, 0)
)

// StorageMeter prices storage and checks attached deposits.
type StorageMeter struct {
	byteCost              *uint256.Int
	initBalance           *uint256.Int
	tokenStorageDeposit   *uint256.Int
	updateMetadataDeposit *uint256.Int
}

// NewStorageMeter parses the bridge amounts.
func NewStorageMeter(cfg config.BridgeConfig) (*StorageMeter, error) {
	m := &StorageMeter{}
	fields := []struct {
		dst **uint256.Int
		val string
		key string
	}{
		{&m.byteCost, cfg.StorageByteCost, "storage_byte_cost"},
		{&m.initBalance, cfg.BridgeTokenInitBalance, "bridge_token_init_balance"},
		{&m.tokenStorageDeposit, cfg.TokenStorageDeposit, "token_storage_deposit"},
		{&m.updateMetadataDeposit, cfg.UpdateMetadataDeposit, "update_metadata_deposit"},
	}
	for _, f := range fields {
		v, err := types.ParseAmount(f.val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = v
	}
	return m, nil
}

// Cost returns byte cost * delta, saturating at the maximum amount.
func (m *StorageMeter) Cost(delta StorageDelta) *uint256.Int {
	out, overflow := new(uint256.Int).MulOverflow(m.byteCost, uint256.NewInt(uint64(delta)))
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}

func saturatingAdd(a, b *uint256.Int) *uint256.Int {
	out, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}

// ProvisionRequirement is the base allocation of a new sub-contract plus its registry entry.
func (m *StorageMeter) ProvisionRequirement(delta StorageDelta) *uint256.Int {
	return saturatingAdd(m.initBalance, m.Cost(delta))
}

// InboundRequirement is the per-token registration cost plus the replay ledger entry.
func (m *StorageMeter) InboundRequirement(delta StorageDelta) *uint256.Int {
	return saturatingAdd(m.tokenStorageDeposit, m.Cost(delta))
}

// MetadataRequirement is the fixed deposit of a metadata update.
func (m *StorageMeter) MetadataRequirement() *uint256.Int {
	return new(uint256.Int).Set(m.updateMetadataDeposit)
}

// Require fails with ErrInsufficientDeposit when deposit < required.
func (m *StorageMeter) Require(deposit, required *uint256.Int) error {
	if deposit == nil || deposit.Lt(required) {
		got := "0"
		if deposit != nil {
			got = deposit.Dec()
		}
		return fmt.Errorf("%w: attached %s, required %s", types.ErrInsufficientDeposit, got, required.Dec())
	}
	return nil
}
