package models

import (
	"time"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// RegisteredAsset is a registry entry: an origin asset with a provisioned sub-contract.
type RegisteredAsset struct {
	Asset         types.Address `json:"asset" gorm:"primaryKey;type:varchar(40)"`
	ContractID    string        `json:"contract_id" gorm:"size:128;not null;uniqueIndex"`
	ProvisionedBy string        `json:"provisioned_by" gorm:"size:128"`
	Deposit       string        `json:"deposit" gorm:"size:80"`
	CreatedAt     time.Time     `json:"created_at"`
}

// TableName 指定表名
func (RegisteredAsset) TableName() string {
	return "registered_assets"
}

// UsedProof is a replay ledger entry. Rows are never deleted.
type UsedProof struct {
	Fingerprint string    `json:"fingerprint" gorm:"primaryKey;size:64"`
	TransferID  string    `json:"transfer_id" gorm:"size:36;index"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (UsedProof) TableName() string {
	return "used_proofs"
}

// MetadataCheckpoint is the last applied metadata update of an asset.
type MetadataCheckpoint struct {
	Asset     types.Address `json:"asset" gorm:"primaryKey;type:varchar(40)"`
	Name      string        `json:"name"`
	Symbol    string        `json:"symbol"`
	Timestamp uint64        `json:"timestamp" gorm:"not null"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TableName 指定表名
func (MetadataCheckpoint) TableName() string {
	return "metadata_checkpoints"
}
