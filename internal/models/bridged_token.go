package models

import (
	"time"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// BridgedContract is a per-asset sub-contract instance.
type BridgedContract struct {
	ContractID   string        `json:"contract_id" gorm:"primaryKey;size:128"`
	Asset        types.Address `json:"asset" gorm:"type:varchar(40);not null;uniqueIndex"`
	ControllerID string        `json:"controller_id" gorm:"size:128;not null"`
	Name         string        `json:"name"`
	Symbol       string        `json:"symbol"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// TableName 指定表名
func (BridgedContract) TableName() string {
	return "bridged_contracts"
}

// BridgedToken is one mirrored token held by a sub-contract.
type BridgedToken struct {
	ContractID string    `json:"contract_id" gorm:"primaryKey;size:128"`
	TokenID    string    `json:"token_id" gorm:"primaryKey;size:256"`
	OwnerID    string    `json:"owner_id" gorm:"size:128;not null;index"`
	TokenURI   string    `json:"token_uri,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (BridgedToken) TableName() string {
	return "bridged_tokens"
}
