package models

import (
	"time"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// TransferKind 转账类型
type TransferKind string

const (
	TransferKindInbound  TransferKind = "inbound_transfer"
	TransferKindMetadata TransferKind = "metadata_update"
)

// TransferStatus 转账状态
type TransferStatus string

const (
	TransferStatusSubmitted TransferStatus = "submitted" // 已提交
	TransferStatusVerifying TransferStatus = "verifying" // 等待验证结果
	TransferStatusApplied   TransferStatus = "applied"   // 已生效
	TransferStatusRejected  TransferStatus = "rejected"  // 已拒绝
)

// IsTerminal reports whether no further transition is possible.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusApplied || s == TransferStatusRejected
}

// BridgeTransfer is one proof submission and the context its verification continuation needs.
type BridgeTransfer struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"` // UUID
	Kind      TransferKind   `json:"kind" gorm:"size:32;not null;index"`
	Status    TransferStatus `json:"status" gorm:"size:16;not null;default:submitted;index"`
	Submitter string         `json:"submitter" gorm:"size:128"`

	// 事件上下文
	Asset     types.Address `json:"asset" gorm:"type:varchar(40);index"`
	AssetID   string        `json:"asset_id,omitempty"`
	Recipient string        `json:"recipient,omitempty"`
	Sender    types.Address `json:"sender" gorm:"type:varchar(40)"`
	TokenURI  string        `json:"token_uri,omitempty" gorm:"type:text"`

	MetadataName      string `json:"metadata_name,omitempty"`
	MetadataSymbol    string `json:"metadata_symbol,omitempty"`
	MetadataTimestamp uint64 `json:"metadata_timestamp,omitempty"`

	Fingerprint string `json:"fingerprint" gorm:"size:64;index"`
	ProofData   []byte `json:"-"` // RLP encoded proof
	Deposit     string `json:"deposit" gorm:"size:80"`

	// 错误信息
	ErrorCode string `json:"error_code,omitempty" gorm:"size:64"`
	LastError string `json:"last_error,omitempty" gorm:"type:text"`

	DispatchCount int `json:"dispatch_count" gorm:"default:0"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (BridgeTransfer) TableName() string {
	return "bridge_transfers"
}

// WithdrawResult certifies a burn on a sub-contract for relay to the origin chain.
type WithdrawResult struct {
	ID         uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Asset      types.Address `json:"asset" gorm:"type:varchar(40);not null;index"`
	AssetID    string        `json:"asset_id" gorm:"not null"`
	Recipient  types.Address `json:"recipient" gorm:"type:varchar(40);not null"`
	ContractID string        `json:"contract_id" gorm:"size:128"`
	CreatedAt  time.Time     `json:"created_at"`
}

// TableName 指定表名
func (WithdrawResult) TableName() string {
	return "withdraw_results"
}
