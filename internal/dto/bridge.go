package dto

import "time"

// ==================== Bridge DTOs ====================

// InitializeRequest 初始化桥请求
type InitializeRequest struct {
	VerifierID    string `json:"verifier_id" binding:"required"`
	LockerAddress string `json:"locker_address" binding:"required"`
}

// ProvisionAssetRequest 注册资产请求
type ProvisionAssetRequest struct {
	Asset   string `json:"asset" binding:"required"`
	Deposit string `json:"deposit"`
}

// ProvisionAssetResponse 注册资产响应
type ProvisionAssetResponse struct {
	Asset      string `json:"asset"`
	ContractID string `json:"contract_id"`
}

// ReportWithdrawalRequest is sent by a sub-contract after burning a token.
type ReportWithdrawalRequest struct {
	AssetID      string `json:"asset_id" binding:"required"`
	AssetAddress string `json:"asset_address" binding:"required"`
	Recipient    string `json:"recipient" binding:"required"`
}

// TokenWithdrawRequest asks a sub-contract to burn the caller's token.
type TokenWithdrawRequest struct {
	TokenID   string `json:"token_id" binding:"required"`
	Recipient string `json:"recipient" binding:"required"`
}

// WithdrawResultResponse is a withdraw result with its rendered Withdraw log.
type WithdrawResultResponse struct {
	ID         uint64    `json:"id"`
	Asset      string    `json:"asset"`
	AssetID    string    `json:"asset_id"`
	Recipient  string    `json:"recipient"`
	ContractID string    `json:"contract_id"`
	Log        string    `json:"log,omitempty"` // 0x-prefixed RLP log
	CreatedAt  time.Time `json:"created_at"`
}

// SetPausedRequest either replaces the whole mask or toggles one named feature.
type SetPausedRequest struct {
	Mask    *uint32 `json:"mask,omitempty"`
	Feature string  `json:"feature,omitempty"`
	Paused  *bool   `json:"paused,omitempty"`
}

// PauseStateResponse 暂停状态
type PauseStateResponse struct {
	Mask   uint32   `json:"mask"`
	Paused []string `json:"paused"`
}

// SetControllerRequest 设置控制者
type SetControllerRequest struct {
	ControllerID string `json:"controller_id" binding:"required"`
}

// SetMetadataConnectorRequest 设置元数据连接器
type SetMetadataConnectorRequest struct {
	Connector string `json:"connector" binding:"required"`
}
