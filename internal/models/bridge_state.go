package models

import (
	"time"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// BridgeStateID is the primary key of the single bridge_state row.
const BridgeStateID = 1

// BridgeState holds the bridge identity and admin settings. There is exactly one row.
type BridgeState struct {
	ID                uint          `json:"-" gorm:"primaryKey;autoIncrement:false"`
	OwnerID           string        `json:"owner_id" gorm:"size:128;not null"`
	ControllerID      string        `json:"controller_id" gorm:"size:128"`
	VerifierID        string        `json:"verifier_id" gorm:"size:128;not null"`
	LockerAddress     types.Address `json:"locker_address" gorm:"type:varchar(40);not null"`
	MetadataConnector types.Address `json:"metadata_connector" gorm:"type:varchar(40)"`
	PausedMask        uint32        `json:"paused_mask" gorm:"not null;default:0"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TableName 指定表名
func (BridgeState) TableName() string {
	return "bridge_state"
}
