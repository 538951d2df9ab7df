package types

import (
	"errors"
	"net/http"
)

// BridgeError is a domain error with a stable code. Sentinels below are matched with errors.Is
// and wrapped with fmt.Errorf("%w: ...") to add detail.
type BridgeError struct {
	Code       string
	HTTPStatus int
	Message    string
}

func (e *BridgeError) Error() string {
	return e.Message
}

// Is matches on code so copies of a sentinel still compare equal.
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newBridgeError(code string, status int, message string) *BridgeError {
	return &BridgeError{Code: code, HTTPStatus: status, Message: message}
}

var (
	ErrInvalidAddress          = newBridgeError("INVALID_ADDRESS", http.StatusBadRequest, "invalid address")
	ErrMalformedEventLog       = newBridgeError("MALFORMED_EVENT_LOG", http.StatusBadRequest, "malformed event log")
	ErrLockerMismatch          = newBridgeError("LOCKER_MISMATCH", http.StatusBadRequest, "event emitted by unexpected locker")
	ErrAssetNotProvisioned     = newBridgeError("ASSET_NOT_PROVISIONED", http.StatusNotFound, "asset not provisioned")
	ErrAssetAlreadyProvisioned = newBridgeError("ASSET_ALREADY_PROVISIONED", http.StatusConflict, "asset already provisioned")
	ErrProofRejected           = newBridgeError("PROOF_REJECTED", http.StatusUnprocessableEntity, "proof rejected by verifier")
	ErrProofReplayed           = newBridgeError("PROOF_REPLAYED", http.StatusConflict, "proof already used")
	ErrInsufficientDeposit     = newBridgeError("INSUFFICIENT_DEPOSIT", http.StatusPaymentRequired, "insufficient deposit")
	ErrUnauthorizedReporter    = newBridgeError("UNAUTHORIZED_REPORTER", http.StatusForbidden, "caller is not the sub-contract of this asset")
	ErrUnauthorizedAdmin       = newBridgeError("UNAUTHORIZED_ADMIN", http.StatusForbidden, "caller is not allowed to administer the bridge")
	ErrOperationPaused         = newBridgeError("OPERATION_PAUSED", http.StatusServiceUnavailable, "operation paused")
	ErrUnknownAsset            = newBridgeError("UNKNOWN_ASSET", http.StatusNotFound, "unknown asset")

	ErrConnectorMismatch  = newBridgeError("CONNECTOR_MISMATCH", http.StatusBadRequest, "event emitted by unexpected metadata connector")
	ErrStaleMetadata      = newBridgeError("STALE_METADATA", http.StatusConflict, "metadata timestamp is older than the recorded one")
	ErrAlreadyInitialized = newBridgeError("ALREADY_INITIALIZED", http.StatusConflict, "bridge already initialized")
	ErrNotInitialized     = newBridgeError("NOT_INITIALIZED", http.StatusServiceUnavailable, "bridge not initialized")
	ErrTransferNotFound   = newBridgeError("TRANSFER_NOT_FOUND", http.StatusNotFound, "transfer not found")
	ErrTransferNotPending = newBridgeError("TRANSFER_NOT_PENDING", http.StatusConflict, "transfer is not awaiting verification")
	ErrTokenNotFound      = newBridgeError("TOKEN_NOT_FOUND", http.StatusNotFound, "token not found")
	ErrNotTokenOwner      = newBridgeError("NOT_TOKEN_OWNER", http.StatusForbidden, "caller does not own the token")
	ErrTokenAlreadyMinted = newBridgeError("TOKEN_ALREADY_MINTED", http.StatusConflict, "token already minted")
	ErrInvalidAmount      = newBridgeError("INVALID_AMOUNT", http.StatusBadRequest, "invalid amount")
	ErrInvalidPauseMask   = newBridgeError("INVALID_PAUSE_MASK", http.StatusBadRequest, "invalid pause mask")
	ErrInvalidProof       = newBridgeError("INVALID_PROOF", http.StatusBadRequest, "invalid proof encoding")
)

// CodeOf returns the code of the first BridgeError in err's chain, or "INTERNAL_ERROR".
func CodeOf(err error) string {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Code
	}
	return "INTERNAL_ERROR"
}

// HTTPStatusOf maps err to an HTTP status, defaulting to 500.
func HTTPStatusOf(err error) int {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.HTTPStatus
	}
	return http.StatusInternalServerError
}
