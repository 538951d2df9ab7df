package dto

import (
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// ==================== Proof DTOs ====================

// ProofSubmissionRequest is the body of POST /api/v1/transfers/inbound and /api/v1/metadata.
// Deposit is a decimal amount attached to the call.
type ProofSubmissionRequest struct {
	Proof   *types.Proof `json:"proof" binding:"required"`
	Deposit string       `json:"deposit"`
}

// ProofSubmission is a relay submission received over NATS.
type ProofSubmission struct {
	Submitter string       `json:"submitter"`
	Proof     *types.Proof `json:"proof"`
	Deposit   string       `json:"deposit"`
}

// VerifyRequestMessage asks a remote verifier to check a proof.
type VerifyRequestMessage struct {
	RequestID string       `json:"request_id"`
	Proof     *types.Proof `json:"proof"`
}

// VerifyResultMessage is a remote verifier's answer.
type VerifyResultMessage struct {
	RequestID string `json:"request_id"`
	Verified  bool   `json:"verified"`
	Error     string `json:"error,omitempty"`
}

// SubmissionResponse acknowledges an accepted proof submission.
type SubmissionResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}
