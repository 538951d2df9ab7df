package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	log "github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// ProverClient calls the proof verification service over HTTP.
type ProverClient struct {
	BaseURL string
	Client  *http.Client

	attempts uint
	delay    time.Duration
}

// VerifyLogEntryRequest is the body of POST /api/v1/verify_log_entry.
type VerifyLogEntryRequest struct {
	RequestID string       `json:"request_id,omitempty"`
	Proof     *types.Proof `json:"proof"`
}

// VerifyLogEntryResponse is the verifier's answer.
type VerifyLogEntryResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Verified  bool   `json:"verified"`
	Error     string `json:"error,omitempty"`
}

// NewProverClient Create a new prover client
func NewProverClient(cfg config.VerifierConfig) *ProverClient {
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	delay := 400 * time.Millisecond
	if cfg.RetryDelayMs > 0 {
		delay = time.Duration(cfg.RetryDelayMs) * time.Millisecond
	}

	fmt.Printf("🔧 [Prover] Create client: BaseURL=%s, Timeout=%v, Attempts=%d\n", cfg.BaseURL, timeout, attempts)
	return &ProverClient{
		BaseURL:  cfg.BaseURL,
		Client:   &http.Client{Timeout: timeout},
		attempts: attempts,
		delay:    delay,
	}
}

// VerifyLogEntry asks the verifier whether proof is valid. Transport failures and 5xx answers
// are retried; a 4xx answer is final.
func (c *ProverClient) VerifyLogEntry(ctx context.Context, requestID string, proof *types.Proof) (bool, error) {
	body, err := json.Marshal(&VerifyLogEntryRequest{RequestID: requestID, Proof: proof})
	if err != nil {
		return false, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result VerifyLogEntryResponse
	err = retry.Do(func() error {
		resp, err := c.post(ctx, "/api/v1/verify_log_entry", body)
		if err != nil {
			return err
		}
		result = *resp
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithFields(log.Fields{
				"request_id":   requestID,
				"attempt":      n + 1,
				"max_attempts": c.attempts,
			}).Warnf("⚠️ [Prover] verify_log_entry failed, retrying: %v", err)
		}),
	)
	if err != nil {
		return false, err
	}
	if result.Error != "" {
		return false, fmt.Errorf("verifier: %s", result.Error)
	}
	return result.Verified, nil
}

func (c *ProverClient) post(ctx context.Context, path string, body []byte) (*VerifyLogEntryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("prover returned error (status %d): %s", resp.StatusCode, string(data))
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ [Prover] verify_log_entry rejected: status=%d body=%s", resp.StatusCode, string(data))
		return nil, retry.Unrecoverable(fmt.Errorf("prover returned error (status %d): %s", resp.StatusCode, string(data)))
	}

	var result VerifyLogEntryResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return &result, nil
}

// HealthCheck probes GET /health.
func (c *ProverClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("prover unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prover health check failed with status %d", resp.StatusCode)
	}
	return nil
}
