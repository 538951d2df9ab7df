package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

var sampleProof = &types.Proof{
	LogIndex:     3,
	LogEntryData: []byte{0xc0},
	ReceiptIndex: 1,
	HeaderData:   []byte("header"),
}

func newTestProver(t *testing.T, handler http.HandlerFunc) *ProverClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProverClient(config.VerifierConfig{
		BaseURL:       srv.URL,
		Timeout:       5,
		RetryAttempts: 3,
		RetryDelayMs:  1,
	})
}

func TestVerifyLogEntry(t *testing.T) {
	prover := newTestProver(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/verify_log_entry", r.URL.Path)
		var req VerifyLogEntryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "transfer-1", req.RequestID)
		assert.Equal(t, uint64(3), req.Proof.LogIndex)
		assert.Equal(t, []byte("header"), []byte(req.Proof.HeaderData))
		_ = json.NewEncoder(w).Encode(VerifyLogEntryResponse{Verified: true})
	})

	verified, err := prover.VerifyLogEntry(context.Background(), "transfer-1", sampleProof)
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestVerifyLogEntryRetriesServerErrors(t *testing.T) {
	var calls int32
	prover := newTestProver(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(VerifyLogEntryResponse{Verified: false})
	})

	verified, err := prover.VerifyLogEntry(context.Background(), "transfer-1", sampleProof)
	require.NoError(t, err)
	assert.False(t, verified)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestVerifyLogEntryClientErrorIsFinal(t *testing.T) {
	var calls int32
	prover := newTestProver(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad proof", http.StatusBadRequest)
	})

	_, err := prover.VerifyLogEntry(context.Background(), "transfer-1", sampleProof)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestVerifyLogEntryReportedError(t *testing.T) {
	prover := newTestProver(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(VerifyLogEntryResponse{Error: "unknown block"})
	})

	verified, err := prover.VerifyLogEntry(context.Background(), "transfer-1", sampleProof)
	require.Error(t, err)
	assert.False(t, verified)
	assert.Contains(t, err.Error(), "unknown block")
}

func TestHealthCheck(t *testing.T) {
	healthy := newTestProver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, healthy.HealthCheck(context.Background()))

	down := newTestProver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.Error(t, down.HealthCheck(context.Background()))
}
