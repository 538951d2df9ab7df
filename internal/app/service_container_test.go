package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/clients"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/db/dbtest"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/eventlog"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/handlers"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/router"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

const (
	lockerHex   = "57f1887a8bf19b14fc0df6fd9b2acc9af147ea85"
	assetHex    = "629a673a8242c2ac4b7b8c5d8735fbeac21a6205"
	callerToken = "caller-secret"
)

type bridgeAPI struct {
	t      *testing.T
	engine *gin.Engine
}

func (a *bridgeAPI) token(account string) string {
	a.t.Helper()
	token, err := handlers.GenerateCallerToken([]byte(callerToken), "nft-bridge", account, time.Hour)
	require.NoError(a.t, err)
	return token
}

func (a *bridgeAPI) do(method, path, account string, body interface{}) (int, map[string]interface{}) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(account))
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func newBridgeAPI(t *testing.T) *bridgeAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prover := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req clients.VerifyLogEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Proof == nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(clients.VerifyLogEntryResponse{Verified: true})
	}))
	t.Cleanup(prover.Close)

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
bridge:
  account_id: factory
  owner_id: bridge
  verifier_id: prover
  locker_address: %s
  storage_byte_cost: "1"
  bridge_token_init_balance: "1000"
  token_storage_deposit: "100"
  update_metadata_deposit: "50"
verifier:
  baseUrl: %s
  retryDelayMs: 1
auth:
  jwt_secret: %s
admin:
  jwtSecret: admin-secret
`, lockerHex, prover.URL, callerToken)))
	require.NoError(t, err)

	conn := dbtest.New(t)
	container, err := NewServiceContainer(cfg, conn)
	require.NoError(t, err)
	require.NoError(t, container.Start(context.Background()))
	t.Cleanup(container.Cleanup)

	return &bridgeAPI{t: t, engine: router.SetupRouter(cfg, conn, container.Handlers())}
}

func lockedProofBody(t *testing.T, assetID, recipient string) map[string]interface{} {
	t.Helper()
	raw, err := eventlog.EncodeLocked(eventlog.LockedSchema, &eventlog.LockedEvent{
		LockerAddress: types.MustDecodeAddress(lockerHex),
		Asset:         types.MustDecodeAddress(assetHex),
		Sender:        types.MustDecodeAddress("6b175474e89094c44da98b954eedeac495271d0f"),
		AssetID:       assetID,
		Recipient:     recipient,
		TokenURI:      "ipfs://token/" + assetID,
	})
	require.NoError(t, err)
	return map[string]interface{}{
		"proof": &types.Proof{
			LogIndex:     0,
			LogEntryData: raw,
			HeaderData:   []byte("header " + assetID),
		},
		"deposit": "10000",
	}
}

func TestBridgeEndToEnd(t *testing.T) {
	api := newBridgeAPI(t)

	code, body := api.do(http.MethodGet, "/api/v1/bridge/state", "", nil)
	require.Equal(t, http.StatusOK, code)
	state := body["data"].(map[string]interface{})
	assert.Equal(t, "bridge", state["owner_id"])
	assert.Equal(t, lockerHex, state["locker_address"])

	code, body = api.do(http.MethodPost, "/api/v1/assets", "alice", map[string]string{"asset": "0x" + assetHex, "deposit": "10000"})
	require.Equal(t, http.StatusCreated, code, body)
	contractID := body["data"].(map[string]interface{})["contract_id"].(string)
	assert.Equal(t, assetHex+".factory", contractID)

	code, body = api.do(http.MethodPost, "/api/v1/assets", "alice", map[string]string{"asset": assetHex, "deposit": "10000"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ASSET_ALREADY_PROVISIONED", body["code"])

	code, body = api.do(http.MethodPost, "/api/v1/transfers/inbound", "relayer", lockedProofBody(t, "0", "alice"))
	require.Equal(t, http.StatusAccepted, code, body)
	transferID := body["data"].(map[string]interface{})["transfer_id"].(string)

	require.Eventually(t, func() bool {
		code, body := api.do(http.MethodGet, "/api/v1/transfers/"+transferID, "", nil)
		return code == http.StatusOK && body["data"].(map[string]interface{})["status"] == "applied"
	}, 5*time.Second, 25*time.Millisecond)

	code, body = api.do(http.MethodGet, "/api/v1/contracts/"+contractID+"/tokens/0", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", body["data"].(map[string]interface{})["owner_id"])

	code, body = api.do(http.MethodPost, "/api/v1/transfers/inbound", "relayer", lockedProofBody(t, "0", "alice"))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "PROOF_REPLAYED", body["code"])

	// a 39 character recipient is rejected and the token stays with alice
	code, body = api.do(http.MethodPost, "/api/v1/contracts/"+contractID+"/withdraw", "alice",
		map[string]string{"token_id": "0", "recipient": "47b78acc6d29428f128eb04b467d316e548e4b8"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ADDRESS", body["code"])

	code, body = api.do(http.MethodPost, "/api/v1/contracts/"+contractID+"/withdraw", "mallory",
		map[string]string{"token_id": "0", "recipient": "047b78acc6d29428f128eb04b467d316e548e4b8"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "NOT_TOKEN_OWNER", body["code"])

	code, body = api.do(http.MethodPost, "/api/v1/contracts/"+contractID+"/withdraw", "alice",
		map[string]string{"token_id": "0", "recipient": "047b78acc6d29428f128eb04b467d316e548e4b8"})
	require.Equal(t, http.StatusOK, code, body)
	withdrawal := body["data"].(map[string]interface{})
	assert.Equal(t, assetHex, withdrawal["asset"])
	assert.Equal(t, "047b78acc6d29428f128eb04b467d316e548e4b8", withdrawal["recipient"])
	assert.True(t, strings.HasPrefix(withdrawal["log"].(string), "0x"))

	code, body = api.do(http.MethodGet, "/api/v1/withdrawals", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"].([]interface{}), 1)

	code, _ = api.do(http.MethodGet, "/api/v1/contracts/"+contractID+"/tokens/0", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminPauseOverHTTP(t *testing.T) {
	api := newBridgeAPI(t)

	code, body := api.do(http.MethodPut, "/api/v1/admin/paused", "alice", map[string]interface{}{"feature": "provision_asset", "paused": true})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "UNAUTHORIZED_ADMIN", body["code"])

	code, body = api.do(http.MethodPut, "/api/v1/admin/paused", "bridge", map[string]interface{}{"feature": "provision_asset", "paused": true})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, []interface{}{"provision_asset"}, body["data"].(map[string]interface{})["paused"])

	code, body = api.do(http.MethodPost, "/api/v1/assets", "alice", map[string]string{"asset": assetHex, "deposit": "10000"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "OPERATION_PAUSED", body["code"])

	code, body = api.do(http.MethodPut, "/api/v1/admin/paused", "bridge", map[string]interface{}{"mask": 0})
	require.Equal(t, http.StatusOK, code, body)
	assert.Empty(t, body["data"].(map[string]interface{})["paused"])

	code, _ = api.do(http.MethodPost, "/api/v1/assets", "alice", map[string]string{"asset": assetHex, "deposit": "10000"})
	assert.Equal(t, http.StatusCreated, code)
}

func TestRouterRejectsUnauthenticatedCalls(t *testing.T) {
	api := newBridgeAPI(t)

	code, body := api.do(http.MethodPost, "/api/v1/assets", "", map[string]string{"asset": assetHex})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "MISSING_AUTH_HEADER", body["code"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/paused", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("Authorization", "Bearer "+api.token("bridge"))
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "IP_NOT_ALLOWED")

	code, _ = api.do(http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
