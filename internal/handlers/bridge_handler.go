package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/dto"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/models"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/services"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// callerKey mirrors middleware.CallerKey; handlers cannot import middleware.
const callerKey = "caller_account_id"

// BridgeHandler serves the bridge entry points.
type BridgeHandler struct {
	state        *services.BridgeStateService
	registry     *services.AssetRegistryService
	orchestrator *services.TransferOrchestrator
	tokens       *services.BridgedTokenService
}

// NewBridgeHandler creates a BridgeHandler.
func NewBridgeHandler(
	state *services.BridgeStateService,
	registry *services.AssetRegistryService,
	orchestrator *services.TransferOrchestrator,
	tokens *services.BridgedTokenService,
) *BridgeHandler {
	return &BridgeHandler{
		state:        state,
		registry:     registry,
		orchestrator: orchestrator,
		tokens:       tokens,
	}
}

func caller(c *gin.Context) string {
	return c.GetString(callerKey)
}

func assetParam(c *gin.Context) (types.Address, bool) {
	asset, err := types.ParseAddressInput(c.Param("asset"))
	if err != nil {
		respondError(c, err)
		return types.Address{}, false
	}
	return asset, true
}

// InitializeHandler POST /api/v1/bridge/initialize
func (h *BridgeHandler) InitializeHandler(c *gin.Context) {
	var req dto.InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	locker, err := types.ParseAddressInput(req.LockerAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	state, err := h.state.Initialize(c.Request.Context(), caller(c), req.VerifierID, locker)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": state})
}

// GetStateHandler GET /api/v1/bridge/state
func (h *BridgeHandler) GetStateHandler(c *gin.Context) {
	state, err := h.state.State(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    state,
		"paused":  services.FeatureNames(state.PausedMask),
	})
}

// ProvisionAssetHandler POST /api/v1/assets
func (h *BridgeHandler) ProvisionAssetHandler(c *gin.Context) {
	var req dto.ProvisionAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	asset, err := types.ParseAddressInput(req.Asset)
	if err != nil {
		respondError(c, err)
		return
	}
	deposit, err := types.ParseAmount(req.Deposit)
	if err != nil {
		respondError(c, err)
		return
	}

	contractID, err := h.registry.Provision(c.Request.Context(), caller(c), asset, deposit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    dto.ProvisionAssetResponse{Asset: asset.Hex(), ContractID: contractID},
	})
}

// ListAssetsHandler GET /api/v1/assets
func (h *BridgeHandler) ListAssetsHandler(c *gin.Context) {
	assets, err := h.registry.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": assets, "total": len(assets)})
}

// ResolveSubcontractHandler GET /api/v1/assets/:asset/subcontract
func (h *BridgeHandler) ResolveSubcontractHandler(c *gin.Context) {
	asset, ok := assetParam(c)
	if !ok {
		return
	}
	contractID, err := h.registry.Resolve(c.Request.Context(), asset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    dto.ProvisionAssetResponse{Asset: asset.Hex(), ContractID: contractID},
	})
}

// GetMetadataHandler GET /api/v1/assets/:asset/metadata
func (h *BridgeHandler) GetMetadataHandler(c *gin.Context) {
	asset, ok := assetParam(c)
	if !ok {
		return
	}
	checkpoint, err := h.orchestrator.GetMetadata(c.Request.Context(), asset)
	if err != nil {
		respondError(c, err)
		return
	}
	if checkpoint == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   fmt.Sprintf("no metadata recorded for %s", asset.Hex()),
			"code":    "METADATA_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": checkpoint})
}

type submitFunc func(h *BridgeHandler, c *gin.Context, proof *types.Proof, deposit string) (*models.BridgeTransfer, error)

func (h *BridgeHandler) submitProof(c *gin.Context, submit submitFunc) {
	var req dto.ProofSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	transfer, err := submit(h, c, req.Proof, req.Deposit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": dto.SubmissionResponse{
			TransferID: transfer.ID,
			Status:     string(transfer.Status),
		},
	})
}

// FinalizeInboundTransferHandler POST /api/v1/transfers/inbound
func (h *BridgeHandler) FinalizeInboundTransferHandler(c *gin.Context) {
	h.submitProof(c, func(h *BridgeHandler, c *gin.Context, proof *types.Proof, deposit string) (*models.BridgeTransfer, error) {
		amount, err := types.ParseAmount(deposit)
		if err != nil {
			return nil, err
		}
		return h.orchestrator.FinalizeInboundTransfer(c.Request.Context(), caller(c), proof, amount)
	})
}

// UpdateMetadataHandler POST /api/v1/metadata
func (h *BridgeHandler) UpdateMetadataHandler(c *gin.Context) {
	h.submitProof(c, func(h *BridgeHandler, c *gin.Context, proof *types.Proof, deposit string) (*models.BridgeTransfer, error) {
		amount, err := types.ParseAmount(deposit)
		if err != nil {
			return nil, err
		}
		return h.orchestrator.UpdateMetadata(c.Request.Context(), caller(c), proof, amount)
	})
}

// GetTransferHandler GET /api/v1/transfers/:id
func (h *BridgeHandler) GetTransferHandler(c *gin.Context) {
	transfer, err := h.orchestrator.GetTransfer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": transfer})
}

func (h *BridgeHandler) withdrawResponse(result *models.WithdrawResult) dto.WithdrawResultResponse {
	resp := dto.WithdrawResultResponse{
		ID:         result.ID,
		Asset:      result.Asset.Hex(),
		AssetID:    result.AssetID,
		Recipient:  result.Recipient.Hex(),
		ContractID: result.ContractID,
		CreatedAt:  result.CreatedAt,
	}
	if raw, err := h.orchestrator.WithdrawLog(result); err == nil {
		resp.Log = fmt.Sprintf("0x%x", raw)
	}
	return resp
}

// ReportWithdrawalHandler POST /api/v1/withdrawals
func (h *BridgeHandler) ReportWithdrawalHandler(c *gin.Context) {
	var req dto.ReportWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	result, err := h.orchestrator.ReportOutboundWithdrawal(c.Request.Context(), caller(c), req.AssetID, req.AssetAddress, req.Recipient)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.withdrawResponse(result)})
}

// ListWithdrawalsHandler GET /api/v1/withdrawals?after=&limit=
func (h *BridgeHandler) ListWithdrawalsHandler(c *gin.Context) {
	after, err := strconv.ParseUint(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil {
		respondBadRequest(c, "after must be an unsigned integer")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		respondBadRequest(c, "limit must be an integer")
		return
	}

	results, err := h.orchestrator.ListWithdrawals(c.Request.Context(), after, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	data := make([]dto.WithdrawResultResponse, 0, len(results))
	for _, r := range results {
		data = append(data, h.withdrawResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// GetTokenHandler GET /api/v1/contracts/:contract/tokens/:token_id
func (h *BridgeHandler) GetTokenHandler(c *gin.Context) {
	token, err := h.tokens.OwnerOf(c.Request.Context(), c.Param("contract"), c.Param("token_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": token})
}

// WithdrawTokenHandler POST /api/v1/contracts/:contract/withdraw
func (h *BridgeHandler) WithdrawTokenHandler(c *gin.Context) {
	var req dto.TokenWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	result, err := h.tokens.Withdraw(c.Request.Context(), c.Param("contract"), caller(c), req.TokenID, req.Recipient)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.withdrawResponse(result)})
}
