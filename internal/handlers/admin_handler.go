package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/dto"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/services"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// AdminHandler serves pause control and bridge settings.
type AdminHandler struct {
	state *services.BridgeStateService
	pause *services.PauseControlService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(state *services.BridgeStateService, pause *services.PauseControlService) *AdminHandler {
	return &AdminHandler{state: state, pause: pause}
}

func (h *AdminHandler) pauseState(c *gin.Context) {
	mask, err := h.pause.Mask(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    dto.PauseStateResponse{Mask: mask, Paused: services.FeatureNames(mask)},
	})
}

// GetPausedHandler GET /api/v1/admin/paused
func (h *AdminHandler) GetPausedHandler(c *gin.Context) {
	h.pauseState(c)
}

// SetPausedHandler PUT /api/v1/admin/paused
func (h *AdminHandler) SetPausedHandler(c *gin.Context) {
	var req dto.SetPausedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	switch {
	case req.Mask != nil:
		if err := h.pause.SetPaused(ctx, caller(c), *req.Mask); err != nil {
			respondError(c, err)
			return
		}
	case req.Feature != "" && req.Paused != nil:
		feature, err := services.ParseFeature(req.Feature)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := h.pause.SetFeaturePaused(ctx, caller(c), feature, *req.Paused); err != nil {
			respondError(c, err)
			return
		}
	default:
		respondBadRequest(c, "either mask or feature and paused are required")
		return
	}
	h.pauseState(c)
}

// SetControllerHandler PUT /api/v1/admin/controller
func (h *AdminHandler) SetControllerHandler(c *gin.Context) {
	var req dto.SetControllerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if err := h.state.SetController(c.Request.Context(), caller(c), req.ControllerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "controller_id": req.ControllerID})
}

// SetMetadataConnectorHandler PUT /api/v1/admin/metadata-connector
func (h *AdminHandler) SetMetadataConnectorHandler(c *gin.Context) {
	var req dto.SetMetadataConnectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	connector, err := types.ParseAddressInput(req.Connector)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.state.SetMetadataConnector(c.Request.Context(), caller(c), connector); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "connector": connector.Hex()})
}
