package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/services"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// WebSocketHandler streams bridge events.
type WebSocketHandler struct {
	pushService *services.WebSocketPushService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(pushService *services.WebSocketPushService) *WebSocketHandler {
	return &WebSocketHandler{pushService: pushService}
}

// HandleWebSocket GET /api/v1/ws?asset=<hex>. Without asset every event is streamed.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	filter := services.AllAssets
	if raw := c.Query("asset"); raw != "" {
		asset, err := types.ParseAddressInput(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		filter = asset.Hex()
	}
	h.pushService.HandleWebSocket(c.Writer, c.Request, filter)
}
