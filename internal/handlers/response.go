package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/types"
)

// respondError maps err to its HTTP status and stable code.
func respondError(c *gin.Context, err error) {
	status := types.HTTPStatusOf(err)
	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Errorf("❌ Request failed: %v", err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    types.CodeOf(err),
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
		"code":    "INVALID_REQUEST",
	})
}
