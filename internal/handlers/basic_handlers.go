package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthCheckHandler GET /api/health
func HealthCheckHandler(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		database := "healthy"
		if sqlDB, err := conn.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			database = "unreachable"
		}
		c.JSON(status, gin.H{
			"status":   http.StatusText(status),
			"service":  "nft-bridge",
			"database": database,
		})
	}
}
