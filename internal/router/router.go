package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/handlers"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/metrics"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Bridge    *handlers.BridgeHandler
	Admin     *handlers.AdminHandler
	AdminAuth *handlers.AdminAuthHandler
	WebSocket *handlers.WebSocketHandler
}

// corsMiddleware CORS middleware
// Priority: Environment Variable > YAML Config > Default (*)
func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := []string{"*"}
	allowCredentials := true
	maxAge := 3600

	if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
		allowedOrigins = allowedOrigins[:0]
		for _, o := range strings.Split(envOrigins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				allowedOrigins = append(allowedOrigins, trimmed)
			}
		}
		logrus.WithField("allowed_origins", allowedOrigins).Debug("CORS: Using origins from environment variable")
	} else if len(cfg.AllowedOrigins) > 0 {
		allowedOrigins = cfg.AllowedOrigins
		allowCredentials = cfg.AllowCredentials
		if cfg.MaxAge > 0 {
			maxAge = cfg.MaxAge
		}
		logrus.WithField("allowed_origins", allowedOrigins).Debug("CORS: Using origins from YAML config")
	}
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := false
			for _, o := range allowedOrigins {
				if o == origin {
					allowed = true
					break
				}
			}
			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
			} else {
				logrus.WithFields(logrus.Fields{
					"request_origin": origin,
					"path":           c.Request.URL.Path,
					"remote_addr":    c.ClientIP(),
				}).Warn("🚫 CORS: Request blocked - Origin not in whitelist")
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Next()
	}
}

// metricsMiddleware counts requests by route template.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// SetupRouter builds the HTTP surface of the bridge.
func SetupRouter(cfg *config.Config, db *gorm.DB, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(corsMiddleware(cfg.CORS))
	r.Use(metricsMiddleware())

	logger := logrus.StandardLogger()
	if len(cfg.Admin.AllowedIPs) > 0 {
		logger.WithFields(logrus.Fields{
			"allowed_ips": cfg.Admin.AllowedIPs,
			"count":       len(cfg.Admin.AllowedIPs),
		}).Info("Admin API IP whitelist configured")
	} else {
		logger.Info("No admin.allowedIPs configured, using localhost-only mode")
	}

	localhostOnly := middleware.NewLocalhostOnly(logger, cfg.Admin.AllowedIPs)
	auth := middleware.NewAuthMiddleware(logger, []byte(cfg.Auth.JWTSecret))
	adminAuth := middleware.NewAdminAuthMiddleware(logger, []byte(cfg.Admin.JWTSecret), []byte(cfg.Auth.JWTSecret))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	health := handlers.HealthCheckHandler(db)
	r.GET("/health", health)
	r.GET("/api/health", health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/bridge/state", h.Bridge.GetStateHandler)
		v1.GET("/assets", h.Bridge.ListAssetsHandler)
		v1.GET("/assets/:asset/subcontract", h.Bridge.ResolveSubcontractHandler)
		v1.GET("/assets/:asset/metadata", h.Bridge.GetMetadataHandler)
		v1.GET("/transfers/:id", h.Bridge.GetTransferHandler)
		v1.GET("/withdrawals", h.Bridge.ListWithdrawalsHandler)
		v1.GET("/contracts/:contract/tokens/:token_id", h.Bridge.GetTokenHandler)
		v1.GET("/ws", h.WebSocket.HandleWebSocket)
	}

	authed := v1.Group("", auth.RequireAuth())
	{
		authed.POST("/assets", h.Bridge.ProvisionAssetHandler)
		authed.POST("/transfers/inbound", h.Bridge.FinalizeInboundTransferHandler)
		authed.POST("/metadata", h.Bridge.UpdateMetadataHandler)
		authed.POST("/withdrawals", h.Bridge.ReportWithdrawalHandler)
		authed.POST("/contracts/:contract/withdraw", h.Bridge.WithdrawTokenHandler)
	}

	v1.POST("/admin/login", localhostOnly.Restrict(), h.AdminAuth.AdminLoginHandler)
	v1.POST("/bridge/initialize", localhostOnly.Restrict(), adminAuth.RequireAdminAuth(), h.Bridge.InitializeHandler)

	admin := v1.Group("/admin", localhostOnly.Restrict(), adminAuth.RequireAdminAuth())
	{
		admin.GET("/paused", h.Admin.GetPausedHandler)
		admin.PUT("/paused", h.Admin.SetPausedHandler)
		admin.PUT("/controller", h.Admin.SetControllerHandler)
		admin.PUT("/metadata-connector", h.Admin.SetMetadataConnectorHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "API endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}
