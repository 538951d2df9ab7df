package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/handlers"
)

// AdminAuthMiddleware 管理员认证中间件
type AdminAuthMiddleware struct {
	logger       *logrus.Logger
	adminSecret  []byte
	callerSecret []byte
}

// NewAdminAuthMiddleware 创建管理员认证中间件
func NewAdminAuthMiddleware(logger *logrus.Logger, adminSecret, callerSecret []byte) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		logger:       logger,
		adminSecret:  adminSecret,
		callerSecret: callerSecret,
	}
}

// RequireAdminAuth accepts an operator token from /admin/login or a caller token. Either way the
// account id is stored under CallerKey; the services decide whether it may administer.
func (a *AdminAuthMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, code := bearerToken(c)
		if code != "" {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"code":   code,
			}).Warn("Admin auth failed")
			abortUnauthorized(c, code, "Authentication required")
			return
		}

		if claims, err := handlers.ValidateAdminJWTToken(a.adminSecret, tokenString); err == nil && claims.Role == "admin" {
			c.Set("admin_username", claims.Username)
			c.Set(CallerKey, claims.Subject)
			c.Next()
			return
		}

		claims, err := handlers.ValidateCallerToken(a.callerSecret, tokenString)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"error":  err.Error(),
			}).Warn("Admin auth failed - invalid token")
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}
		c.Set(CallerKey, claims.AccountID)
		c.Next()
	}
}
