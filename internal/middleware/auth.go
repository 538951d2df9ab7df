package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/handlers"
)

// CallerKey is the gin context key holding the authenticated account id.
const CallerKey = "caller_account_id"

// AuthMiddleware validates caller identity tokens.
type AuthMiddleware struct {
	logger *logrus.Logger
	secret []byte
}

// NewAuthMiddleware createJWT
func NewAuthMiddleware(logger *logrus.Logger, secret []byte) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, secret: secret}
}

func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "MISSING_AUTH_HEADER"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "INVALID_AUTH_FORMAT"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "EMPTY_TOKEN"
	}
	return token, ""
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
	c.Abort()
}

// RequireAuth requires a valid caller token and stores its account id under CallerKey.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, code := bearerToken(c)
		if code != "" {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"code":   code,
			}).Warn("JWT auth failed")
			abortUnauthorized(c, code, "Authentication required")
			return
		}

		claims, err := handlers.ValidateCallerToken(a.secret, tokenString)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"error":  err.Error(),
			}).Warn("JWT auth failed - invalid token")
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set(CallerKey, claims.AccountID)
		a.logger.WithFields(logrus.Fields{
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
			"account": claims.AccountID,
		}).Debug("JWT auth success")
		c.Next()
	}
}

// Caller returns the authenticated account id.
func Caller(c *gin.Context) string {
	return c.GetString(CallerKey)
}
