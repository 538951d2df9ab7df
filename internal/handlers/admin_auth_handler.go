package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/dto"
)

// AdminAuthHandler 管理员认证处理器
type AdminAuthHandler struct {
	jwtSecret    []byte
	username     string
	passwordHash []byte
	totpSecret   string
	accountID    string // bridge account the operator acts as
	ttl          time.Duration
}

// NewAdminAuthHandler 创建管理员认证处理器
func NewAdminAuthHandler(cfg config.AdminConfig, accountID string) *AdminAuthHandler {
	if cfg.TOTPSecret == "" || cfg.PasswordHash == "" {
		logrus.Warn("⚠️ 安全警告: 未设置 ADMIN_TOTP_SECRET 或 ADMIN_PASSWORD_HASH，管理员登录将被拒绝")
	}
	username := cfg.Username
	if username == "" {
		username = "admin"
	}
	return &AdminAuthHandler{
		jwtSecret:    []byte(cfg.JWTSecret),
		username:     username,
		passwordHash: []byte(cfg.PasswordHash),
		totpSecret:   cfg.TOTPSecret,
		accountID:    accountID,
		ttl:          24 * time.Hour,
	}
}

// AdminLoginHandler 管理员登录处理: username + bcrypt password + TOTP code
func (h *AdminAuthHandler) AdminLoginHandler(c *gin.Context) {
	if h.totpSecret == "" || len(h.passwordHash) == 0 {
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "Admin login is not configured",
		})
		return
	}

	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AuthResponse{
			Success: false,
			Message: "Invalid request: " + err.Error(),
		})
		return
	}

	if req.Username != h.username || bcrypt.CompareHashAndPassword(h.passwordHash, []byte(req.Password)) != nil {
		logrus.WithFields(logrus.Fields{
			"username":  req.Username,
			"client_ip": c.ClientIP(),
		}).Warn("❌ Admin login failed: bad credentials")
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "Invalid username or password",
		})
		return
	}

	if !totp.Validate(req.TOTPCode, h.totpSecret) {
		logrus.WithFields(logrus.Fields{
			"username":  req.Username,
			"client_ip": c.ClientIP(),
		}).Warn("❌ Admin login failed: bad TOTP code")
		c.JSON(http.StatusUnauthorized, dto.AuthResponse{
			Success: false,
			Message: "Invalid TOTP code",
		})
		return
	}

	token, err := h.generateAdminJWTToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.AuthResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	logrus.WithField("username", req.Username).Info("✅ Admin login succeeded")
	c.JSON(http.StatusOK, dto.AuthResponse{
		Success: true,
		Token:   token,
		Message: "Login successful",
	})
}

// GenerateTOTPSecret 生成 TOTP secret（仅用于初始化）
func GenerateTOTPSecret(accountName string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      "NFT Bridge Admin",
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

// generateAdminJWTToken 生成管理员 JWT token
func (h *AdminAuthHandler) generateAdminJWTToken(username string) (string, error) {
	now := time.Now()
	claims := dto.AdminClaims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "nft-bridge-admin",
			Subject:   h.accountID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateAdminJWTToken 验证管理员 JWT token
func ValidateAdminJWTToken(secret []byte, tokenString string) (*dto.AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &dto.AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*dto.AdminClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
