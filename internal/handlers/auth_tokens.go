package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/dto"
)

// GenerateCallerToken issues a caller identity token for accountID.
func GenerateCallerToken(secret []byte, issuer, accountID string, ttl time.Duration) (string, error) {
	if accountID == "" {
		return "", errors.New("account id is required")
	}
	now := time.Now()
	claims := dto.CallerClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   accountID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateCallerToken verifies a caller token and returns its claims.
func ValidateCallerToken(secret []byte, tokenString string) (*dto.CallerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &dto.CallerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*dto.CallerClaims)
	if !ok || !token.Valid || claims.AccountID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
