package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GTDGit/gtd_storefront/internal/models"
)

// Claims is the account identity carried by storefront bearer tokens.
type Claims struct {
	AccountID   string               `json:"account_id"`
	Email       string               `json:"email"`
	Status      models.AccountStatus `json:"status"`
	PricingTier string               `json:"tier,omitempty"`
	jwt.RegisteredClaims
}

// Account converts the claims into the account the pricing rules consume.
func (c *Claims) Account() *models.Account {
	return &models.Account{
		ID:          c.AccountID,
		Email:       c.Email,
		Status:      c.Status,
		PricingTier: c.PricingTier,
	}
}

// GenerateJWT signs an HS256 token for account valid for ttl.
func GenerateJWT(secret string, account *models.Account, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID:   account.ID,
		Email:       account.Email,
		Status:      account.Status,
		PricingTier: account.PricingTier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ValidateJWT parses and verifies token. Any failure maps to ErrInvalidToken.
func ValidateJWT(secret, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.AccountID == "" {
		return nil, fmt.Errorf("%w: missing account id", ErrInvalidToken)
	}
	return claims, nil
}
