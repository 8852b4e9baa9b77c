package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_storefront/internal/models"
)

func TestJWT_RoundTrip(t *testing.T) {
	account := &models.Account{ID: "acc-1", Email: "buyer@example.com", Status: models.AccountActive, PricingTier: "wholesaler"}

	token, err := GenerateJWT("secret", account, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT("secret", token)
	require.NoError(t, err)
	assert.Equal(t, account, claims.Account())
}

func TestJWT_Rejects(t *testing.T) {
	account := &models.Account{ID: "acc-1", Status: models.AccountActive}

	token, err := GenerateJWT("secret", account, time.Hour)
	require.NoError(t, err)
	_, err = ValidateJWT("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateJWT("secret", account, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ValidateJWT("secret", "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous, err := GenerateJWT("secret", &models.Account{}, time.Hour)
	require.NoError(t, err)
	_, err = ValidateJWT("secret", anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestErrorCode(t *testing.T) {
	stock := &StockExceededError{ProductID: "p1", Variant: "7", Limit: 2, Requested: 3}

	assert.Equal(t, "STOCK_EXCEEDED", ErrorCode(stock))
	assert.Equal(t, "STOCK_EXCEEDED", ErrorCode(fmt.Errorf("wrapped: %w", stock)))
	assert.Equal(t, "VALIDATION_ERROR", ErrorCode(ErrVariantRequired))
	assert.Equal(t, "REMOTE_REJECTED", ErrorCode(fmt.Errorf("%w: 422", ErrRemoteRejected)))
	assert.Equal(t, "INTERNAL_ERROR", ErrorCode(errors.New("boom")))
}

func TestStockExceededError_Message(t *testing.T) {
	err := &StockExceededError{ProductID: "p1", Variant: "7", Limit: 2, Requested: 3}
	assert.Contains(t, err.Error(), "2")
	assert.Contains(t, err.Error(), "size 7")
	assert.NotContains(t, (&StockExceededError{Limit: 0}).Error(), "size")
	assert.False(t, errors.Is(err, ErrValidation))
}
