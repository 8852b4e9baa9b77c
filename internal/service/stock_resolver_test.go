package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/utils"
)

func TestStockResolver_Resolve(t *testing.T) {
	r := NewStockResolver()

	n, err := r.Resolve(shoe(), "7")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.Resolve(shoe(), "8")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = r.Resolve(shoe(), "11")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "undeclared size has no stock")

	_, err = r.Resolve(shoe(), "")
	assert.True(t, errors.Is(err, utils.ErrVariantRequired))
	assert.True(t, errors.Is(err, utils.ErrValidation))

	n, err = r.Resolve(mug(), "")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = r.Resolve(&models.Product{ID: "x"}, "")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "missing scalar stock is zero")

	_, err = r.Resolve(nil, "")
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
}

func TestStockResolver_NormalizeKey(t *testing.T) {
	r := NewStockResolver()

	key := r.NormalizeKey(mug(), models.LineKey{ProductID: "mug", Variant: "XL"})
	assert.Equal(t, models.LineKey{ProductID: "mug"}, key)

	key = r.NormalizeKey(shoe(), models.LineKey{ProductID: "shoe", Variant: "7"})
	assert.Equal(t, "7", key.Variant)
}

func TestAggregate(t *testing.T) {
	lines := []models.Line{
		{Key: models.LineKey{ProductID: "a"}, Quantity: 2, UnitPrice: dec("10.50")},
		{Key: models.LineKey{ProductID: "b", Variant: "7"}, Quantity: 3, UnitPrice: dec("4")},
	}
	totals := Aggregate(lines)
	assert.Equal(t, 5, totals.TotalItems)
	assert.True(t, totals.TotalAmount.Equal(dec("33")))

	empty := Aggregate(nil)
	assert.Equal(t, 0, empty.TotalItems)
	assert.True(t, empty.TotalAmount.IsZero())
}
