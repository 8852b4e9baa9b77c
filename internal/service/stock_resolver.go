package service

import (
	"github.com/GTDGit/gtd_storefront/internal/models"
	"github.com/GTDGit/gtd_storefront/internal/utils"
)

// StockResolver returns the authoritative available quantity for a product
// and optional variant.
type StockResolver struct{}

// NewStockResolver constructs a StockResolver.
func NewStockResolver() *StockResolver {
	return &StockResolver{}
}

// Resolve returns available stock. Products without a variant dimension use
// the scalar stock. Variant products require a selector; an undeclared or
// null entry is zero stock, never unlimited.
func (r *StockResolver) Resolve(product *models.Product, variant string) (int, error) {
	if product == nil {
		return 0, utils.ErrProductNotFound
	}
	if !product.HasVariants() {
		if product.Stock == nil || *product.Stock < 0 {
			return 0, nil
		}
		return *product.Stock, nil
	}
	if variant == "" {
		return 0, utils.ErrVariantRequired
	}
	return product.SizeStock.Get(variant), nil
}

// NormalizeKey drops a variant passed for a product without variants so that
// line identity stays stable.
func (r *StockResolver) NormalizeKey(product *models.Product, key models.LineKey) models.LineKey {
	if product != nil && !product.HasVariants() {
		key.Variant = ""
	}
	return key
}
