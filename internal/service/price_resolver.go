package service

import (
	"github.com/shopspring/decimal"

	"github.com/GTDGit/gtd_storefront/internal/models"
)

// PriceSource names the mechanism that produced a unit price.
type PriceSource string

const (
	PriceStandard PriceSource = "standard"
	PriceTier     PriceSource = "tier"
	PriceVolume   PriceSource = "volume"
)

// TierLabelStandard is the label of an unmodified base price.
const TierLabelStandard = "standard"

// PriceQuote is the resolved price of a product for an account and quantity.
type PriceQuote struct {
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	BasePrice       decimal.Decimal `json:"basePrice"`
	Source          PriceSource     `json:"source"`
	TierLabel       string          `json:"tierLabel"`
	DiscountPercent int             `json:"discountPercent"`
	MOQ             int             `json:"moq,omitempty"`
	// Withheld marks a price-on-request quote. UnitPrice is still the base
	// price so totals stay computable; readers must not display it.
	Withheld bool `json:"withheld,omitempty"`
}

// PriceResolver applies account-tier and volume-break pricing.
type PriceResolver struct {
	gatePrices bool
}

// NewPriceResolver constructs a PriceResolver. With gatePrices set, quotes for
// anonymous or inactive accounts are marked withheld (B2B storefront).
func NewPriceResolver(gatePrices bool) *PriceResolver {
	return &PriceResolver{gatePrices: gatePrices}
}

// GatesPrices reports whether anonymous viewers get price-on-request quotes.
func (r *PriceResolver) GatesPrices() bool {
	return r.gatePrices
}

// Resolve returns the effective unit price. Tier and volume prices only ever
// lower the price; when both apply the lower one wins.
func (r *PriceResolver) Resolve(product *models.Product, account *models.Account, quantity int) PriceQuote {
	base := product.Price
	quote := PriceQuote{
		UnitPrice: base,
		BasePrice: base,
		Source:    PriceStandard,
		TierLabel: TierLabelStandard,
		MOQ:       product.MOQ,
	}

	if !account.IsActive() {
		quote.Withheld = r.gatePrices
		return quote
	}

	if tier, ok := product.PricingTiers.Find(account.PricingTier); ok && tier.Price.LessThan(quote.UnitPrice) {
		quote.UnitPrice = tier.Price
		quote.Source = PriceTier
		quote.TierLabel = tier.TierName
	}

	if brk, ok := selectVolumeBreak(product.VolumePricing, quantity); ok {
		if price, ok := brk.UnitPrice(base); ok && price.LessThan(quote.UnitPrice) {
			quote.UnitPrice = price
			quote.Source = PriceVolume
			quote.TierLabel = string(PriceVolume)
		}
	}

	quote.DiscountPercent = discountPercent(base, quote.UnitPrice)
	return quote
}

// selectVolumeBreak picks the break with the largest MinQuantity not above q
// whose MaxQuantity, when present, is not below q.
func selectVolumeBreak(breaks models.VolumeBreaks, q int) (models.VolumeBreak, bool) {
	sorted := breaks.Sorted()
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Covers(q) {
			return sorted[i], true
		}
	}
	return models.VolumeBreak{}, false
}

func discountPercent(base, final decimal.Decimal) int {
	if !base.IsPositive() || !final.LessThan(base) {
		return 0
	}
	pct := base.Sub(final).Div(base).Mul(decimal.NewFromInt(100)).Round(0)
	if pct.IsNegative() {
		return 0
	}
	return int(pct.IntPart())
}

// ClampToMOQ raises quantity to the product's minimum order quantity.
func ClampToMOQ(product *models.Product, quantity int) int {
	if product != nil && quantity < product.MOQ {
		return product.MOQ
	}
	return quantity
}
