package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog record the cart engine validates and prices against.
// Fields are tagged for both DB scanning and JSON serialization.
type Product struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Image         string          `db:"image" json:"image,omitempty"`
	Price         decimal.Decimal `db:"price" json:"price"`
	Stock         *int            `db:"stock" json:"stock,omitempty"`
	Sizes         StringList      `db:"sizes" json:"sizes,omitempty"`
	SizeStock     VariantStock    `db:"size_stock" json:"sizeStock"`
	PricingTiers  PricingTiers    `db:"pricing_tiers" json:"pricingTiers,omitempty"`
	VolumePricing VolumeBreaks    `db:"volume_pricing" json:"volumePricing,omitempty"`
	MOQ           int             `db:"moq" json:"moq,omitempty"`
	IsActive      bool            `db:"is_active" json:"isActive"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// HasVariants reports whether the product declares a variant dimension.
func (p *Product) HasVariants() bool {
	return len(p.Sizes) > 0 || p.SizeStock != nil
}

// Snapshot returns the denormalized copy stored on a line.
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:    p.ID,
		Name:  p.Name,
		Image: p.Image,
		Price: p.Price,
		MOQ:   p.MOQ,
	}
}

// ProductSnapshot is the product data captured on a line when it was last priced.
type ProductSnapshot struct {
	ID    string          `json:"id"`
	Name  string          `json:"name,omitempty"`
	Image string          `json:"image,omitempty"`
	Price decimal.Decimal `json:"price"`
	MOQ   int             `json:"moq,omitempty"`
}

// PricingTier is a per-account-tier price override.
type PricingTier struct {
	TierName string          `json:"tierName"`
	Price    decimal.Decimal `json:"price"`
}

// VolumeBreak is a quantity range with either a fixed unit price or a
// percentage discount off the base price.
type VolumeBreak struct {
	MinQuantity     int              `json:"minQuantity"`
	MaxQuantity     *int             `json:"maxQuantity,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	DiscountPercent *decimal.Decimal `json:"discountPercent,omitempty"`
}

// Covers reports whether the break applies to quantity q.
func (b VolumeBreak) Covers(q int) bool {
	if q < b.MinQuantity {
		return false
	}
	return b.MaxQuantity == nil || *b.MaxQuantity >= q
}

// UnitPrice returns the effective price of the break relative to base.
func (b VolumeBreak) UnitPrice(base decimal.Decimal) (decimal.Decimal, bool) {
	if b.Price != nil {
		return *b.Price, true
	}
	if b.DiscountPercent != nil {
		factor := decimal.NewFromInt(100).Sub(*b.DiscountPercent).Div(decimal.NewFromInt(100))
		return base.Mul(factor).Round(2), true
	}
	return decimal.Zero, false
}

// StringList is a JSONB-backed list of strings.
type StringList []string

func (l *StringList) Scan(src any) error { return scanJSON(src, l) }

func (l StringList) Value() (driver.Value, error) { return valueJSON(l, l == nil) }

// PricingTiers is a JSONB-backed list of tiers.
type PricingTiers []PricingTier

func (t *PricingTiers) Scan(src any) error { return scanJSON(src, t) }

func (t PricingTiers) Value() (driver.Value, error) { return valueJSON(t, t == nil) }

// Find returns the tier with the given name.
func (t PricingTiers) Find(name string) (PricingTier, bool) {
	for _, tier := range t {
		if tier.TierName == name {
			return tier, true
		}
	}
	return PricingTier{}, false
}

// VolumeBreaks is a JSONB-backed list of breaks.
type VolumeBreaks []VolumeBreak

func (b *VolumeBreaks) Scan(src any) error { return scanJSON(src, b) }

func (b VolumeBreaks) Value() (driver.Value, error) { return valueJSON(b, b == nil) }

// Sorted returns a copy ordered ascending by MinQuantity.
func (b VolumeBreaks) Sorted() VolumeBreaks {
	out := make(VolumeBreaks, len(b))
	copy(out, b)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinQuantity < out[j].MinQuantity })
	return out
}

func scanJSON(src any, dst any) error {
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(s, dst)
	case string:
		return json.Unmarshal([]byte(s), dst)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dst)
	}
}

func valueJSON(v any, isNil bool) (driver.Value, error) {
	if isNil {
		return nil, nil
	}
	return json.Marshal(v)
}
