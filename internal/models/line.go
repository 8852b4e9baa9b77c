package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// CollectionKind identifies one of the line collections a session owns.
type CollectionKind string

const (
	KindCart     CollectionKind = "cart"
	KindWishlist CollectionKind = "wishlist"
	KindRFQ      CollectionKind = "rfq"
)

// Kinds lists every supported collection kind.
var Kinds = []CollectionKind{KindCart, KindWishlist, KindRFQ}

// ParseKind validates a kind coming from a route or a stored key.
func ParseKind(s string) (CollectionKind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown collection kind %q", s)
}

// StorageKey is the persisted-state key for the collection of a session.
// An empty session yields the bare kind, as a single-user client stores it.
func (k CollectionKind) StorageKey(sessionID string) string {
	if sessionID == "" {
		return string(k)
	}
	return string(k) + ":" + sessionID
}

// EventName is the broadcast signal emitted when the collection changes.
func (k CollectionKind) EventName() string {
	return string(k) + "Updated"
}

// LineKey identifies a line. Variant is empty for products without variants.
type LineKey struct {
	ProductID string `json:"productId"`
	Variant   string `json:"size,omitempty"`
}

func (k LineKey) String() string {
	if k.Variant == "" {
		return k.ProductID
	}
	return k.ProductID + "/" + k.Variant
}

// Line is a single entry in a collection.
type Line struct {
	Key        LineKey         `json:"key"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	PriceLabel string          `json:"priceLabel,omitempty"`
	Product    ProductSnapshot `json:"product"`
}

// Subtotal is quantity × unit price snapshot.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals is derived from the lines of a collection and never written directly.
type Totals struct {
	TotalItems  int             `json:"totalItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// EncodeLines serializes lines into the persisted JSON array form.
func EncodeLines(lines []Line) ([]byte, error) {
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lines: %w", err)
	}
	return data, nil
}

// DecodeLines parses the persisted form. Lines with non-positive quantity are
// dropped and duplicate keys are folded into the first occurrence.
func DecodeLines(data []byte) ([]Line, error) {
	var raw []Line
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lines: %w", err)
	}

	out := make([]Line, 0, len(raw))
	index := make(map[LineKey]int, len(raw))
	for _, l := range raw {
		if l.Quantity <= 0 || l.Key.ProductID == "" {
			continue
		}
		if i, ok := index[l.Key]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.Key] = len(out)
		out = append(out, l)
	}
	return out, nil
}
