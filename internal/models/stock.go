package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// VariantStock maps a variant selector (e.g. a shoe size) to its available
// quantity. Whatever shape the catalog delivers, it is normalized into this
// one associative form at ingestion time.
type VariantStock map[string]int

// Get returns the stock for the selector. A missing entry is zero stock.
func (v VariantStock) Get(variant string) int {
	if v == nil {
		return 0
	}
	if n := v[variant]; n > 0 {
		return n
	}
	return 0
}

// Keys returns the declared selectors in a stable order.
func (v VariantStock) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalJSON accepts the plain object form {"7":2} as well as the
// ordered-map entry forms [["7",2]] and [{"key":"7","value":2}].
// Null quantities decode as zero.
func (v *VariantStock) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = nil
		return nil
	}

	out := VariantStock{}
	switch data[0] {
	case '{':
		var raw map[string]*json.Number
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("invalid variant stock object: %w", err)
		}
		for k, n := range raw {
			q, err := quantityOf(n)
			if err != nil {
				return fmt.Errorf("variant %q: %w", k, err)
			}
			out[k] = q
		}
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("invalid variant stock entries: %w", err)
		}
		for _, e := range entries {
			k, q, err := decodeStockEntry(e)
			if err != nil {
				return err
			}
			out[k] = q
		}
	default:
		return errors.New("variant stock must be an object or an entry list")
	}

	*v = out
	return nil
}

func decodeStockEntry(raw json.RawMessage) (string, int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var kv struct {
			Key   json.RawMessage `json:"key"`
			Value *json.Number    `json:"value"`
		}
		if err := json.Unmarshal(raw, &kv); err != nil {
			return "", 0, fmt.Errorf("invalid variant stock entry: %w", err)
		}
		k, err := selectorOf(kv.Key)
		if err != nil {
			return "", 0, err
		}
		q, err := quantityOf(kv.Value)
		return k, q, err
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return "", 0, fmt.Errorf("invalid variant stock entry %s", string(raw))
	}
	k, err := selectorOf(pair[0])
	if err != nil {
		return "", 0, err
	}
	var n *json.Number
	if err := json.Unmarshal(pair[1], &n); err != nil {
		return "", 0, fmt.Errorf("variant %q: invalid quantity: %w", k, err)
	}
	q, err := quantityOf(n)
	return k, q, err
}

// selectorOf reads a selector that may have been serialized as a string or a number.
func selectorOf(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("invalid variant selector %s", string(raw))
}

func quantityOf(n *json.Number) (int, error) {
	if n == nil {
		return 0, nil
	}
	i, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", n.String())
	}
	if i < 0 {
		return 0, nil
	}
	return int(i), nil
}

// Scan implements sql.Scanner for JSONB columns.
func (v *VariantStock) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		return v.UnmarshalJSON(s)
	case string:
		return v.UnmarshalJSON([]byte(s))
	default:
		return fmt.Errorf("cannot scan %T into VariantStock", src)
	}
}

// Value implements driver.Valuer.
func (v VariantStock) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(map[string]int(v))
}
