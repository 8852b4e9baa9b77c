package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantStock_UnmarshalShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want VariantStock
	}{
		{"object", `{"7":2,"8":0}`, VariantStock{"7": 2, "8": 0}},
		{"pair entries", `[["7",2],["8",0]]`, VariantStock{"7": 2, "8": 0}},
		{"numeric selectors", `[[7,2],[8,5]]`, VariantStock{"7": 2, "8": 5}},
		{"key value entries", `[{"key":"M","value":3},{"key":"L","value":null}]`, VariantStock{"M": 3, "L": 0}},
		{"null quantity", `{"7":null}`, VariantStock{"7": 0}},
		{"negative clamps to zero", `{"7":-4}`, VariantStock{"7": 0}},
		{"empty object", `{}`, VariantStock{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got VariantStock
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVariantStock_UnmarshalRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`"7"`, `[["7"]]`, `{"7":"two"}`, `{"7":1.5}`} {
		var got VariantStock
		assert.Error(t, json.Unmarshal([]byte(raw), &got), raw)
	}
}

func TestVariantStock_NullIsNil(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"id":"p1","price":"10","sizeStock":null}`), &p))
	assert.Nil(t, p.SizeStock)
	assert.False(t, p.HasVariants())
}

func TestVariantStock_Get(t *testing.T) {
	stock := VariantStock{"7": 2, "8": 0}

	assert.Equal(t, 2, stock.Get("7"))
	assert.Equal(t, 0, stock.Get("8"))
	assert.Equal(t, 0, stock.Get("9"), "undeclared variant must be zero, not unlimited")

	var empty VariantStock
	assert.Equal(t, 0, empty.Get("7"))
}

func TestVariantStock_ScanValue(t *testing.T) {
	var v VariantStock
	require.NoError(t, v.Scan([]byte(`[["S",1],["M",4]]`)))
	assert.Equal(t, []string{"M", "S"}, v.Keys())

	raw, err := v.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"S":1,"M":4}`, string(raw.([]byte)))

	require.NoError(t, v.Scan(nil))
	assert.Nil(t, v)
}

func TestProduct_HasVariants(t *testing.T) {
	assert.False(t, (&Product{}).HasVariants())
	assert.True(t, (&Product{Sizes: StringList{"7"}}).HasVariants())
	assert.True(t, (&Product{SizeStock: VariantStock{}}).HasVariants())
}
