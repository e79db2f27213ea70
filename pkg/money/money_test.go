package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatBRL(t *testing.T) {
	cases := map[string]string{
		"0":          "R$ 0,00",
		"5":          "R$ 5,00",
		"12.5":       "R$ 12,50",
		"999.99":     "R$ 999,99",
		"1234.5":     "R$ 1.234,50",
		"1234567.89": "R$ 1.234.567,89",
		"-42.1":      "-R$ 42,10",
		"10.005":     "R$ 10,01",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatBRL(decimal.RequireFromString(in)), in)
	}
}

func TestSum(t *testing.T) {
	got := Sum(decimal.RequireFromString("1.10"), decimal.RequireFromString("2.20"))
	assert.True(t, got.Equal(decimal.RequireFromString("3.3")))
	assert.True(t, Sum().IsZero())
}

func TestExtend(t *testing.T) {
	got := Extend(decimal.RequireFromString("12.45"), 3)
	assert.True(t, got.Equal(decimal.RequireFromString("37.35")))
	assert.True(t, Extend(decimal.NewFromInt(9), 0).IsZero())
}
