// Package money formats decimal amounts for Brazilian customers and receipts.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBRL renders amount as "R$ 1.234,50": two decimals, dot thousands separator,
// comma decimal separator.
func FormatBRL(amount decimal.Decimal) string {
	neg := amount.IsNegative()
	if neg {
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.Grow(len(intPart) + len(intPart)/3 + 7)
	if neg {
		b.WriteString("-")
	}
	b.WriteString("R$ ")

	rem := len(intPart) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(intPart[:rem])
	for i := rem; i < len(intPart); i += 3 {
		b.WriteByte('.')
		b.WriteString(intPart[i : i+3])
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}

// Sum adds every amount.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Extend is the line amount for qty units of unit.
func Extend(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}
