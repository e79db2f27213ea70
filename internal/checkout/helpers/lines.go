package helpers

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/internal/cart"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
)

// OrderTotals are the amounts fixed on an order at submission.
type OrderTotals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
	ItemCount   int
}

// BuildLines snapshots the cart items as order lines, in cart order.
func BuildLines(items []cart.Item) []models.OrderLine {
	lines := make([]models.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, item.ToOrderLine())
	}
	return lines
}

// ComputeTotals sums finalPrice × quantity over the lines and adds the fee.
func ComputeTotals(lines []models.OrderLine, fee decimal.Decimal) OrderTotals {
	totals := OrderTotals{Subtotal: decimal.Zero, DeliveryFee: fee}
	for _, line := range lines {
		totals.Subtotal = totals.Subtotal.Add(money.Extend(line.EffectivePrice(), line.Quantity))
		totals.ItemCount += line.Quantity
	}
	totals.Total = money.Sum(totals.Subtotal, fee)
	return totals
}
