package cart

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
)

// Item is one cart line. FinalPrice is fixed when the line is created.
type Item struct {
	ID         string                   `json:"id"`
	Product    models.Product           `json:"product"`
	Quantity   int                      `json:"quantity"`
	Notes      string                   `json:"notes,omitempty"`
	Variants   []models.SelectedVariant `json:"variants,omitempty"`
	FinalPrice decimal.Decimal          `json:"finalPrice"`
}

// LineTotal is FinalPrice times Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.FinalPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ToOrderLine snapshots the item for an order.
func (i Item) ToOrderLine() models.OrderLine {
	final := i.FinalPrice
	variants := make([]models.SelectedVariant, len(i.Variants))
	copy(variants, i.Variants)
	return models.OrderLine{
		ProductID:  i.Product.ID,
		Name:       i.Product.Name,
		Quantity:   i.Quantity,
		UnitPrice:  i.Product.Price,
		FinalPrice: &final,
		Notes:      i.Notes,
		Variants:   variants,
	}
}

// FinalPrice is the product price plus every selected variant price.
func FinalPrice(product models.Product, variants []models.SelectedVariant) decimal.Decimal {
	total := product.Price
	for _, v := range variants {
		total = total.Add(v.Price)
	}
	return total
}

// MergePolicy returns lines with newLine applied. A line without variants merges into
// the existing variant-free line of the same product by adding quantities; anything
// else is appended. lines is never mutated.
func MergePolicy(lines []Item, newLine Item) []Item {
	out := make([]Item, len(lines), len(lines)+1)
	copy(out, lines)

	if len(newLine.Variants) == 0 {
		for i := range out {
			if out[i].Product.ID == newLine.Product.ID && len(out[i].Variants) == 0 {
				out[i].Quantity += newLine.Quantity
				if out[i].Notes == "" {
					out[i].Notes = newLine.Notes
				}
				return out
			}
		}
	}
	return append(out, newLine)
}
