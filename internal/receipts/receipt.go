// Package receipts renders printable order receipts and hands them to print surfaces.
package receipts

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
)

//go:embed templates/receipt.html.tmpl
var templateFS embed.FS

var receiptTemplate = template.Must(
	template.New("receipt.html.tmpl").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/receipt.html.tmpl"),
)

const createdAtLayout = "02/01/2006 15:04"

type variantGroup struct {
	Name  string
	Items []string
}

type lineView struct {
	Quantity int
	Name     string
	Unit     string
	Total    string
	Notes    string
	Groups   []variantGroup
}

type receiptView struct {
	Tenant        tenants.DisplayInfo
	ShortID       string
	CreatedAt     string
	DeliveryLabel string
	CustomerName  string
	CustomerPhone string
	Address       *models.OrderAddress
	Lines         []lineView
	Subtotal      string
	DeliveryFee   string
	Total         string
	PaymentMethod string
	ChangeFor     string
}

// Generate renders the receipt document. The output depends only on its arguments:
// the only time shown is the order's CreatedAt, in the tenant location (UTC when unset).
func Generate(order models.Order, info tenants.DisplayInfo) ([]byte, error) {
	loc := info.Location
	if loc == nil {
		loc = time.UTC
	}

	view := receiptView{
		Tenant:        info,
		ShortID:       ShortID(order),
		CreatedAt:     order.CreatedAt.In(loc).Format(createdAtLayout),
		DeliveryLabel: order.DeliveryType.Label(),
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		Subtotal:      money.FormatBRL(order.Subtotal()),
		DeliveryFee:   money.FormatBRL(order.DeliveryFee),
		Total:         money.FormatBRL(order.TotalAmount),
		PaymentMethod: order.PaymentMethod,
	}
	if order.Address != nil && order.DeliveryType != enums.DeliveryTypePickup {
		addr := *order.Address
		view.Address = &addr
	}
	if order.ChangeFor != nil && order.ChangeFor.IsPositive() {
		view.ChangeFor = money.FormatBRL(*order.ChangeFor)
	}

	view.Lines = make([]lineView, 0, len(order.Lines))
	for _, line := range order.Lines {
		unit := line.EffectivePrice()
		view.Lines = append(view.Lines, lineView{
			Quantity: line.Quantity,
			Name:     line.Name,
			Unit:     money.FormatBRL(unit),
			Total:    money.FormatBRL(money.Extend(unit, line.Quantity)),
			Notes:    strings.TrimSpace(line.Notes),
			Groups:   groupVariants(line.Variants),
		})
	}

	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// groupVariants folds selected variants by group name, keeping first-seen order.
func groupVariants(variants []models.SelectedVariant) []variantGroup {
	if len(variants) == 0 {
		return nil
	}
	var groups []variantGroup
	index := map[string]int{}
	for _, v := range variants {
		pos, ok := index[v.Group]
		if !ok {
			pos = len(groups)
			index[v.Group] = pos
			groups = append(groups, variantGroup{Name: v.Group})
		}
		groups[pos].Items = append(groups[pos].Items, v.Name)
	}
	return groups
}

// ShortID is the first block of the order id in upper case, as read out to customers.
func ShortID(order models.Order) string {
	id := order.ID.String()
	head, _, _ := strings.Cut(id, "-")
	return strings.ToUpper(head)
}
