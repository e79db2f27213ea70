package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/angelmondragon/orderdesk-backend/internal/receipts"
	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
)

const whatsAppBaseURL = "https://wa.me/"

// VendorMessage is the order summary the customer hands to the store over WhatsApp.
type VendorMessage struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// ComposeVendorMessage formats the order for the store. URL is empty when the tenant
// has no usable phone.
func ComposeVendorMessage(order models.Order, info tenants.DisplayInfo) VendorMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "*Novo pedido #%s*\n", receipts.ShortID(order))
	fmt.Fprintf(&b, "Cliente: %s\n", order.CustomerName)
	fmt.Fprintf(&b, "Telefone: %s\n", order.CustomerPhone)
	if order.DeliveryType == enums.DeliveryTypeDelivery && order.Address != nil {
		addr := order.Address
		fmt.Fprintf(&b, "Entrega: %s, %s - %s", addr.Street, addr.Number, addr.Neighborhood)
		if addr.Complement != "" {
			fmt.Fprintf(&b, " (%s)", addr.Complement)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("Retirada no local\n")
	}

	b.WriteString("\n")
	for _, line := range order.Lines {
		fmt.Fprintf(&b, "%dx %s", line.Quantity, line.Name)
		if len(line.Variants) > 0 {
			names := make([]string, 0, len(line.Variants))
			for _, v := range line.Variants {
				names = append(names, v.Name)
			}
			fmt.Fprintf(&b, " (%s)", strings.Join(names, ", "))
		}
		fmt.Fprintf(&b, " - %s\n", money.FormatBRL(money.Extend(line.EffectivePrice(), line.Quantity)))
		if line.Notes != "" {
			fmt.Fprintf(&b, "  Obs: %s\n", line.Notes)
		}
	}

	b.WriteString("\n")
	if order.DeliveryFee.IsPositive() {
		fmt.Fprintf(&b, "Taxa de entrega: %s\n", money.FormatBRL(order.DeliveryFee))
	}
	fmt.Fprintf(&b, "*Total: %s*\n", money.FormatBRL(order.TotalAmount))
	fmt.Fprintf(&b, "Pagamento: %s", order.PaymentMethod)
	if order.ChangeFor != nil && order.ChangeFor.IsPositive() {
		fmt.Fprintf(&b, " (troco para %s)", money.FormatBRL(*order.ChangeFor))
	}

	msg := VendorMessage{Text: b.String()}
	if phone := whatsAppNumber(info.Phone); phone != "" {
		msg.URL = whatsAppBaseURL + phone + "?text=" + url.QueryEscape(msg.Text)
	}
	return msg
}

// whatsAppNumber keeps the digits of phone and prefixes Brazil's country code on
// local numbers (10 or 11 digits).
func whatsAppNumber(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) == 10 || len(digits) == 11 {
		digits = "55" + digits
	}
	return digits
}
