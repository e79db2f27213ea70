package helpers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/internal/cart"
	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

func TestValidateCustomer(t *testing.T) {
	t.Parallel()
	if err := ValidateCustomer("Ana", "1199"); err != nil {
		t.Fatalf("expected valid customer, got %v", err)
	}
	err := ValidateCustomer("  ", "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := pkgerrors.As(err).Message(); got != "Informe seu nome." {
		t.Fatalf("name must be checked before phone, got %q", got)
	}
}

func TestValidatePaymentReturnsConfiguredSpelling(t *testing.T) {
	t.Parallel()
	settings, err := tenants.FromModel(models.Tenant{ID: uuid.New(), PaymentMethodsEnabled: []string{"Pix", "Cartão de crédito"}})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	got, err := ValidatePayment(settings, " cartão de CRÉDITO ")
	if err != nil {
		t.Fatalf("expected accepted payment, got %v", err)
	}
	if got != "Cartão de crédito" {
		t.Fatalf("expected canonical spelling, got %q", got)
	}
	if _, err := ValidatePayment(settings, "Dinheiro"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected disabled method to be rejected, got %v", err)
	}
}

func TestValidateAddress(t *testing.T) {
	t.Parallel()
	addr, err := ValidateAddress(enums.DeliveryTypeDelivery, models.OrderAddress{Street: " Rua B ", Number: "7", Neighborhood: "Centro", Complement: " apto 2 "})
	if err != nil {
		t.Fatalf("expected valid address, got %v", err)
	}
	if addr.Street != "Rua B" || addr.Complement != "apto 2" {
		t.Fatalf("expected trimmed address, got %+v", addr)
	}

	addr, err = ValidateAddress(enums.DeliveryTypePickup, models.OrderAddress{})
	if err != nil || addr != nil {
		t.Fatalf("pickup carries no address, got %+v %v", addr, err)
	}

	if _, err := ValidateAddress(enums.DeliveryTypeDelivery, models.OrderAddress{Street: "Rua B", Number: "7"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected missing neighborhood to fail, got %v", err)
	}
}

func TestDeliveryFee(t *testing.T) {
	t.Parallel()
	zones := []models.DeliveryZone{
		{Neighborhood: "Vila Nova", DeliveryFee: decimal.RequireFromString("7.50"), IsActive: true},
		{Neighborhood: "Centro", DeliveryFee: decimal.RequireFromString("5.00"), IsActive: false},
		{Neighborhood: " centro ", DeliveryFee: decimal.RequireFromString("6.00"), IsActive: true},
	}

	cases := []struct {
		name         string
		deliveryType enums.DeliveryType
		neighborhood string
		want         string
	}{
		{"exact", enums.DeliveryTypeDelivery, "Vila Nova", "7.5"},
		{"case and spaces", enums.DeliveryTypeDelivery, "  VILA nova", "7.5"},
		{"skips inactive", enums.DeliveryTypeDelivery, "Centro", "6"},
		{"no match", enums.DeliveryTypeDelivery, "Moema", "0"},
		{"pickup", enums.DeliveryTypePickup, "Vila Nova", "0"},
	}
	for _, tc := range cases {
		got := DeliveryFee(tc.deliveryType, zones, tc.neighborhood)
		if got.String() != tc.want {
			t.Fatalf("%s: expected fee %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestComputeTotals(t *testing.T) {
	t.Parallel()
	pizza := models.Product{ID: uuid.New(), Name: "Pizza", Price: decimal.RequireFromString("50.00")}
	soda := models.Product{ID: uuid.New(), Name: "Refrigerante", Price: decimal.RequireFromString("6.50")}
	items := []cart.Item{
		{ID: "a", Product: pizza, Quantity: 2, FinalPrice: decimal.RequireFromString("58.00"),
			Variants: []models.SelectedVariant{{Group: "Bordas", Name: "Catupiry", Price: decimal.RequireFromString("8.00")}}},
		{ID: "b", Product: soda, Quantity: 3, FinalPrice: decimal.RequireFromString("6.50")},
	}

	lines := BuildLines(items)
	if len(lines) != 2 || lines[0].Name != "Pizza" || lines[1].Quantity != 3 {
		t.Fatalf("unexpected lines %+v", lines)
	}
	totals := ComputeTotals(lines, decimal.RequireFromString("5.00"))
	if totals.Subtotal.String() != "135.5" {
		t.Fatalf("expected subtotal 135.5, got %s", totals.Subtotal)
	}
	if totals.Total.String() != "140.5" {
		t.Fatalf("expected total 140.5, got %s", totals.Total)
	}
	if totals.ItemCount != 5 {
		t.Fatalf("expected 5 items, got %d", totals.ItemCount)
	}
}
