package receipt

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"tienda/pkg/order"
)

func TestRender(t *testing.T) {
	o := order.Order{
		ID:        "abc-123",
		Customer:  "alice",
		CreatedAt: time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC),
		Lines: []order.Line{
			{ProductName: "Widget", Quantity: 3, Subtotal: decimal.RequireFromString("30.00")},
			{ProductName: "Gadget", Quantity: 1, Subtotal: decimal.RequireFromString("4.50")},
		},
		Total: decimal.RequireFromString("34.50"),
	}

	var b strings.Builder
	if err := Render(&b, o); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := b.String()

	for _, want := range []string{
		"Pedido: abc-123",
		"Cliente: alice",
		"14/03/2025 15:09",
		"3 x Widget",
		"$30.00",
		"1 x Gadget",
		"$4.50",
		"TOTAL: $34.50",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("receipt missing %q:\n%s", want, out)
		}
	}
}

func TestRenderAccentedNames(t *testing.T) {
	o := order.Order{
		ID:        "abc-123",
		Customer:  "maría",
		CreatedAt: time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC),
		Lines: []order.Line{
			{ProductName: "Jamón", Quantity: 2, Subtotal: decimal.RequireFromString("18.00")},
			{ProductName: "Jamon", Quantity: 2, Subtotal: decimal.RequireFromString("18.00")},
		},
		Total: decimal.RequireFromString("36.00"),
	}

	var b strings.Builder
	if err := Render(&b, o); err != nil {
		t.Fatalf("render: %v", err)
	}

	var accented, plain string
	for _, line := range strings.Split(b.String(), "\n") {
		switch {
		case strings.Contains(line, "Jamón"):
			accented = line
		case strings.Contains(line, "Jamon"):
			plain = line
		}
	}
	if accented == "" || plain == "" {
		t.Fatalf("missing item lines:\n%s", b.String())
	}
	if got := utf8.RuneCountInString(accented); got != width {
		t.Fatalf("accented line is %d runes wide, want %d: %q", got, width, accented)
	}
	if utf8.RuneCountInString(accented) != utf8.RuneCountInString(plain) {
		t.Fatalf("accented and plain lines pad differently:\n%q\n%q", accented, plain)
	}
}
