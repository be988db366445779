// Package receipt renders a plain-text receipt for a committed order. It is
// a pure read-side projection; nothing here mutates state.
package receipt

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"tienda/pkg/order"
)

const width = 40

// Render writes a ticket-style receipt for o to w.
func Render(w io.Writer, o order.Order) error {
	rule := strings.Repeat("-", width)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", center("TIENDA"))
	fmt.Fprintf(&b, "Pedido: %s\n", o.ID)
	fmt.Fprintf(&b, "Cliente: %s\n", o.Customer)
	fmt.Fprintf(&b, "Fecha: %s\n", o.CreatedAt.Format("02/01/2006 15:04"))
	fmt.Fprintf(&b, "%s\n", rule)
	for _, l := range o.Lines {
		left := fmt.Sprintf("%d x %s", l.Quantity, l.ProductName)
		right := fmt.Sprintf("$%s", l.Subtotal.StringFixed(2))
		fmt.Fprintf(&b, "%s\n", spread(left, right))
	}
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "%s\n", center(fmt.Sprintf("TOTAL: $%s", o.Total.StringFixed(2))))

	_, err := io.WriteString(w, b.String())
	return err
}

// Widths are counted in runes so accented product names pad correctly.
func center(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	pad := (width - n) / 2
	return strings.Repeat(" ", pad) + s
}

// spread pads left and right to opposite edges of the ticket line.
func spread(left, right string) string {
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}
