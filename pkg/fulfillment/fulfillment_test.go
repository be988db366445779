package fulfillment

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"tienda/pkg/catalog"
	catalogmem "tienda/pkg/catalog/memory"
	"tienda/pkg/logger"
	orderpkg "tienda/pkg/order"
	ordermem "tienda/pkg/order/memory"
)

func newEngine(t *testing.T, cfg Config) (*Engine, *catalogmem.Repository, *ordermem.Repository) {
	t.Helper()
	cat := catalogmem.New()
	orders := ordermem.New()
	log := logger.New(io.Discard, logger.LevelInfo, "test", nil)
	return New(cat, orders, cfg, log), cat, orders
}

func seed(t *testing.T, cat *catalogmem.Repository, name, price string, stock int) catalog.Product {
	t.Helper()
	p, err := cat.Create(context.Background(), catalog.Product{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func TestSubmitOrder(t *testing.T) {
	ctx := context.Background()
	e, cat, _ := newEngine(t, Config{})
	p := seed(t, cat, "Widget", "10.00", 5)

	o, err := e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{{ProductID: p.ID, Quantity: 3}}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(o.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(o.Lines))
	}
	l := o.Lines[0]
	if l.ProductID != p.ID || l.Quantity != 3 || l.ProductName != "Widget" {
		t.Fatalf("unexpected line: %+v", l)
	}
	if !l.UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("unexpected unit price: %s", l.UnitPrice)
	}
	if !l.Subtotal.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("unexpected subtotal: %s", l.Subtotal)
	}
	if !o.Total.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("unexpected total: %s", o.Total)
	}
	if o.ID == "" || o.CreatedAt.IsZero() {
		t.Fatalf("order missing id or timestamp: %+v", o)
	}

	got, err := cat.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Stock != 2 {
		t.Fatalf("expected stock 2, got %d", got.Stock)
	}
}

func TestSubmitOrderClampsToStock(t *testing.T) {
	ctx := context.Background()
	e, cat, _ := newEngine(t, Config{})
	p := seed(t, cat, "Widget", "10.00", 5)

	o, err := e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{{ProductID: p.ID, Quantity: 10}}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.Lines[0].Quantity != 5 {
		t.Fatalf("expected clamped quantity 5, got %d", o.Lines[0].Quantity)
	}
	if !o.Lines[0].Subtotal.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("unexpected subtotal: %s", o.Lines[0].Subtotal)
	}
	got, _ := cat.Get(ctx, p.ID)
	if got.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", got.Stock)
	}
}

func TestSubmitOrderUnknownProduct(t *testing.T) {
	ctx := context.Background()
	e, cat, orders := newEngine(t, Config{})
	p := seed(t, cat, "Widget", "10.00", 5)

	_, err := e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{{ProductID: 999, Quantity: 1}}})
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}
	list, err := orders.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected no orders, got %d (err %v)", len(list), err)
	}
	got, _ := cat.Get(ctx, p.ID)
	if got.Stock != 5 {
		t.Fatalf("stock changed to %d on rejected order", got.Stock)
	}
}

func TestSubmitOrderSkipsUnknownLine(t *testing.T) {
	ctx := context.Background()
	e, cat, _ := newEngine(t, Config{})
	p := seed(t, cat, "Widget", "10.00", 5)

	o, err := e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{
		{ProductID: 999, Quantity: 1},
		{ProductID: p.ID, Quantity: 2},
	}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(o.Lines) != 1 || o.Lines[0].ProductID != p.ID {
		t.Fatalf("expected only the known product's line, got %+v", o.Lines)
	}
}

func TestSubmitOrderSkipsUnfulfillableQuantities(t *testing.T) {
	ctx := context.Background()
	e, cat, orders := newEngine(t, Config{})
	soldOut := seed(t, cat, "Agotado", "5.00", 0)
	stocked := seed(t, cat, "Widget", "10.00", 4)
	good := seed(t, cat, "Gadget", "2.00", 6)

	o, err := e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{
		{ProductID: soldOut.ID, Quantity: 3},
		{ProductID: stocked.ID, Quantity: -2},
		{ProductID: good.ID, Quantity: 1},
	}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(o.Lines) != 1 || o.Lines[0].ProductID != good.ID {
		t.Fatalf("expected only the fulfillable line, got %+v", o.Lines)
	}
	for _, want := range []struct {
		id    int64
		stock int
	}{{soldOut.ID, 0}, {stocked.ID, 4}, {good.ID, 5}} {
		got, err := cat.Get(ctx, want.id)
		if err != nil {
			t.Fatalf("get product %d: %v", want.id, err)
		}
		if got.Stock != want.stock {
			t.Fatalf("product %d: expected stock %d, got %d", want.id, want.stock, got.Stock)
		}
	}

	// A cart with nothing fulfillable is rejected without touching stock.
	_, err = e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{
		{ProductID: soldOut.ID, Quantity: 1},
		{ProductID: stocked.ID, Quantity: 0},
	}})
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}
	list, err := orders.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected only the first order stored, got %d (err %v)", len(list), err)
	}
	got, _ := cat.Get(ctx, stocked.ID)
	if got.Stock != 4 {
		t.Fatalf("stock changed to %d on rejected order", got.Stock)
	}
}

func TestSubmitOrderSameProductTwice(t *testing.T) {
	ctx := context.Background()
	e, cat, _ := newEngine(t, Config{})
	p := seed(t, cat, "Widget", "10.00", 3)

	o, err := e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{
		{ProductID: p.ID, Quantity: 2},
		{ProductID: p.ID, Quantity: 2},
	}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(o.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(o.Lines))
	}
	if o.Lines[0].Quantity != 2 || o.Lines[1].Quantity != 1 {
		t.Fatalf("expected quantities 2 and 1, got %d and %d", o.Lines[0].Quantity, o.Lines[1].Quantity)
	}
	got, _ := cat.Get(ctx, p.ID)
	if got.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", got.Stock)
	}
}

func TestSubmitOrderMarkup(t *testing.T) {
	ctx := context.Background()
	e, cat, _ := newEngine(t, Config{Markup: decimal.RequireFromString("1.10")})
	p := seed(t, cat, "Widget", "10.00", 5)

	o, err := e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{{ProductID: p.ID, Quantity: 2}}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !o.Lines[0].UnitPrice.Equal(decimal.RequireFromString("11.00")) {
		t.Fatalf("expected unit price 11.00, got %s", o.Lines[0].UnitPrice)
	}
	if !o.Total.Equal(decimal.RequireFromString("22.00")) {
		t.Fatalf("expected total 22.00, got %s", o.Total)
	}
	// The stored price is untouched; markup only applies to the order line.
	got, _ := cat.Get(ctx, p.ID)
	if !got.Price.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("stored price changed: %s", got.Price)
	}
}

func TestSubmitOrderGuest(t *testing.T) {
	ctx := context.Background()
	e, cat, _ := newEngine(t, Config{})
	p := seed(t, cat, "Widget", "10.00", 5)

	o, err := e.SubmitOrder(ctx, Submission{Lines: []LineRequest{{ProductID: p.ID, Quantity: 1}}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.Customer != Guest {
		t.Fatalf("expected guest customer, got %q", o.Customer)
	}
}

func TestSubmitOrderTotalMatchesLines(t *testing.T) {
	ctx := context.Background()
	e, cat, _ := newEngine(t, Config{Markup: decimal.RequireFromString("1.122")})
	a := seed(t, cat, "Widget", "10.00", 5)
	b := seed(t, cat, "Gadget", "3.37", 9)

	o, err := e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{
		{ProductID: a.ID, Quantity: 3},
		{ProductID: b.ID, Quantity: 7},
	}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	sum := decimal.Zero
	for _, l := range o.Lines {
		if !l.Subtotal.Equal(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))) {
			t.Fatalf("subtotal %s != %s x %d", l.Subtotal, l.UnitPrice, l.Quantity)
		}
		sum = sum.Add(l.Subtotal)
	}
	if !o.Total.Equal(sum) {
		t.Fatalf("total %s != sum of subtotals %s", o.Total, sum)
	}
}

func TestCancelOrderRestoresStock(t *testing.T) {
	ctx := context.Background()
	e, cat, orders := newEngine(t, Config{})
	a := seed(t, cat, "Widget", "10.00", 5)
	b := seed(t, cat, "Gadget", "4.00", 2)

	o, err := e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{
		{ProductID: a.ID, Quantity: 3},
		{ProductID: b.ID, Quantity: 2},
	}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := e.CancelOrder(ctx, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := orders.Get(ctx, o.ID); !errors.Is(err, orderpkg.ErrNotFound) {
		t.Fatalf("expected order gone, got %v", err)
	}
	for _, want := range []struct {
		id    int64
		stock int
	}{{a.ID, 5}, {b.ID, 2}} {
		got, err := cat.Get(ctx, want.id)
		if err != nil {
			t.Fatalf("get product %d: %v", want.id, err)
		}
		if got.Stock != want.stock {
			t.Fatalf("product %d: expected stock %d, got %d", want.id, want.stock, got.Stock)
		}
	}
}

func TestCancelOrderNotFound(t *testing.T) {
	e, _, _ := newEngine(t, Config{})
	err := e.CancelOrder(context.Background(), "missing")
	if !errors.Is(err, orderpkg.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelOrderProductDeleted(t *testing.T) {
	ctx := context.Background()
	e, cat, orders := newEngine(t, Config{})
	a := seed(t, cat, "Widget", "10.00", 5)
	b := seed(t, cat, "Gadget", "4.00", 4)

	o, err := e.SubmitOrder(ctx, Submission{Customer: "alice", Lines: []LineRequest{
		{ProductID: a.ID, Quantity: 1},
		{ProductID: b.ID, Quantity: 2},
	}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := cat.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	if err := e.CancelOrder(ctx, o.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := orders.Get(ctx, o.ID); !errors.Is(err, orderpkg.ErrNotFound) {
		t.Fatalf("expected order gone, got %v", err)
	}
	got, _ := cat.Get(ctx, b.ID)
	if got.Stock != 4 {
		t.Fatalf("expected surviving product restored to 4, got %d", got.Stock)
	}
}
