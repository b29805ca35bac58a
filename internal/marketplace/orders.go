package marketplace

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"github.com/xkilldash9x/fastwork-cli/internal/extract"
)

// Orders reads the buyer/seller order pages.
type Orders struct {
	module
}

// NewOrders creates an orders module on d.
func NewOrders(d browser.Driver, cfg *config.Config, logger *zap.Logger) *Orders {
	return &Orders{module: newModule(d, cfg, logger, "marketplace.orders")}
}

// ActiveOrders lists the orders in progress.
func (o *Orders) ActiveOrders(ctx context.Context) ([]Order, error) {
	records, err := o.records(ctx, extract.Spec{
		Name:   "orders.active",
		Target: o.origin + "/orders?status=active",
		Card:   browser.CSS(".order-card"),
		Fields: []extract.Field{
			{Name: "title", Selectors: []browser.Selector{browser.CSS(".order-title")}},
			{Name: "price", Selectors: []browser.Selector{browser.CSS(".order-price")}},
			{Name: "status", Selectors: []browser.Selector{browser.CSS(".order-status-badge")}},
			{Name: "url", Selectors: []browser.Selector{browser.CSS("a")}, Attr: "href", Optional: true, Absolute: true},
		},
	})
	if err != nil {
		return nil, err
	}
	return toSlice(records, func(r extract.Record) Order {
		return Order{Title: r.Get("title"), Price: r.Get("price"), Status: r.Get("status"), URL: r.Get("url")}
	}), nil
}

// OrderDetails reads a single order page.
func (o *Orders) OrderDetails(ctx context.Context, orderURL string) (*OrderDetails, error) {
	r, err := o.single(ctx, extract.Spec{
		Name:   "orders.details",
		Target: orderURL,
		Fields: []extract.Field{
			{Name: "title", Selectors: []browser.Selector{browser.CSS(".order-title"), browser.CSS("h1")}},
			{Name: "status", Selectors: []browser.Selector{browser.CSS(".order-status-badge"), browser.CSS(".order-status")}},
			{Name: "price", Selectors: []browser.Selector{browser.CSS(".order-price")}, Optional: true},
			{Name: "buyer", Selectors: []browser.Selector{browser.CSS(".buyer-name"), browser.CSS(".order-buyer")}, Optional: true},
			{Name: "deadline", Selectors: []browser.Selector{browser.CSS(".order-deadline"), browser.CSS(".due-date")}, Optional: true},
		},
	})
	if err != nil {
		return nil, err
	}
	return &OrderDetails{
		URL:      orderURL,
		Title:    r.Get("title"),
		Status:   r.Get("status"),
		Price:    r.Get("price"),
		Buyer:    r.Get("buyer"),
		Deadline: r.Get("deadline"),
	}, nil
}
