package marketplace

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"github.com/xkilldash9x/fastwork-cli/internal/extract"
)

// EditorSelectors address the product editor.
type EditorSelectors struct {
	Edit  browser.Selector
	Title browser.Selector
	Price browser.Selector
	Save  browser.Selector
}

// DefaultEditorSelectors match the seller center product page.
func DefaultEditorSelectors() EditorSelectors {
	return EditorSelectors{
		Edit:  browser.CSS("*").WithText("Edit Jasa"),
		Title: browser.CSS("input[name='title']"),
		Price: browser.CSS("input[name='price']"),
		Save:  browser.CSS("button").WithText("Simpan"),
	}
}

// SellerCenter reads the seller dashboard and product table and edits products.
type SellerCenter struct {
	module
	selectors      EditorSelectors
	actionTimeout  time.Duration
	editSettle     time.Duration
	productsSettle time.Duration
}

// NewSellerCenter creates a seller center module on d.
func NewSellerCenter(d browser.Driver, cfg *config.Config, logger *zap.Logger) *SellerCenter {
	return &SellerCenter{
		module:         newModule(d, cfg, logger, "marketplace.seller"),
		selectors:      DefaultEditorSelectors(),
		actionTimeout:  actionTimeout(cfg.Seller.ActionTimeout),
		editSettle:     cfg.Seller.EditSettle,
		productsSettle: cfg.Seller.ProductsSettle,
	}
}

// DashboardPairs are the metrics read from the dashboard. Each value sits in
// the div that follows its label.
func DashboardPairs() []extract.PairSpec {
	return []extract.PairSpec{
		{Key: MetricActiveOrders, Value: browser.CSS("div").WithText("Order yang sedang berjalan").Next("div")},
		{Key: MetricTotalEarned, Value: browser.CSS("div").WithText("akumulasi pendapatan").Next("div")},
	}
}

// DashboardStats reads the labelled metrics of the seller dashboard.
func (s *SellerCenter) DashboardStats(ctx context.Context) (DashboardStats, error) {
	if err := s.driver.Navigate(ctx, s.sellerOrigin+"/dashboard"); err != nil {
		return nil, err
	}
	if err := s.driver.WaitForLoad(ctx); err != nil {
		return nil, err
	}

	outcomes, err := extract.Pairs(ctx, s.driver, DashboardPairs())
	if err != nil {
		return nil, err
	}
	for _, skip := range extract.Skips(outcomes) {
		s.logger.Warn("Dashboard metric not found.", zap.String("metric", skip.Field), zap.String("reason", skip.Reason))
	}

	stats := make(DashboardStats)
	for _, r := range extract.Records(outcomes) {
		for _, k := range r.Keys() {
			stats[k] = r.Get(k)
		}
	}
	return stats, nil
}

func productsSpec() extract.Spec {
	rows := browser.CSS("table.trb-table tbody tr")
	return extract.Spec{
		Name:  "products",
		Card:  rows,
		Ready: rows,
		Fields: []extract.Field{
			// The first column may wrap an image and a category line; the title is its first line.
			{Name: "title", Selectors: []browser.Selector{browser.CSS("td:nth-child(1)")}, Transform: firstLine},
			{Name: "status", Selectors: []browser.Selector{browser.CSS("td:nth-child(3)")}},
			{Name: "url", Selectors: []browser.Selector{browser.CSS("td:nth-child(1) a")}, Attr: "href", Optional: true, Absolute: true},
		},
	}
}

// Products lists the seller's services.
func (s *SellerCenter) Products(ctx context.Context) ([]Product, error) {
	spec := productsSpec()
	spec.Target = s.sellerOrigin + "/my-services"
	spec.Settle = s.productsSettle

	records, err := s.records(ctx, spec)
	if err != nil {
		return nil, err
	}
	return toSlice(records, func(r extract.Record) Product {
		return Product{Title: r.Get("title"), Status: r.Get("status"), URL: r.Get("url")}
	}), nil
}

// ProductEdit lists the fields to overwrite. Nil fields are left untouched.
type ProductEdit struct {
	Title *string `json:"title,omitempty"`
	Price *string `json:"price,omitempty"`
}

// EditResult reports how far an edit got.
type EditResult struct {
	URL string `json:"url"`
	// Applied names the fields filled before the action ended.
	Applied []string `json:"applied"`
	Saved   bool     `json:"saved"`
}

// EditProduct opens the product editor at productURL, fills the provided
// fields and saves. When it fails, the result still lists the fields that were
// filled; the caller should re-read the product list to see what persisted.
func (s *SellerCenter) EditProduct(ctx context.Context, productURL string, edit ProductEdit) (*EditResult, error) {
	res := &EditResult{URL: productURL, Applied: []string{}}
	st := &stepper{driver: s.driver, action: "edit_product", timeout: s.actionTimeout, logger: s.logger}

	if err := st.open(ctx, productURL); err != nil {
		return res, st.fail("navigate", err)
	}
	if err := st.click(ctx, s.selectors.Edit); err != nil {
		return res, st.fail("open_editor", err)
	}
	if err := s.driver.WaitForLoad(ctx); err != nil {
		return res, st.fail("open_editor", err)
	}

	fields := []struct {
		name  string
		sel   browser.Selector
		value *string
	}{
		{"title", s.selectors.Title, edit.Title},
		{"price", s.selectors.Price, edit.Price},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if err := st.fill(ctx, f.sel, *f.value); err != nil {
			return res, st.fail(f.name, err)
		}
		res.Applied = append(res.Applied, f.name)
	}

	if err := st.click(ctx, s.selectors.Save); err != nil {
		return res, st.fail("save", err)
	}
	if err := s.driver.Sleep(ctx, s.editSettle); err != nil {
		return res, st.fail("save", err)
	}
	res.Saved = true

	s.logger.Info("Product updated.", zap.String("url", productURL), zap.Strings("fields", res.Applied))
	return res, nil
}
