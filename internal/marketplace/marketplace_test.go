package marketplace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/browser/static"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
)

func testConfig() *config.Config {
	return config.NewDefaultConfig()
}

func saved(opts ...static.Option) *static.Driver {
	return static.New(static.Dir{Root: "testdata"}, opts...)
}

func readFixture(t *testing.T, rel string) string {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(body)
}

func TestSearchServices(t *testing.T) {
	d := saved()
	s := NewScraper(d, testConfig(), zaptest.NewLogger(t))

	results, err := s.SearchServices(context.Background(), "desain logo")
	require.NoError(t, err)

	want := []SearchResult{
		{Title: "Desain logo profesional", Freelancer: "budi_design", Price: "Rp 150.000", Rating: "4.9", URL: "https://fastwork.id/service/123"},
		{Title: "Pembuatan website toko online", Freelancer: "sari.dev", Price: "Rp 2.500.000", Rating: "5.0", URL: "https://fastwork.id/service/456"},
		{Title: "Video editing", Freelancer: "andi.video", Price: "Rp 300.000", Rating: "4.8", URL: "https://fastwork.id/service/999"},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("SearchServices mismatch (-want +got):\n%s", diff)
	}

	hist := d.History()
	require.NotEmpty(t, hist)
	assert.Equal(t, "https://fastwork.id/search?q=desain+logo", hist[0].Target)
}

func TestSearchDropsOnlyTheBrokenCard(t *testing.T) {
	page := readFixture(t, "fastwork.id/search.html")
	ctx := context.Background()

	full, err := NewScraper(static.New(static.Pages{"https://fastwork.id/search": page}), testConfig(), nil).SearchServices(ctx, "x")
	require.NoError(t, err)

	broken := strings.Replace(page, `<span class="freelancer-name">budi_design</span>`, ``, 1)
	core, logs := observer.New(zap.WarnLevel)
	partial, err := NewScraper(static.New(static.Pages{"https://fastwork.id/search": broken}), testConfig(), zap.New(core)).SearchServices(ctx, "x")
	require.NoError(t, err)

	require.Len(t, partial, len(full)-1)
	if diff := cmp.Diff(full[1:], partial); diff != "" {
		t.Errorf("other records changed (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, logs.FilterMessage("Dropped incomplete cards.").Len())
}

func TestSearchEmptyCollection(t *testing.T) {
	d := static.New(static.Pages{"https://fastwork.id/search": `<html><body><p>Tidak ada hasil</p></body></html>`})
	results, err := NewScraper(d, testConfig(), nil).SearchServices(context.Background(), "zzz")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearchNavigationFailure(t *testing.T) {
	d := saved(static.FailNavigate("https://fastwork.id/search", errors.New("net::ERR_NAME_NOT_RESOLVED")))
	_, err := NewScraper(d, testConfig(), nil).SearchServices(context.Background(), "x")
	assert.ErrorContains(t, err, "ERR_NAME_NOT_RESOLVED")
}

func TestFreelancerProfile(t *testing.T) {
	d := saved()
	p, err := NewScraper(d, testConfig(), nil).FreelancerProfile(context.Background(), "https://fastwork.id/u/budi_design")
	require.NoError(t, err)

	want := &Profile{
		Username: "budi_design",
		Bio:      "Desainer grafis berpengalaman 8 tahun.",
		Services: []ServiceLink{
			{Title: "Desain logo profesional", URL: "https://fastwork.id/service/123"},
			{Title: "Desain kartu nama", URL: "https://fastwork.id/service/124"},
		},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("FreelancerProfile mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, d.Count("navigate"), "services are read from the same page")
}

func TestFreelancerProfileWithoutUsername(t *testing.T) {
	d := static.New(static.Pages{"https://fastwork.id/u/ghost": `<html><body><p>Pengguna tidak ditemukan</p></body></html>`})
	_, err := NewScraper(d, testConfig(), nil).FreelancerProfile(context.Background(), "https://fastwork.id/u/ghost")
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestDashboardStats(t *testing.T) {
	stats, err := NewSellerCenter(saved(), testConfig(), nil).DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{MetricActiveOrders: "3", MetricTotalEarned: "Rp 12.450.000"}, stats)
}

func TestDashboardStatsMissingMetric(t *testing.T) {
	page := strings.Replace(readFixture(t, "seller.fastwork.id/dashboard.html"), "Total akumulasi pendapatan", "Saldo", 1)
	d := static.New(static.Pages{"https://seller.fastwork.id/dashboard": page})

	stats, err := NewSellerCenter(d, testConfig(), nil).DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{MetricActiveOrders: "3"}, stats)
}

func TestProducts(t *testing.T) {
	d := saved()
	products, err := NewSellerCenter(d, testConfig(), nil).Products(context.Background())
	require.NoError(t, err)

	want := []Product{
		{Title: "Desain logo profesional", Status: "Aktif", URL: "https://fastwork.id/service/123"},
		{Title: "Draf tanpa tautan", Status: "Draf"},
	}
	if diff := cmp.Diff(want, products); diff != "" {
		t.Errorf("Products mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, d.Count("sleep"), "the table is given time to render")
}

func strPtr(s string) *string { return &s }

func TestEditProduct(t *testing.T) {
	const productURL = "https://seller.fastwork.id/services/123"

	t.Run("fills only the provided fields", func(t *testing.T) {
		d := saved()
		res, err := NewSellerCenter(d, testConfig(), nil).EditProduct(context.Background(), productURL, ProductEdit{Price: strPtr("175000")})
		require.NoError(t, err)
		assert.True(t, res.Saved)
		assert.Equal(t, []string{"price"}, res.Applied)

		var fills []static.Interaction
		for _, it := range d.History() {
			if it.Kind == "fill" {
				fills = append(fills, it)
			}
		}
		require.Len(t, fills, 1)
		assert.Equal(t, "175000", fills[0].Value)
		assert.Equal(t, 1, d.Count("sleep"))

		url, _ := d.CurrentURL(context.Background())
		assert.Equal(t, productURL, url, "saving submits the form")
	})

	t.Run("missing input reports the step and partial result", func(t *testing.T) {
		d := saved(static.FailLookup("input[name='price']", browser.ErrNotFound))
		res, err := NewSellerCenter(d, testConfig(), nil).EditProduct(context.Background(), productURL,
			ProductEdit{Title: strPtr("Logo premium"), Price: strPtr("200000")})

		var actionErr *ActionError
		require.ErrorAs(t, err, &actionErr)
		assert.Equal(t, "edit_product", actionErr.Action)
		assert.Equal(t, "price", actionErr.Step)
		assert.ErrorIs(t, err, browser.ErrNotFound)

		require.NotNil(t, res)
		assert.False(t, res.Saved)
		assert.Equal(t, []string{"title"}, res.Applied)
		assert.Zero(t, d.Count("sleep"), "save never ran")
	})

	t.Run("entry point rendered as a plain element", func(t *testing.T) {
		d := static.New(static.Pages{productURL: `<html><body>
			<div class="toolbar"><span class="action">Edit Jasa</span></div>
			<form action="/services/123" method="post">
				<input name="title" value="Desain logo profesional">
				<input name="price" value="150000">
				<button type="submit">Simpan</button>
			</form></body></html>`})
		res, err := NewSellerCenter(d, testConfig(), nil).EditProduct(context.Background(), productURL, ProductEdit{Title: strPtr("Logo premium")})
		require.NoError(t, err)
		assert.True(t, res.Saved)
		assert.Equal(t, []string{"title"}, res.Applied)
	})

	t.Run("missing edit entry point", func(t *testing.T) {
		d := static.New(static.Pages{productURL: `<html><body><h1>Jasa</h1></body></html>`})
		res, err := NewSellerCenter(d, testConfig(), nil).EditProduct(context.Background(), productURL, ProductEdit{Title: strPtr("x")})
		var actionErr *ActionError
		require.ErrorAs(t, err, &actionErr)
		assert.Equal(t, "open_editor", actionErr.Step)
		assert.Empty(t, res.Applied)
	})
}

func TestActiveOrders(t *testing.T) {
	orders, err := NewOrders(saved(), testConfig(), nil).ActiveOrders(context.Background())
	require.NoError(t, err)

	want := []Order{
		{Title: "Desain logo kafe", Price: "Rp 150.000", Status: "Sedang dikerjakan", URL: "https://fastwork.id/orders/1001"},
		{Title: "Revisi banner", Price: "Rp 75.000", Status: "Menunggu revisi"},
	}
	if diff := cmp.Diff(want, orders); diff != "" {
		t.Errorf("ActiveOrders mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderDetails(t *testing.T) {
	details, err := NewOrders(saved(), testConfig(), nil).OrderDetails(context.Background(), "https://fastwork.id/orders/1001")
	require.NoError(t, err)

	want := &OrderDetails{
		URL:    "https://fastwork.id/orders/1001",
		Title:  "Desain logo kafe",
		Status: "Sedang dikerjakan",
		Price:  "Rp 150.000",
		Buyer:  "kopi_senja",
	}
	if diff := cmp.Diff(want, details); diff != "" {
		t.Errorf("OrderDetails mismatch (-want +got):\n%s", diff)
	}
}
