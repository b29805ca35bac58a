package marketplace

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"github.com/xkilldash9x/fastwork-cli/internal/extract"
)

// Scraper reads public pages: search results and freelancer profiles.
type Scraper struct {
	module
}

// NewScraper creates a scraper on d.
func NewScraper(d browser.Driver, cfg *config.Config, logger *zap.Logger) *Scraper {
	return &Scraper{module: newModule(d, cfg, logger, "marketplace.scraper")}
}

// SearchURL returns the search page for query.
func (s *Scraper) SearchURL(query string) string {
	return s.origin + "/search?q=" + url.QueryEscape(query)
}

func searchSpec() extract.Spec {
	return extract.Spec{
		Name: "search",
		Card: browser.CSS(".product-card, .service-card"),
		Fields: []extract.Field{
			{Name: "title", Selectors: []browser.Selector{browser.CSS(".product-title"), browser.CSS(".title")}},
			{Name: "freelancer", Selectors: []browser.Selector{browser.CSS(".freelancer-name"), browser.CSS(".username")}},
			{Name: "price", Selectors: []browser.Selector{browser.CSS(".price")}},
			{Name: "rating", Selectors: []browser.Selector{browser.CSS(".rating"), browser.CSS(".review-score")}},
			{Name: "url", Selectors: []browser.Selector{browser.CSS("a")}, Attr: "href", Absolute: true},
		},
	}
}

// SearchServices returns the service cards matching query, in page order.
func (s *Scraper) SearchServices(ctx context.Context, query string) ([]SearchResult, error) {
	spec := searchSpec()
	spec.Target = s.SearchURL(query)

	records, err := s.records(ctx, spec)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Search complete.", zap.String("query", query), zap.Int("results", len(records)))
	return toSlice(records, func(r extract.Record) SearchResult {
		return SearchResult{
			Title:      r.Get("title"),
			Freelancer: r.Get("freelancer"),
			Price:      r.Get("price"),
			Rating:     r.Get("rating"),
			URL:        r.Get("url"),
		}
	}), nil
}

// FreelancerProfile reads the profile at profileURL, then the service cards
// listed on the same page.
func (s *Scraper) FreelancerProfile(ctx context.Context, profileURL string) (*Profile, error) {
	head, err := s.single(ctx, extract.Spec{
		Name:   "profile",
		Target: profileURL,
		Fields: []extract.Field{
			{Name: "username", Selectors: []browser.Selector{browser.CSS("h1.profile-name"), browser.CSS(".username")}},
			{Name: "bio", Selectors: []browser.Selector{browser.CSS(".profile-bio"), browser.CSS(".description")}, Optional: true},
			{Name: "rating", Selectors: []browser.Selector{browser.CSS(".overall-rating")}, Optional: true},
		},
	})
	if err != nil {
		return nil, err
	}

	services, err := s.records(ctx, extract.Spec{
		Name: "profile.services",
		Card: browser.CSS(".service-card"),
		Fields: []extract.Field{
			{Name: "title", Selectors: []browser.Selector{browser.CSS(".title")}},
			{Name: "url", Selectors: []browser.Selector{browser.CSS("a")}, Attr: "href", Absolute: true},
		},
	})
	if err != nil {
		return nil, err
	}

	return &Profile{
		Username: head.Get("username"),
		Bio:      head.Get("bio"),
		Rating:   head.Get("rating"),
		Services: toSlice(services, func(r extract.Record) ServiceLink {
			return ServiceLink{Title: r.Get("title"), URL: r.Get("url")}
		}),
	}, nil
}
