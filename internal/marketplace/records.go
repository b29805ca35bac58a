package marketplace

import "github.com/xkilldash9x/fastwork-cli/internal/extract"

// SearchResult is one service card on the search page.
type SearchResult struct {
	Title      string `json:"title"`
	Freelancer string `json:"freelancer"`
	Price      string `json:"price"`
	Rating     string `json:"rating"`
	URL        string `json:"url"`
}

// ServiceLink is a service listed on a freelancer profile.
type ServiceLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Profile is a freelancer's public profile. Bio and Rating are optional.
type Profile struct {
	Username string        `json:"username"`
	Bio      string        `json:"bio,omitempty"`
	Rating   string        `json:"rating,omitempty"`
	Services []ServiceLink `json:"services"`
}

// DashboardStats maps metric keys to their displayed values. A metric whose
// label is not on the page is absent.
type DashboardStats map[string]string

// Dashboard metric keys.
const (
	MetricActiveOrders = "active_orders"
	MetricTotalEarned  = "total_earned"
)

// Product is a row of the seller's service table.
type Product struct {
	Title  string `json:"title"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// Order is an active order card.
type Order struct {
	Title  string `json:"title"`
	Price  string `json:"price"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// OrderDetails is the detail page of a single order.
type OrderDetails struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Price    string `json:"price,omitempty"`
	Buyer    string `json:"buyer,omitempty"`
	Deadline string `json:"deadline,omitempty"`
}

// MessageSummary is an unread conversation in the inbox.
type MessageSummary struct {
	Sender  string `json:"sender"`
	Preview string `json:"preview"`
	Link    string `json:"link"`
}

func toSlice[T any](records []extract.Record, convert func(extract.Record) T) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		out = append(out, convert(r))
	}
	return out
}
