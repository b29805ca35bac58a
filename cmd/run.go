// File: cmd/run.go
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/orchestrator"
)

// Keys of the run document.
const (
	sectionSearch    = "search_results"
	sectionDashboard = "seller_dashboard"
	sectionProducts  = "seller_products"
	sectionOrders    = "active_orders"
	sectionMessages  = "unread_messages"
)

type section struct {
	key   string
	fetch func(ctx context.Context, c *orchestrator.Client) (interface{}, error)
}

func runSections(query string) []section {
	return []section{
		{sectionSearch, func(ctx context.Context, c *orchestrator.Client) (interface{}, error) {
			res, err := c.Scraper.SearchServices(ctx, query)
			return orEmpty(res), err
		}},
		{sectionDashboard, func(ctx context.Context, c *orchestrator.Client) (interface{}, error) {
			return c.Seller.DashboardStats(ctx)
		}},
		{sectionProducts, func(ctx context.Context, c *orchestrator.Client) (interface{}, error) {
			res, err := c.Seller.Products(ctx)
			return orEmpty(res), err
		}},
		{sectionOrders, func(ctx context.Context, c *orchestrator.Client) (interface{}, error) {
			res, err := c.Orders.ActiveOrders(ctx)
			return orEmpty(res), err
		}},
		{sectionMessages, func(ctx context.Context, c *orchestrator.Client) (interface{}, error) {
			res, err := c.Messaging.ListUnread(ctx)
			return orEmpty(res), err
		}},
	}
}

// collect runs every section against an authenticated client. A failed
// section is left out of the document and reported under "errors"; only a
// cancelled context aborts the run.
func collect(ctx context.Context, c *orchestrator.Client, query string, logger *zap.Logger) (map[string]interface{}, error) {
	doc := map[string]interface{}{"run_id": c.RunID}
	failures := make(map[string]string)

	for _, s := range runSections(query) {
		value, err := s.fetch(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Section failed; leaving it out of the result.", zap.String("section", s.key), zap.Error(err))
			failures[s.key] = err.Error()
			continue
		}
		doc[s.key] = value
	}
	if len(failures) > 0 {
		doc["errors"] = failures
	}
	return doc, nil
}

func newRunCmd(a *app) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in if needed and collect search results, seller metrics, products, orders and unread messages",
		Long: `run restores the saved session, logs in with --email/--password (or
FASTWORK_EMAIL/FASTWORK_PASSWORD) when it has expired, and writes one JSON
document with the search results, the seller dashboard, the product list,
the active orders and the unread messages. The session is saved on exit.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				query = a.cfg.Extract.SearchQuery
			}
			return a.withSession(cmd, true, func(ctx context.Context, c *orchestrator.Client) error {
				doc, err := collect(ctx, c, query, a.logger)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query (default extract.search_query)")
	return cmd
}
