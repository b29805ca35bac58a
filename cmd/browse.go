// File: cmd/browse.go
package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/fastwork-cli/internal/orchestrator"
)

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query...>",
		Short: "Search marketplace services",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return a.withSession(cmd, false, func(ctx context.Context, c *orchestrator.Client) error {
				results, err := c.Scraper.SearchServices(ctx, query)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), orEmpty(results))
			})
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <url>",
		Short: "Read a freelancer profile and its listed services",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, false, func(ctx context.Context, c *orchestrator.Client) error {
				profile, err := c.Scraper.FreelancerProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), profile)
			})
		},
	}
}

// newGetCmd groups the read-only seller views that need a logged-in session.
func newGetCmd(a *app) *cobra.Command {
	get := &cobra.Command{
		Use:   "get",
		Short: "Read one seller view (dashboard, products, orders, order, messages)",
		Args:  usageArgs(cobra.NoArgs),
	}

	view := func(use, short string, args cobra.PositionalArgs, fetch func(ctx context.Context, c *orchestrator.Client, args []string) (interface{}, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  usageArgs(args),
			RunE: func(cmd *cobra.Command, cmdArgs []string) error {
				return a.withSession(cmd, true, func(ctx context.Context, c *orchestrator.Client) error {
					v, err := fetch(ctx, c, cmdArgs)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), v)
				})
			},
		}
	}

	get.AddCommand(
		view("dashboard", "Seller dashboard metrics", cobra.NoArgs,
			func(ctx context.Context, c *orchestrator.Client, _ []string) (interface{}, error) {
				return c.Seller.DashboardStats(ctx)
			}),
		view("products", "Listed services and their status", cobra.NoArgs,
			func(ctx context.Context, c *orchestrator.Client, _ []string) (interface{}, error) {
				res, err := c.Seller.Products(ctx)
				return orEmpty(res), err
			}),
		view("orders", "Active orders", cobra.NoArgs,
			func(ctx context.Context, c *orchestrator.Client, _ []string) (interface{}, error) {
				res, err := c.Orders.ActiveOrders(ctx)
				return orEmpty(res), err
			}),
		view("order <url>", "Details of one order", cobra.ExactArgs(1),
			func(ctx context.Context, c *orchestrator.Client, args []string) (interface{}, error) {
				return c.Orders.OrderDetails(ctx, args[0])
			}),
		view("messages", "Unread conversations", cobra.NoArgs,
			func(ctx context.Context, c *orchestrator.Client, _ []string) (interface{}, error) {
				res, err := c.Messaging.ListUnread(ctx)
				return orEmpty(res), err
			}),
	)
	return get
}
