// File: cmd/parse.go
package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/browser/static"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"github.com/xkilldash9x/fastwork-cli/internal/marketplace"
)

// parser extracts one page kind from a driver. arg is the query or URL the
// kind needs, if any.
type parser struct {
	needsArg bool
	run      func(ctx context.Context, d browser.Driver, cfg *config.Config, logger *zap.Logger, arg string) (interface{}, error)
}

var parsers = map[string]parser{
	"search": {true, func(ctx context.Context, d browser.Driver, cfg *config.Config, logger *zap.Logger, arg string) (interface{}, error) {
		res, err := marketplace.NewScraper(d, cfg, logger).SearchServices(ctx, arg)
		return orEmpty(res), err
	}},
	"profile": {true, func(ctx context.Context, d browser.Driver, cfg *config.Config, logger *zap.Logger, arg string) (interface{}, error) {
		return marketplace.NewScraper(d, cfg, logger).FreelancerProfile(ctx, arg)
	}},
	"dashboard": {false, func(ctx context.Context, d browser.Driver, cfg *config.Config, logger *zap.Logger, _ string) (interface{}, error) {
		return marketplace.NewSellerCenter(d, cfg, logger).DashboardStats(ctx)
	}},
	"products": {false, func(ctx context.Context, d browser.Driver, cfg *config.Config, logger *zap.Logger, _ string) (interface{}, error) {
		res, err := marketplace.NewSellerCenter(d, cfg, logger).Products(ctx)
		return orEmpty(res), err
	}},
	"orders": {false, func(ctx context.Context, d browser.Driver, cfg *config.Config, logger *zap.Logger, _ string) (interface{}, error) {
		res, err := marketplace.NewOrders(d, cfg, logger).ActiveOrders(ctx)
		return orEmpty(res), err
	}},
	"order": {true, func(ctx context.Context, d browser.Driver, cfg *config.Config, logger *zap.Logger, arg string) (interface{}, error) {
		return marketplace.NewOrders(d, cfg, logger).OrderDetails(ctx, arg)
	}},
	"messages": {false, func(ctx context.Context, d browser.Driver, cfg *config.Config, logger *zap.Logger, _ string) (interface{}, error) {
		res, err := marketplace.NewMessaging(d, cfg, logger).ListUnread(ctx)
		return orEmpty(res), err
	}},
}

func parserKinds() []string {
	kinds := make([]string, 0, len(parsers))
	for k := range parsers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func newParseCmd(a *app) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "parse <dir> [query-or-url]",
		Short: "Run an extraction against pages saved on disk",
		Long: `parse runs the same extraction as the live commands against HTML saved
under <dir> in a host/path layout, e.g. <dir>/fastwork.id/search.html or
<dir>/seller.fastwork.id/dashboard.html. No browser is started and no session
is read or written.`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := parsers[kind]
			if !ok {
				return &usageError{err: fmt.Errorf("unknown kind %q (one of %s)", kind, strings.Join(parserKinds(), ", "))}
			}
			var arg string
			if len(args) == 2 {
				arg = args[1]
			}
			if p.needsArg && arg == "" {
				return &usageError{err: fmt.Errorf("kind %q needs a query or URL argument", kind)}
			}

			d := static.New(static.Dir{Root: args[0]}, static.WithLogger(a.logger))
			defer d.Close()

			v, err := p.run(cmd.Context(), d, a.cfg, a.logger, arg)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "search", "page kind: "+strings.Join(parserKinds(), ", "))
	return cmd
}
