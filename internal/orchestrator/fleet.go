package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/fastwork-cli/internal/auth"
)

// Account is one seller driven in fleet mode.
type Account struct {
	// Key names the account's saved session.
	Key        string
	Credential *auth.Credential
}

// FleetResult is the outcome of one account's run.
type FleetResult struct {
	Account string `json:"account"`
	RunID   string `json:"run_id,omitempty"`
	Err     error  `json:"-"`
}

// RunFleet runs fn for every account, each in its own browser session with its
// own saved state, at most limit at a time. Accounts share nothing but the
// store, so one failing account does not stop the others. The returned error
// is the first failure; every outcome is in the results, in account order.
func RunFleet(ctx context.Context, base Options, accounts []Account, limit int, fn func(context.Context, *Client, Account) error) ([]FleetResult, error) {
	if limit <= 0 {
		limit = 1
	}
	logger := base.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([]FleetResult, len(accounts))
	var g errgroup.Group
	g.SetLimit(limit)

	for i, acct := range accounts {
		g.Go(func() error {
			opts := base
			opts.Account = acct.Key
			opts.Logger = logger.With(zap.String("fleet_account", acct.Key))

			res := FleetResult{Account: acct.Key}
			err := Run(ctx, opts, func(ctx context.Context, c *Client) error {
				res.RunID = c.RunID
				if err := c.EnsureAuthenticated(ctx, acct.Credential); err != nil {
					return err
				}
				return fn(ctx, c, acct)
			})
			if err != nil {
				err = fmt.Errorf("account %s: %w", acct.Key, err)
				logger.Error("Fleet account failed.", zap.String("account", acct.Key), zap.Error(err))
			}
			res.Err = err
			results[i] = res
			return err
		})
	}

	err := g.Wait()
	return results, err
}
