// File: cmd/fleet.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/auth"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"github.com/xkilldash9x/fastwork-cli/internal/orchestrator"
)

type fleetEntry struct {
	Account string                 `json:"account"`
	RunID   string                 `json:"run_id,omitempty"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   *ErrorDocument         `json:"error,omitempty"`
}

// fleetAccounts resolves each configured account's secret from its env var.
// An account whose secret is unset keeps a nil credential and can only run on
// a saved session.
func fleetAccounts(cfg config.FleetConfig, getenv func(string) string) ([]orchestrator.Account, error) {
	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no fleet accounts configured under fleet.accounts")
	}
	accounts := make([]orchestrator.Account, 0, len(cfg.Accounts))
	for i, fa := range cfg.Accounts {
		if fa.Identifier == "" {
			return nil, fmt.Errorf("fleet.accounts[%d].identifier must not be empty", i)
		}
		acct := orchestrator.Account{Key: fa.Identifier}
		if fa.SecretEnv != "" {
			if secret := getenv(fa.SecretEnv); secret != "" {
				acct.Credential = &auth.Credential{Identifier: fa.Identifier, Secret: secret}
			}
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func newFleetCmd(a *app) *cobra.Command {
	var query string
	var concurrency int
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Run the full collection for every account under fleet.accounts",
		Long: `fleet runs the same collection as "run" for each configured account, each in
its own browser with its own saved session, at most --concurrency at a time.
An account that fails is reported in its entry and does not stop the others.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			accounts, err := fleetAccounts(a.cfg.Fleet, os.Getenv)
			if err != nil {
				return &configError{err: err}
			}
			if query == "" {
				query = a.cfg.Extract.SearchQuery
			}
			if concurrency <= 0 {
				concurrency = a.cfg.Fleet.Concurrency
			}

			ctx := cmd.Context()
			opts, store, err := a.baseOptions(ctx)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, store.Close())
			}()

			var mu sync.Mutex
			docs := make(map[string]map[string]interface{}, len(accounts))
			results, fleetErr := orchestrator.RunFleet(ctx, opts, accounts, concurrency,
				func(ctx context.Context, c *orchestrator.Client, acct orchestrator.Account) error {
					doc, err := collect(ctx, c, query, a.logger.With(zap.String("account", acct.Key)))
					if err != nil {
						return err
					}
					mu.Lock()
					docs[acct.Key] = doc
					mu.Unlock()
					return nil
				})
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if fleetErr != nil {
				a.logger.Warn("Fleet finished with failed accounts.", zap.Error(fleetErr))
			}

			entries := make([]fleetEntry, 0, len(results))
			for _, r := range results {
				entry := fleetEntry{Account: r.Account, RunID: r.RunID, Result: docs[r.Account]}
				if r.Err != nil {
					code, step := Classify(r.Err)
					entry.Result = nil
					entry.Error = &ErrorDocument{Error: r.Err.Error(), Code: code, Step: step}
				}
				entries = append(entries, entry)
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query (default extract.search_query)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "accounts run at once (default fleet.concurrency)")
	return cmd
}
