// File: cmd/session.go
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/xkilldash9x/fastwork-cli/internal/orchestrator"
	"github.com/xkilldash9x/fastwork-cli/internal/session"
)

// sessionFunc is the body of a command that needs a browser session.
type sessionFunc func(ctx context.Context, c *orchestrator.Client) error

// baseOptions opens the configured store and fills in the session options.
// The caller closes the store.
func (a *app) baseOptions(ctx context.Context) (orchestrator.Options, session.Store, error) {
	store, err := session.Open(ctx, a.cfg.Session, a.logger)
	if err != nil {
		return orchestrator.Options{}, nil, err
	}
	return orchestrator.Options{
		Config:   a.cfg,
		Launcher: a.newLauncher(a.cfg, a.logger),
		Store:    store,
		Account:  a.cfg.Session.Account,
		Logger:   a.logger,
	}, store, nil
}

// withSession runs fn inside one browser session. When authenticated is set
// the session is probed first and logged in with the configured credentials.
func (a *app) withSession(cmd *cobra.Command, authenticated bool, fn sessionFunc) (err error) {
	ctx := cmd.Context()
	opts, store, err := a.baseOptions(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, store.Close())
	}()

	return orchestrator.Run(ctx, opts, func(ctx context.Context, c *orchestrator.Client) error {
		if authenticated {
			if err := c.EnsureAuthenticated(ctx, a.credential()); err != nil {
				return err
			}
		}
		return fn(ctx, c)
	})
}
