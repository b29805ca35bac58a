// File: cmd/login.go
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/fastwork-cli/internal/auth"
	"github.com/xkilldash9x/fastwork-cli/internal/orchestrator"
)

type loginDocument struct {
	RunID         string `json:"run_id"`
	Account       string `json:"account,omitempty"`
	Restored      bool   `json:"restored"`
	Authenticated bool   `json:"authenticated"`
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Establish an authenticated session and save it",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, true, func(ctx context.Context, c *orchestrator.Client) error {
				return writeJSON(cmd.OutOrStdout(), loginDocument{
					RunID:         c.RunID,
					Account:       c.Account,
					Restored:      c.Restored(),
					Authenticated: true,
				})
			})
		},
	}
}

type statusDocument struct {
	RunID         string           `json:"run_id"`
	Account       string           `json:"account,omitempty"`
	Restored      bool             `json:"restored"`
	Authenticated bool             `json:"authenticated"`
	Reason        auth.ProbeReason `json:"reason"`
	Detail        string           `json:"detail,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe whether the saved session is still logged in",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, false, func(ctx context.Context, c *orchestrator.Client) error {
				probe := c.Auth.Probe(ctx)
				doc := statusDocument{
					RunID:         c.RunID,
					Account:       c.Account,
					Restored:      c.Restored(),
					Authenticated: probe.Authenticated,
					Reason:        probe.Reason,
				}
				if probe.Err != nil {
					doc.Detail = probe.Err.Error()
				}
				return writeJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
}
