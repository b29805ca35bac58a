// File: cmd/act.go
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"github.com/xkilldash9x/fastwork-cli/internal/marketplace"
	"github.com/xkilldash9x/fastwork-cli/internal/orchestrator"
)

func newEditCmd(a *app) *cobra.Command {
	var title, price string
	cmd := &cobra.Command{
		Use:   "edit <product-url>",
		Short: "Change the title and/or price of a listed service",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var edit marketplace.ProductEdit
			if cmd.Flags().Changed("title") {
				edit.Title = &title
			}
			if cmd.Flags().Changed("price") {
				edit.Price = &price
			}
			if edit.Title == nil && edit.Price == nil {
				return &usageError{err: fmt.Errorf("nothing to edit: pass --title and/or --price")}
			}
			return a.withSession(cmd, true, func(ctx context.Context, c *orchestrator.Client) error {
				res, err := c.Seller.EditProduct(ctx, args[0], edit)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new service title")
	cmd.Flags().StringVar(&price, "price", "", "new service price")
	return cmd
}

type sendDocument struct {
	Conversation string `json:"conversation"`
	Sent         bool   `json:"sent"`
}

func newSendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation-url> <text...>",
		Short: "Send a message in a conversation",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			return a.withSession(cmd, true, func(ctx context.Context, c *orchestrator.Client) error {
				if err := c.Messaging.Send(ctx, args[0], text); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), sendDocument{Conversation: args[0], Sent: true})
			})
		},
	}
}

// parseRules turns keyword=response flags into rules, in flag order.
func parseRules(specs []string) ([]config.ReplyRule, error) {
	rules := make([]config.ReplyRule, 0, len(specs))
	for _, s := range specs {
		keyword, response, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(keyword) == "" || response == "" {
			return nil, fmt.Errorf("invalid rule %q: want keyword=response", s)
		}
		rules = append(rules, config.ReplyRule{Keyword: strings.TrimSpace(keyword), Response: response})
	}
	return rules, nil
}

func newReplyCmd(a *app) *cobra.Command {
	var ruleSpecs []string
	cmd := &cobra.Command{
		Use:   "reply",
		Short: "Answer unread conversations whose preview matches a keyword rule",
		Long: `reply matches every unread conversation against the rules from
messaging.rules followed by any --rule flags. The first matching rule wins and
a conversation gets at most one reply per run.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra, err := parseRules(ruleSpecs)
			if err != nil {
				return &usageError{err: err}
			}
			rules := append(append([]config.ReplyRule{}, a.cfg.Messaging.Rules...), extra...)
			if len(rules) == 0 {
				return &usageError{err: fmt.Errorf("no reply rules: set messaging.rules or pass --rule keyword=response")}
			}
			return a.withSession(cmd, true, func(ctx context.Context, c *orchestrator.Client) error {
				report, err := c.Messaging.AutoReply(ctx, rules)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringArrayVar(&ruleSpecs, "rule", nil, "extra rule as keyword=response (repeatable)")
	return cmd
}
