package marketplace

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"github.com/xkilldash9x/fastwork-cli/internal/extract"
)

// ComposerSelectors address the message composer of a conversation.
type ComposerSelectors struct {
	Input browser.Selector
	Send  browser.Selector
}

// DefaultComposerSelectors match the fastwork.id chat page.
func DefaultComposerSelectors() ComposerSelectors {
	return ComposerSelectors{
		Input: browser.CSS("textarea[placeholder*='Ketik pesan']"),
		Send:  browser.CSS("button.send-button"),
	}
}

// Messaging reads the inbox, sends messages and runs keyword auto-replies.
type Messaging struct {
	module
	selectors     ComposerSelectors
	actionTimeout time.Duration
	sendSettle    time.Duration
}

// NewMessaging creates a messaging module on d.
func NewMessaging(d browser.Driver, cfg *config.Config, logger *zap.Logger) *Messaging {
	return &Messaging{
		module:        newModule(d, cfg, logger, "marketplace.messaging"),
		selectors:     DefaultComposerSelectors(),
		actionTimeout: actionTimeout(cfg.Messaging.ActionTimeout),
		sendSettle:    cfg.Messaging.SendSettle,
	}
}

// ListUnread returns the conversations flagged unread, in inbox order.
func (m *Messaging) ListUnread(ctx context.Context) ([]MessageSummary, error) {
	records, err := m.records(ctx, extract.Spec{
		Name:   "messages.unread",
		Target: m.origin + "/messages",
		Card:   browser.CSS(".conversation-list-item.unread"),
		Fields: []extract.Field{
			{Name: "sender", Selectors: []browser.Selector{browser.CSS(".sender-name")}},
			{Name: "preview", Selectors: []browser.Selector{browser.CSS(".message-preview")}},
			{Name: "link", Attr: "href", Absolute: true},
		},
	})
	if err != nil {
		return nil, err
	}
	return toSlice(records, func(r extract.Record) MessageSummary {
		return MessageSummary{Sender: r.Get("sender"), Preview: r.Get("preview"), Link: r.Get("link")}
	}), nil
}

// Send posts text to the conversation at conversationURL.
func (m *Messaging) Send(ctx context.Context, conversationURL, text string) error {
	st := &stepper{driver: m.driver, action: "send_message", timeout: m.actionTimeout, logger: m.logger}
	if strings.TrimSpace(text) == "" {
		return st.fail("validate", errors.New("message text is empty"))
	}

	if err := st.open(ctx, conversationURL); err != nil {
		return st.fail("navigate", err)
	}
	if err := st.fill(ctx, m.selectors.Input, text); err != nil {
		return st.fail("fill", err)
	}
	if err := st.click(ctx, m.selectors.Send); err != nil {
		return st.fail("send", err)
	}
	// Give the message time to land in the chat log.
	if err := m.driver.Sleep(ctx, m.sendSettle); err != nil {
		return st.fail("settle", err)
	}
	m.logger.Info("Message sent.", zap.String("conversation", conversationURL))
	return nil
}

// MatchRule returns the first rule whose keyword occurs in preview, ignoring case.
// Rules with a blank keyword never match.
func MatchRule(preview string, rules []config.ReplyRule) (config.ReplyRule, bool) {
	content := strings.ToLower(preview)
	for _, rule := range rules {
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(content, keyword) {
			return rule, true
		}
	}
	return config.ReplyRule{}, false
}

// Reply is an auto-reply that was sent.
type Reply struct {
	Thread   MessageSummary `json:"thread"`
	Keyword  string         `json:"keyword"`
	Response string         `json:"response"`
}

// FailedReply is a matched thread whose send failed.
type FailedReply struct {
	Thread  MessageSummary `json:"thread"`
	Keyword string         `json:"keyword"`
	Error   string         `json:"error"`
}

// ReplyReport summarizes one auto-reply pass.
type ReplyReport struct {
	Replied   []Reply          `json:"replied"`
	Unmatched []MessageSummary `json:"unmatched"`
	Failed    []FailedReply    `json:"failed"`
}

// AutoReply answers each unread thread with the response of the first rule
// its preview matches. A thread gets at most one reply per call. Threads
// still flagged unread on a later call are answered again.
func (m *Messaging) AutoReply(ctx context.Context, rules []config.ReplyRule) (*ReplyReport, error) {
	unread, err := m.ListUnread(ctx)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Scanning unread threads.", zap.Int("threads", len(unread)), zap.Int("rules", len(rules)))

	report := &ReplyReport{Replied: []Reply{}, Unmatched: []MessageSummary{}, Failed: []FailedReply{}}
	for _, thread := range unread {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rule, ok := MatchRule(thread.Preview, rules)
		if !ok {
			report.Unmatched = append(report.Unmatched, thread)
			continue
		}

		m.logger.Info("Auto-replying.", zap.String("sender", thread.Sender), zap.String("keyword", rule.Keyword))
		if err := m.Send(ctx, thread.Link, rule.Response); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed = append(report.Failed, FailedReply{Thread: thread, Keyword: rule.Keyword, Error: err.Error()})
			continue
		}
		report.Replied = append(report.Replied, Reply{Thread: thread, Keyword: rule.Keyword, Response: rule.Response})
	}

	if len(report.Replied) > 0 {
		// TODO: re-read the inbox after replying and skip threads that are no longer unread.
		m.logger.Warn("Replied threads are not marked read; a later run may reply to them again.",
			zap.Int("replied", len(report.Replied)))
	}
	return report, nil
}
