package marketplace

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/fastwork-cli/internal/browser/static"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
)

var rules = []config.ReplyRule{
	{Keyword: "refund", Response: "Untuk refund, silakan ajukan lewat halaman order."},
	{Keyword: "price", Response: "Daftar harga ada di deskripsi jasa."},
}

func fills(d *static.Driver) []static.Interaction {
	var out []static.Interaction
	for _, it := range d.History() {
		if it.Kind == "fill" {
			out = append(out, it)
		}
	}
	return out
}

func TestListUnread(t *testing.T) {
	unread, err := NewMessaging(saved(), testConfig(), nil).ListUnread(context.Background())
	require.NoError(t, err)

	want := []MessageSummary{
		{Sender: "kopi_senja", Preview: "Halo, apakah bisa REFUND? Dan berapa price untuk revisi?", Link: "https://fastwork.id/messages/c-1"},
		{Sender: "andi", Preview: "Berapa price paket premium?", Link: "https://fastwork.id/messages/c-3"},
		{Sender: "rina", Preview: "Sudah saya kirim filenya", Link: "https://fastwork.id/messages/c-4"},
	}
	if diff := cmp.Diff(want, unread); diff != "" {
		t.Errorf("ListUnread mismatch (-want +got):\n%s", diff)
	}
}

func TestSend(t *testing.T) {
	d := saved()
	m := NewMessaging(d, testConfig(), nil)
	require.NoError(t, m.Send(context.Background(), "https://fastwork.id/messages/c-3", "Halo!"))

	got := fills(d)
	require.Len(t, got, 1)
	assert.Equal(t, "Halo!", got[0].Value)
	assert.Equal(t, 1, d.Count("click"))
	assert.Equal(t, 1, d.Count("sleep"))
}

func TestSendFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("composer missing", func(t *testing.T) {
		d := static.New(static.Pages{"https://fastwork.id/messages/x": `<html><body>Percakapan tidak ditemukan</body></html>`})
		err := NewMessaging(d, testConfig(), nil).Send(ctx, "https://fastwork.id/messages/x", "hi")
		var actionErr *ActionError
		require.ErrorAs(t, err, &actionErr)
		assert.Equal(t, "fill", actionErr.Step)
		assert.Zero(t, d.Count("click"))
	})

	t.Run("empty text", func(t *testing.T) {
		d := saved()
		err := NewMessaging(d, testConfig(), nil).Send(ctx, "https://fastwork.id/messages/c-1", "  ")
		var actionErr *ActionError
		require.ErrorAs(t, err, &actionErr)
		assert.Equal(t, "validate", actionErr.Step)
		assert.Empty(t, d.History())
	})
}

func TestMatchRule(t *testing.T) {
	rule, ok := MatchRule("Halo, REFUND dan price?", rules)
	require.True(t, ok)
	assert.Equal(t, "refund", rule.Keyword)

	rule, ok = MatchRule("berapa PRICE-nya", rules)
	require.True(t, ok)
	assert.Equal(t, "price", rule.Keyword)

	_, ok = MatchRule("terima kasih", rules)
	assert.False(t, ok)

	_, ok = MatchRule("anything", []config.ReplyRule{{Keyword: "  ", Response: "never"}})
	assert.False(t, ok, "blank keywords never match")
}

func TestAutoReplyFirstRuleWins(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := saved()
	report, err := NewMessaging(d, testConfig(), zap.New(core)).AutoReply(context.Background(), rules)
	require.NoError(t, err)

	got := fills(d)
	require.Len(t, got, 2, "one reply per matched thread")
	assert.Equal(t, rules[0].Response, got[0].Value, "refund outranks price on the thread mentioning both")
	assert.Equal(t, rules[1].Response, got[1].Value)

	require.Len(t, report.Replied, 2)
	assert.Equal(t, "kopi_senja", report.Replied[0].Thread.Sender)
	assert.Equal(t, "refund", report.Replied[0].Keyword)
	assert.Equal(t, "price", report.Replied[1].Keyword)
	require.Len(t, report.Unmatched, 1)
	assert.Equal(t, "rina", report.Unmatched[0].Sender)
	assert.Empty(t, report.Failed)

	assert.Equal(t, 1, logs.FilterMessage("Replied threads are not marked read; a later run may reply to them again.").Len())
}

func TestAutoReplyContinuesAfterFailedSend(t *testing.T) {
	d := saved(static.FailNavigate("https://fastwork.id/messages/c-1", errors.New("net::ERR_ABORTED")))
	report, err := NewMessaging(d, testConfig(), nil).AutoReply(context.Background(), rules)
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, "kopi_senja", report.Failed[0].Thread.Sender)
	assert.Contains(t, report.Failed[0].Error, "ERR_ABORTED")
	require.Len(t, report.Replied, 1)
	assert.Equal(t, "andi", report.Replied[0].Thread.Sender)
}

func TestAutoReplyNoRules(t *testing.T) {
	d := saved()
	report, err := NewMessaging(d, testConfig(), nil).AutoReply(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Replied)
	assert.Len(t, report.Unmatched, 3)
	assert.Empty(t, fills(d))
}
