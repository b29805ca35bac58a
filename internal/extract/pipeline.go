// Package extract turns repeated page elements ("cards") into records.
//
// Extraction is a fold over a snapshot of the card collection. Every card
// yields an Outcome: either a fully populated Record or a Skip naming the
// required field that could not be read. A missing field never aborts the
// run; only navigation failures and cancellation do.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
)

const defaultReadyTimeout = 10 * time.Second

// Field describes one value read from each card.
type Field struct {
	Name string
	// Selectors are tried in order; the first one yielding a non-empty value wins.
	// No selectors, or the empty Selector, means the card itself.
	Selectors []browser.Selector
	// Attr reads an attribute instead of the rendered text.
	Attr     string
	Optional bool
	// Transform post-processes the raw value before normalization.
	Transform func(string) string
	// Absolute prefixes relative URLs with Spec.Origin.
	Absolute bool
}

// Spec describes a card extraction.
type Spec struct {
	Name string
	// Target is navigated to first. Empty means extract from the current page.
	Target string
	// Origin is used for Absolute fields.
	Origin string
	Card   browser.Selector
	Fields []Field
	// Ready, when set, is waited for before counting cards. A failed wait is only logged.
	Ready  browser.Selector
	Settle time.Duration
}

// Skip explains why a card produced no record.
type Skip struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (s Skip) String() string {
	return fmt.Sprintf("card %d: field %q: %s", s.Index, s.Field, s.Reason)
}

// Outcome is the result for a single card.
type Outcome struct {
	Index  int
	Record Record
	Skip   *Skip
}

// OK reports whether the card produced a record.
func (o Outcome) OK() bool { return o.Skip == nil }

// Records keeps the successful outcomes, in card order.
func Records(outcomes []Outcome) []Record {
	records := make([]Record, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			records = append(records, o.Record)
		}
	}
	return records
}

// Skips returns the skip reasons, in card order.
func Skips(outcomes []Outcome) []Skip {
	var skips []Skip
	for _, o := range outcomes {
		if o.Skip != nil {
			skips = append(skips, *o.Skip)
		}
	}
	return skips
}

// Normalize makes href absolute against origin. Values that already carry a
// scheme (http, mailto:, tel:) pass through untouched; the empty string stays
// empty.
func Normalize(origin, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http") || hasScheme(href) {
		return href
	}
	origin = strings.TrimRight(origin, "/")
	if strings.HasPrefix(href, "//") {
		scheme := "https:"
		if i := strings.Index(origin, "//"); i > 0 {
			scheme = origin[:i]
		}
		return scheme + href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return origin + href
}

func hasScheme(href string) bool {
	u, err := url.Parse(href)
	return err == nil && u.Scheme != ""
}

// Pipeline runs extractions with shared logging and timing settings.
type Pipeline struct {
	logger       *zap.Logger
	readyTimeout time.Duration
}

// NewPipeline creates a pipeline.
func NewPipeline(logger *zap.Logger, cfg config.ExtractConfig) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	return &Pipeline{logger: logger.Named("extract"), readyTimeout: timeout}
}

// Run extracts spec with a silent default pipeline.
func Run(ctx context.Context, d browser.Driver, spec Spec) ([]Outcome, error) {
	return NewPipeline(nil, config.ExtractConfig{}).Run(ctx, d, spec)
}

// Run navigates to spec.Target and folds over the cards.
func (p *Pipeline) Run(ctx context.Context, d browser.Driver, spec Spec) ([]Outcome, error) {
	logger := p.logger.With(zap.String("spec", spec.Name))

	if spec.Target != "" {
		if err := d.Navigate(ctx, spec.Target); err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Name, err)
		}
		if err := d.WaitForLoad(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Name, err)
		}
	}
	if !spec.Ready.IsSelf() {
		if err := d.WaitFor(ctx, spec.Ready, browser.StateVisible, p.readyTimeout); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug("Ready selector did not appear; extracting anyway.", zap.Stringer("selector", spec.Ready), zap.Error(err))
		}
	}
	if spec.Settle > 0 {
		if err := d.Sleep(ctx, spec.Settle); err != nil {
			return nil, err
		}
	}

	cards := d.Locate(spec.Card)
	count, err := cards.Count(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !browser.IsTransient(err) {
			return nil, fmt.Errorf("%s: count cards: %w", spec.Name, err)
		}
		logger.Debug("Card lookup failed; treating as empty.", zap.Error(err))
		count = 0
	}

	outcomes := make([]Outcome, 0, count)
	for i := 0; i < count; i++ {
		outcome, err := p.card(ctx, cards.Nth(i), i, spec)
		if err != nil {
			return outcomes, err
		}
		if outcome.Skip != nil {
			logger.Debug("Skipping card.", zap.Int("index", i), zap.String("field", outcome.Skip.Field), zap.String("reason", outcome.Skip.Reason))
		}
		outcomes = append(outcomes, outcome)
	}

	logger.Debug("Extraction complete.", zap.Int("cards", count), zap.Int("records", len(Records(outcomes))))
	return outcomes, nil
}

// card extracts every field of one card. The returned error is reserved for
// conditions that end the whole run.
func (p *Pipeline) card(ctx context.Context, card browser.Element, index int, spec Spec) (Outcome, error) {
	var rec Record
	for _, f := range spec.Fields {
		value, lookupErr, err := p.field(ctx, card, f, spec.Origin)
		if err != nil {
			return Outcome{}, err
		}
		if value == "" && !f.Optional {
			reason := "no selector matched"
			if lookupErr != nil {
				reason = lookupErr.Error()
			}
			return Outcome{Index: index, Skip: &Skip{Index: index, Field: f.Name, Reason: reason}}, nil
		}
		rec.Set(f.Name, value)
	}
	return Outcome{Index: index, Record: rec}, nil
}

// field tries each fallback selector. lookupErr is the last per-selector
// failure; err is fatal.
func (p *Pipeline) field(ctx context.Context, card browser.Element, f Field, origin string) (value string, lookupErr error, err error) {
	selectors := f.Selectors
	if len(selectors) == 0 {
		selectors = []browser.Selector{{}}
	}

	for _, sel := range selectors {
		el := card
		if !sel.IsSelf() {
			el = card.Locate(sel)
		}

		var raw string
		var readErr error
		if f.Attr != "" {
			var present bool
			raw, present, readErr = el.Attribute(ctx, f.Attr)
			if readErr == nil && !present {
				readErr = fmt.Errorf("attribute %q absent on %s", f.Attr, sel)
			}
		} else {
			raw, readErr = el.Text(ctx)
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}
			if errors.Is(readErr, browser.ErrClosed) {
				return "", nil, readErr
			}
			lookupErr = readErr
			continue
		}

		raw = strings.TrimSpace(raw)
		if f.Transform != nil {
			raw = strings.TrimSpace(f.Transform(raw))
		}
		if raw == "" {
			continue
		}
		if f.Absolute {
			raw = Normalize(origin, raw)
		}
		return raw, nil, nil
	}
	return "", lookupErr, nil
}

// PairSpec addresses one labelled metric. Value is typically a label match
// followed by its sibling, e.g. CSS("div").WithText("Label").Next("div").
type PairSpec struct {
	Key   string
	Value browser.Selector
}

// Pairs reads labelled metrics from the current page. Each successful pair
// yields a single-field record keyed by PairSpec.Key; a missing metric is a Skip.
func Pairs(ctx context.Context, d browser.Driver, pairs []PairSpec) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(pairs))
	for i, pair := range pairs {
		text, err := d.Locate(pair.Value).Nth(0).Text(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return outcomes, ctx.Err()
			}
			if errors.Is(err, browser.ErrClosed) {
				return outcomes, err
			}
			outcomes = append(outcomes, Outcome{Index: i, Skip: &Skip{Index: i, Field: pair.Key, Reason: err.Error()}})
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			outcomes = append(outcomes, Outcome{Index: i, Skip: &Skip{Index: i, Field: pair.Key, Reason: "empty value"}})
			continue
		}
		outcomes = append(outcomes, Outcome{Index: i, Record: NewRecord(pair.Key, text)})
	}
	return outcomes, nil
}
