// Package marketplace reads and edits fastwork.id pages through a browser.Driver.
//
// Read operations are extraction specs run through the extract pipeline and
// converted to typed records. Write operations (editing a product, sending a
// message) are strictly ordered steps; the first failing step aborts the action
// with an *ActionError and nothing is retried.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"github.com/xkilldash9x/fastwork-cli/internal/extract"
)

const defaultActionTimeout = 10 * time.Second

// ErrNoRecord is returned by single-page reads whose required fields are missing.
var ErrNoRecord = errors.New("page did not yield a record")

// ActionError reports the step at which a write action stopped.
type ActionError struct {
	Action string
	Step   string
	Cause  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed at %s: %v", e.Action, e.Step, e.Cause)
}

func (e *ActionError) Unwrap() error { return e.Cause }

// module holds what every page module needs.
type module struct {
	driver       browser.Driver
	pipeline     *extract.Pipeline
	origin       string
	sellerOrigin string
	logger       *zap.Logger
}

func newModule(d browser.Driver, cfg *config.Config, logger *zap.Logger, name string) module {
	if logger == nil {
		logger = zap.NewNop()
	}
	return module{
		driver:       d,
		pipeline:     extract.NewPipeline(logger, cfg.Extract),
		origin:       strings.TrimRight(cfg.Site.Origin, "/"),
		sellerOrigin: strings.TrimRight(cfg.Site.SellerOrigin, "/"),
		logger:       logger.Named(name),
	}
}

// records runs spec and keeps the complete records. Dropped cards are logged.
func (m *module) records(ctx context.Context, spec extract.Spec) ([]extract.Record, error) {
	if spec.Origin == "" {
		spec.Origin = m.origin
	}
	outcomes, err := m.pipeline.Run(ctx, m.driver, spec)
	if err != nil {
		return nil, err
	}
	if skips := extract.Skips(outcomes); len(skips) > 0 {
		m.logger.Warn("Dropped incomplete cards.",
			zap.String("spec", spec.Name),
			zap.Int("dropped", len(skips)),
			zap.Int("kept", len(outcomes)-len(skips)))
	}
	return extract.Records(outcomes), nil
}

// single runs a spec whose card is the whole page and returns its one record.
func (m *module) single(ctx context.Context, spec extract.Spec) (extract.Record, error) {
	if spec.Origin == "" {
		spec.Origin = m.origin
	}
	spec.Card = browser.CSS("body")
	outcomes, err := m.pipeline.Run(ctx, m.driver, spec)
	if err != nil {
		return extract.Record{}, err
	}
	if len(outcomes) == 0 {
		return extract.Record{}, fmt.Errorf("%s: %w", spec.Name, ErrNoRecord)
	}
	if skip := outcomes[0].Skip; skip != nil {
		return extract.Record{}, fmt.Errorf("%s: %w: %s", spec.Name, ErrNoRecord, skip)
	}
	return outcomes[0].Record, nil
}

// stepper runs the ordered steps of one write action.
type stepper struct {
	driver  browser.Driver
	action  string
	timeout time.Duration
	logger  *zap.Logger
}

func (s *stepper) fail(step string, err error) error {
	s.logger.Error("Action failed.", zap.String("action", s.action), zap.String("step", step), zap.Error(err))
	return &ActionError{Action: s.action, Step: step, Cause: err}
}

func (s *stepper) open(ctx context.Context, url string) error {
	if err := s.driver.Navigate(ctx, url); err != nil {
		return err
	}
	return s.driver.WaitForLoad(ctx)
}

// first waits for sel to be visible and applies op to the first match.
func (s *stepper) first(ctx context.Context, sel browser.Selector, op func(context.Context, browser.Element) error) error {
	if err := s.driver.WaitFor(ctx, sel, browser.StateVisible, s.timeout); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return op(opCtx, s.driver.Locate(sel).Nth(0))
}

func (s *stepper) fill(ctx context.Context, sel browser.Selector, value string) error {
	return s.first(ctx, sel, func(ctx context.Context, el browser.Element) error {
		return el.Fill(ctx, value)
	})
}

func (s *stepper) click(ctx context.Context, sel browser.Selector) error {
	return s.first(ctx, sel, func(ctx context.Context, el browser.Element) error {
		return el.Click(ctx)
	})
}

func actionTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultActionTimeout
	}
	return d
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
