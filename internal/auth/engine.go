// Package auth decides whether a browser session is logged in and drives the
// marketplace's multi-step login form when it is not.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
)

// Selectors address the login affordances of the marketplace.
type Selectors struct {
	// Probe is visible only to anonymous visitors.
	Probe      browser.Selector
	EntryPoint browser.Selector
	Identifier browser.Selector
	Secret     browser.Selector
	Continue   browser.Selector
	// Confirm must disappear after the secret is submitted.
	Confirm    browser.Selector
}

// DefaultSelectors match the fastwork.id login form.
func DefaultSelectors() Selectors {
	return Selectors{
		Probe:      browser.CSS("#login-link"),
		EntryPoint: browser.CSS("#login-link, a[href*='/login']"),
		Identifier: browser.CSS("input[placeholder='Masukkan email atau nomor telepon']"),
		Secret:     browser.CSS("input[placeholder='Kata Sandi']"),
		Continue:   browser.CSS("button").WithText("Lanjutkan"),
		Confirm:    browser.CSS("#login-link, a[href*='/login']"),
	}
}

// Timeouts bound each phase of probing and logging in.
type Timeouts struct {
	Step    time.Duration
	Confirm time.Duration
	Probe   time.Duration
	// Settle is slept after confirmation so cookies finalize.
	Settle time.Duration
}

// TimeoutsFromConfig fills unset values with the defaults.
func TimeoutsFromConfig(cfg config.AuthConfig) Timeouts {
	t := Timeouts{
		Step:    cfg.StepTimeout,
		Confirm: cfg.ConfirmTimeout,
		Probe:   cfg.ProbeTimeout,
		Settle:  cfg.Settle,
	}
	if t.Step <= 0 {
		t.Step = 10 * time.Second
	}
	if t.Confirm <= 0 {
		t.Confirm = 15 * time.Second
	}
	if t.Probe <= 0 {
		t.Probe = 3 * time.Second
	}
	if t.Settle < 0 {
		t.Settle = 0
	}
	return t
}

// ProbeReason explains a probe verdict.
type ProbeReason string

const (
	LoginAffordanceVisible ProbeReason = "login_affordance_visible"
	NoLoginAffordance      ProbeReason = "no_login_affordance"
	// DetectionFailed means the probe could not tell. The session is assumed
	// authenticated so a flaky probe does not force a re-login.
	DetectionFailed ProbeReason = "detection_failed"
)

// ProbeResult is the verdict of a session validity probe.
type ProbeResult struct {
	Authenticated bool
	Reason        ProbeReason
	// Err is set when Reason is DetectionFailed.
	Err error
}

// Engine probes and establishes authentication on one driver.
type Engine struct {
	driver    browser.Driver
	origin    string
	selectors Selectors
	timeouts  Timeouts
	logger    *zap.Logger
}

// NewEngine creates an engine for the site.
func NewEngine(d browser.Driver, site config.SiteConfig, cfg config.AuthConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		driver:    d,
		origin:    strings.TrimRight(site.Origin, "/"),
		selectors: DefaultSelectors(),
		timeouts:  TimeoutsFromConfig(cfg),
		logger:    logger.Named("auth"),
	}
}

// WithSelectors returns a copy of the engine using sel.
func (e *Engine) WithSelectors(sel Selectors) *Engine {
	cp := *e
	cp.selectors = sel
	return &cp
}

func (e *Engine) root() string { return e.origin + "/" }

// Probe loads the site root and looks for the login affordance. It returns
// unauthenticated only when the affordance is visible; every detection error
// fails open.
func (e *Engine) Probe(ctx context.Context) ProbeResult {
	failOpen := func(err error) ProbeResult {
		e.logger.Warn("Session probe could not decide; assuming authenticated.", zap.Error(err))
		return ProbeResult{Authenticated: true, Reason: DetectionFailed, Err: err}
	}

	if err := e.driver.Navigate(ctx, e.root()); err != nil {
		return failOpen(err)
	}
	if err := e.driver.WaitForLoad(ctx); err != nil {
		return failOpen(err)
	}

	err := e.driver.WaitFor(ctx, e.selectors.Probe, browser.StateVisible, e.timeouts.Probe)
	switch {
	case err == nil:
		e.logger.Info("Login affordance visible; session is not authenticated.")
		return ProbeResult{Authenticated: false, Reason: LoginAffordanceVisible}
	case errors.Is(err, browser.ErrTimeout):
		e.logger.Debug("No login affordance; session is authenticated.")
		return ProbeResult{Authenticated: true, Reason: NoLoginAffordance}
	default:
		return failOpen(err)
	}
}

// IsAuthenticated is the boolean form of Probe.
func (e *Engine) IsAuthenticated(ctx context.Context) bool {
	return e.Probe(ctx).Authenticated
}

// Login runs the login flow to completion. On failure the error is a
// *LoginError naming the failed step.
func (e *Engine) Login(ctx context.Context, cred Credential) error {
	flow, err := e.NewFlow(cred)
	if err != nil {
		return err
	}

	e.logger.Info("Starting login.", zap.Object("credential", cred))
	for !flow.State().Terminal() {
		if err := flow.Advance(ctx); err != nil {
			e.logger.Error("Login failed.", zap.Stringer("step", flow.failedAt), zap.Error(err))
			return err
		}
	}
	e.logger.Info("Login succeeded.")
	return nil
}

// Flow is one run of the login state machine.
type Flow struct {
	engine   *Engine
	cred     Credential
	state    State
	failedAt State
}

// NewFlow validates cred and returns a flow in NotStarted.
func (e *Engine) NewFlow(cred Credential) (*Flow, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return &Flow{engine: e, cred: cred, state: NotStarted}, nil
}

// State returns the current state.
func (f *Flow) State() State { return f.state }

// Advance runs the step owned by the current state and moves to the next one.
// A failing step moves the flow to Failed and returns a *LoginError.
func (f *Flow) Advance(ctx context.Context) error {
	if f.state.Terminal() {
		return fmt.Errorf("login flow already finished in %s", f.state)
	}

	var (
		next State
		err  error
	)
	switch f.state {
	case NotStarted:
		next, err = AwaitingIdentifier, f.openLoginForm(ctx)
	case AwaitingIdentifier:
		next, err = AwaitingSecret, f.submitField(ctx, f.engine.selectors.Identifier, f.cred.Identifier)
	case AwaitingSecret:
		next, err = AwaitingConfirmation, f.submitField(ctx, f.engine.selectors.Secret, f.cred.Secret)
	case AwaitingConfirmation:
		next, err = Authenticated, f.confirm(ctx)
	default:
		err = fmt.Errorf("no step for state %s", f.state)
	}

	if err != nil {
		next = Failed
	}
	if !CanTransition(f.state, next) {
		return fmt.Errorf("illegal login transition %s -> %s", f.state, next)
	}
	if err != nil {
		f.failedAt = f.state
		f.state = Failed
		return &LoginError{Step: f.failedAt, Cause: err}
	}

	f.engine.logger.Debug("Login step complete.", zap.Stringer("from", f.state), zap.Stringer("to", next))
	f.state = next
	return nil
}

func (f *Flow) click(ctx context.Context, sel browser.Selector) error {
	d := f.engine.driver
	if err := d.WaitFor(ctx, sel, browser.StateVisible, f.engine.timeouts.Step); err != nil {
		return err
	}
	stepCtx, cancel := context.WithTimeout(ctx, f.engine.timeouts.Step)
	defer cancel()
	return d.Locate(sel).Nth(0).Click(stepCtx)
}

func (f *Flow) openLoginForm(ctx context.Context) error {
	d := f.engine.driver
	if err := d.Navigate(ctx, f.engine.root()); err != nil {
		return err
	}
	if err := d.WaitForLoad(ctx); err != nil {
		return err
	}
	return f.click(ctx, f.engine.selectors.EntryPoint)
}

func (f *Flow) submitField(ctx context.Context, field browser.Selector, value string) error {
	d := f.engine.driver
	if err := d.WaitFor(ctx, field, browser.StateVisible, f.engine.timeouts.Step); err != nil {
		return err
	}
	stepCtx, cancel := context.WithTimeout(ctx, f.engine.timeouts.Step)
	err := d.Locate(field).Nth(0).Fill(stepCtx, value)
	cancel()
	if err != nil {
		return err
	}
	return f.click(ctx, f.engine.selectors.Continue)
}

func (f *Flow) confirm(ctx context.Context) error {
	d := f.engine.driver
	if err := d.WaitFor(ctx, f.engine.selectors.Confirm, browser.StateHidden, f.engine.timeouts.Confirm); err != nil {
		return err
	}
	return d.Sleep(ctx, f.engine.timeouts.Settle)
}
