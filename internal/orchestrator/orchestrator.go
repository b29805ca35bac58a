// File: internal/orchestrator/orchestrator.go
// Description: Owns the lifecycle of one browser session. It launches the
// browser, restores the saved session, wires the page modules, and on every
// exit path persists the session and releases the browser.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fastwork-cli/internal/auth"
	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
	"github.com/xkilldash9x/fastwork-cli/internal/marketplace"
	"github.com/xkilldash9x/fastwork-cli/internal/session"
)

// closeTimeout bounds persisting and teardown when the caller's context is already done.
const closeTimeout = 30 * time.Second

// ErrNoCredentials is returned when the session is not authenticated and
// nothing was supplied to log in with.
var ErrNoCredentials = errors.New("session is not authenticated and no credentials were provided")

// ErrLaunch wraps every failure to start the browser.
var ErrLaunch = errors.New("failed to launch browser")

// Options configures a session.
type Options struct {
	Config   *config.Config
	Launcher browser.Launcher
	Store    session.Store
	// Account keys the saved session. Empty is the default slot.
	Account string
	Logger  *zap.Logger
}

func (o *Options) validate() error {
	if o.Config == nil || o.Launcher == nil || o.Store == nil {
		return fmt.Errorf("cannot start a session with nil dependencies")
	}
	return nil
}

// Client is one running browser session with its page modules.
type Client struct {
	RunID   string
	Account string

	Auth      *auth.Engine
	Scraper   *marketplace.Scraper
	Seller    *marketplace.SellerCenter
	Orders    *marketplace.Orders
	Messaging *marketplace.Messaging

	browser  browser.Browser
	store    session.Store
	logger   *zap.Logger
	restored bool

	closeOnce sync.Once
	closeErr  error
}

// Start launches a browser, restores the saved session for opts.Account when a
// usable one exists, and wires the modules. A snapshot that cannot be restored
// is ignored and the session starts unauthenticated.
func Start(ctx context.Context, opts Options) (*Client, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	runID := uuid.NewString()
	logger := opts.Logger.Named("orchestrator").With(zap.String("run_id", runID), zap.String("account", opts.Account))

	b, err := opts.Launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	restored, err := restore(ctx, b, opts.Store, opts.Account, logger)
	if err != nil {
		return nil, multierr.Append(err, b.Close())
	}

	cfg := opts.Config
	c := &Client{
		RunID:     runID,
		Account:   opts.Account,
		Auth:      auth.NewEngine(b, cfg.Site, cfg.Auth, opts.Logger),
		Scraper:   marketplace.NewScraper(b, cfg, opts.Logger),
		Seller:    marketplace.NewSellerCenter(b, cfg, opts.Logger),
		Orders:    marketplace.NewOrders(b, cfg, opts.Logger),
		Messaging: marketplace.NewMessaging(b, cfg, opts.Logger),
		browser:   b,
		store:     opts.Store,
		logger:    logger,
		restored:  restored,
	}
	logger.Info("Session started.", zap.Bool("restored", restored))
	return c, nil
}

// restore applies the saved session. Only a store failure is returned; a
// missing or unusable snapshot means starting fresh.
func restore(ctx context.Context, b browser.Browser, store session.Store, account string, logger *zap.Logger) (bool, error) {
	blob, err := store.Load(ctx, account)
	if errors.Is(err, session.ErrNotFound) {
		logger.Info("No saved session; starting unauthenticated.")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load saved session: %w", err)
	}
	if err := b.RestoreState(ctx, blob); err != nil {
		logger.Warn("Saved session could not be restored; starting unauthenticated.", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Restored reports whether a saved session was applied at start.
func (c *Client) Restored() bool { return c.restored }

// Driver exposes the session's driver.
func (c *Client) Driver() browser.Driver { return c.browser }

// EnsureAuthenticated probes the session and logs in with cred when the
// probe says it is anonymous.
func (c *Client) EnsureAuthenticated(ctx context.Context, cred *auth.Credential) error {
	if c.Auth.IsAuthenticated(ctx) {
		return nil
	}
	if cred == nil || cred.Validate() != nil {
		return ErrNoCredentials
	}
	c.logger.Info("Session is not authenticated; logging in.")
	return c.Auth.Login(ctx, *cred)
}

// Close saves the session state and closes the browser. Both steps always
// run; their errors are combined. Later calls return the first result.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()

		var err error
		state, captureErr := c.browser.CaptureState(closeCtx)
		if captureErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to capture session state: %w", captureErr))
		} else if saveErr := c.store.Save(closeCtx, c.Account, state); saveErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to save session state: %w", saveErr))
		} else {
			c.logger.Info("Session state saved.")
		}

		if closeErr := c.browser.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to close browser: %w", closeErr))
		}
		if err != nil {
			c.logger.Error("Session shutdown finished with errors.", zap.Error(err))
		}
		c.closeErr = err
	})
	return c.closeErr
}

// Run starts a session, calls fn, and closes the session on every exit path.
// A panic in fn is re-raised after Close has run.
func Run(ctx context.Context, opts Options, fn func(context.Context, *Client) error) (err error) {
	c, err := Start(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		r := recover()
		closeErr := c.Close(ctx)
		if r != nil {
			panic(r)
		}
		err = multierr.Append(err, closeErr)
	}()
	return fn(ctx, c)
}
