// internal/browser/chrome.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/fastwork-cli/internal/browser/stealth"
	"github.com/xkilldash9x/fastwork-cli/internal/config"
)

const (
	waitPollInterval   = 100 * time.Millisecond
	defaultNavTimeout  = 60 * time.Second
	defaultLaunchLimit = 60 * time.Second
)

// ChromeLauncher starts headless Chrome instances over CDP.
type ChromeLauncher struct {
	browserCfg config.BrowserConfig
	networkCfg config.NetworkConfig
	logger     *zap.Logger
}

var _ Launcher = (*ChromeLauncher)(nil)

// NewChromeLauncher creates a launcher for the given configuration.
func NewChromeLauncher(browserCfg config.BrowserConfig, networkCfg config.NetworkConfig, logger *zap.Logger) *ChromeLauncher {
	return &ChromeLauncher{
		browserCfg: browserCfg,
		networkCfg: networkCfg,
		logger:     logger.Named("browser"),
	}
}

// Launch starts a browser with a single tab and applies the stealth persona.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	tabID := uuid.NewString()
	logger := l.logger.With(zap.String("tab_id", tabID))

	// The browser outlives the launch call, so its contexts hang off a detached parent.
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), DefaultAllocatorOptions(l.browserCfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	limit := l.browserCfg.LaunchTimeout
	if limit <= 0 {
		limit = defaultLaunchLimit
	}

	// The first Run allocates the process. It must not carry a deadline, or the
	// browser would die with it, so the launch timeout is enforced from outside.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	select {
	case err := <-started:
		if err != nil {
			tabCancel()
			allocCancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-time.After(limit):
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: no target after %s", limit)
	case <-ctx.Done():
		tabCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	c := newChrome(tabCtx, tabCancel, allocCancel, l.networkCfg, logger)

	if l.browserCfg.Stealth.Enabled {
		persona := stealth.PersonaFromConfig(l.browserCfg.Stealth)
		if err := c.run(ctx, stealth.Apply(persona, logger)); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to apply stealth persona: %w", err)
		}
	}

	logger.Info("Browser launched.", zap.Bool("headless", l.browserCfg.Headless))
	return c, nil
}

// Chrome is a Driver backed by a live Chrome tab. Calls are serialized.
type Chrome struct {
	mu          sync.Mutex
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	limiter     *rate.Limiter
	cfg         config.NetworkConfig
	logger      *zap.Logger

	// storage holds localStorage per origin, seeded by RestoreState and refreshed on capture.
	storage map[string]map[string]string

	closeOnce sync.Once
	closed    bool
	closeErr  error
}

var _ Browser = (*Chrome)(nil)

func newChrome(ctx context.Context, tabCancel, allocCancel context.CancelFunc, cfg config.NetworkConfig, logger *zap.Logger) *Chrome {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Chrome{
		ctx:         ctx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		limiter:     rate.NewLimiter(limit, burst),
		cfg:         cfg,
		logger:      logger,
		storage:     make(map[string]map[string]string),
	}
}

// run executes actions on the tab. It respects both the tab lifetime and ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	runCtx, cancel := CombineContext(c.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads target, pacing requests through the rate limiter.
func (c *Chrome) Navigate(ctx context.Context, target string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}

	timeout := c.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.logger.Debug("Navigating.", zap.String("url", target))
	if err := c.run(navCtx, chromedp.Navigate(target)); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	if c.cfg.PostLoadWait > 0 {
		return c.Sleep(ctx, c.cfg.PostLoadWait)
	}
	return nil
}

// WaitForLoad waits until the document body is ready.
func (c *Chrome) WaitForLoad(ctx context.Context) error {
	if err := c.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for load: %w", err)
	}
	return nil
}

// WaitFor polls until sel reaches state.
func (c *Chrome) WaitFor(ctx context.Context, sel Selector, state ElementState, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		var res evalResult
		err := c.eval(waitCtx, []pathStep{{Sel: sel, Index: -1}}, opState, "", &res)
		if err == nil && res.Error == "" {
			switch state {
			case StateVisible:
				if res.AnyVisible {
					return nil
				}
			case StateHidden:
				if !res.AnyVisible {
					return nil
				}
			case StateAttached:
				if res.Count > 0 {
					return nil
				}
			}
		} else if err != nil && errors.Is(err, ErrClosed) {
			return err
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &LookupError{Op: "wait for " + state.String(), Selector: sel, Err: ErrTimeout}
		case <-ticker.C:
		}
	}
}

// Locate returns a lazy collection rooted at the document.
func (c *Chrome) Locate(sel Selector) Collection {
	return &chromeCollection{c: c, path: []pathStep{{Sel: sel, Index: -1}}}
}

// Sleep pauses for d or until ctx ends.
func (c *Chrome) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CurrentURL returns the location of the tab.
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

const captureStorageJS = `(function() {
	const items = {};
	try {
		for (let i = 0; i < localStorage.length; i++) {
			const k = localStorage.key(i);
			if (k !== null) { items[k] = localStorage.getItem(k); }
		}
	} catch (e) {}
	return { origin: location.origin, items: items };
})()`

// CaptureState reads every cookie in the browser plus the localStorage of the
// current origin, merged with the storage of origins restored earlier.
func (c *Chrome) CaptureState(ctx context.Context) ([]byte, error) {
	var cookies []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) (err error) {
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	var current struct {
		Origin string            `json:"origin"`
		Items  map[string]string `json:"items"`
	}
	if err := c.run(ctx, chromedp.Evaluate(captureStorageJS, &current)); err != nil {
		c.logger.Warn("Could not capture localStorage; keeping previously known values.", zap.Error(err))
	} else if isHTTPOrigin(current.Origin) {
		c.mu.Lock()
		c.storage[current.Origin] = current.Items
		c.mu.Unlock()
	}

	st := &State{Cookies: make([]Cookie, 0, len(cookies))}
	for _, ck := range cookies {
		st.Cookies = append(st.Cookies, Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Expires:  ck.Expires,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: ck.SameSite.String(),
		})
	}
	c.mu.Lock()
	if len(c.storage) > 0 {
		st.LocalStorage = make(map[string]map[string]string, len(c.storage))
		for origin, items := range c.storage {
			st.LocalStorage[origin] = items
		}
	}
	c.mu.Unlock()

	c.logger.Debug("Captured session state.", zap.Int("cookies", len(st.Cookies)), zap.Int("origins", len(st.LocalStorage)))
	return st.Encode()
}

const seedStorageJS = `(function(all) {
	const items = all[location.origin];
	if (!items) { return; }
	try {
		for (const k of Object.keys(items)) {
			if (localStorage.getItem(k) === null) { localStorage.setItem(k, items[k]); }
		}
	} catch (e) {}
})(%s);`

// RestoreState decodes blob in full, then applies cookies and schedules the
// localStorage seed. If applying fails midway the cookie jar is cleared so the
// session starts unauthenticated instead of half-restored.
func (c *Chrome) RestoreState(ctx context.Context, blob []byte) error {
	st, err := DecodeState(blob)
	if err != nil {
		return err
	}

	params := make([]*network.CookieParam, 0, len(st.Cookies))
	for _, ck := range st.Cookies {
		p := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
		}
		if ck.SameSite != "" {
			p.SameSite = network.CookieSameSite(ck.SameSite)
		}
		if ck.Expires > 0 {
			sec := int64(ck.Expires)
			nsec := int64((ck.Expires - float64(sec)) * float64(time.Second))
			expires := cdp.TimeSinceEpoch(time.Unix(sec, nsec))
			p.Expires = &expires
		}
		params = append(params, p)
	}

	var seed string
	if len(st.LocalStorage) > 0 {
		data, err := json.Marshal(st.LocalStorage)
		if err != nil {
			return &StateError{Phase: "decode", Err: err}
		}
		seed = fmt.Sprintf(seedStorageJS, data)
	}

	applyErr := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if len(params) > 0 {
			if err := storage.SetCookies(params).Do(ctx); err != nil {
				return fmt.Errorf("set cookies: %w", err)
			}
		}
		if seed != "" {
			if _, err := page.AddScriptToEvaluateOnNewDocument(seed).Do(ctx); err != nil {
				return fmt.Errorf("seed local storage: %w", err)
			}
		}
		return nil
	}))
	if applyErr != nil {
		clearErr := c.run(Detach(ctx), chromedp.ActionFunc(func(ctx context.Context) error {
			return storage.ClearCookies().Do(ctx)
		}))
		if clearErr != nil {
			c.logger.Error("Failed to clear cookies after a partial restore.", zap.Error(clearErr))
		}
		return &StateError{Phase: "apply", Err: applyErr}
	}

	c.mu.Lock()
	for origin, items := range st.LocalStorage {
		c.storage[origin] = items
	}
	c.mu.Unlock()

	c.logger.Debug("Restored session state.", zap.Int("cookies", len(params)), zap.Int("origins", len(st.LocalStorage)))
	return nil
}

// Close shuts the browser down. Subsequent calls return the first result.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		// chromedp.Cancel closes the tab and waits for the browser to exit.
		if err := chromedp.Cancel(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		c.tabCancel()
		c.allocCancel()
		c.logger.Debug("Browser closed.")
	})
	return c.closeErr
}

// click dispatches a left click at the given viewport point.
func (c *Chrome) click(ctx context.Context, x, y float64) error {
	return c.run(ctx,
		input.DispatchMouseEvent(input.MouseMoved, x, y),
		input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(input.Left).WithButtons(1).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(input.Left).WithButtons(0).WithClickCount(1),
	)
}

func isHTTPOrigin(origin string) bool {
	u, err := url.Parse(origin)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
