// Package static implements the page driver over saved HTML documents.
//
// The static driver has no JavaScript engine. Clicks on anchors follow their
// href and clicks on submit buttons navigate to the form action; every other
// click, fill and wait is recorded so callers can inspect what a flow did.
// Waits never block: the condition is evaluated once against the current
// document and ErrTimeout is returned when it does not hold.
package static

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
)

// Interaction is one recorded driver call.
type Interaction struct {
	Kind   string // navigate, click, fill, wait, sleep
	Target string
	Value  string
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithState preloads the session state returned by CaptureState.
func WithState(blob []byte) Option {
	return func(d *Driver) { d.state = append([]byte(nil), blob...) }
}

// FailLookup makes every lookup of an element whose selector CSS equals css fail with err.
func FailLookup(css string, err error) Option {
	return func(d *Driver) { d.lookupFaults[css] = err }
}

// FailNavigate makes navigation to any URL with the given prefix fail with err.
func FailNavigate(prefix string, err error) Option {
	return func(d *Driver) { d.navFaults[prefix] = err }
}

// FailRestore makes RestoreState fail while applying, after decoding succeeded.
func FailRestore(err error) Option {
	return func(d *Driver) { d.restoreFault = err }
}

// Driver is a browser.Browser over documents supplied by a Loader.
// It is safe for concurrent use.
type Driver struct {
	mu     sync.Mutex
	loader Loader
	logger *zap.Logger

	doc     *goquery.Document
	current *url.URL
	state   []byte
	closed  bool

	history      []Interaction
	lookupFaults map[string]error
	navFaults    map[string]error
	restoreFault error
}

var _ browser.Browser = (*Driver)(nil)

// New creates a driver that loads pages through loader.
func New(loader Loader, opts ...Option) *Driver {
	d := &Driver{
		loader:       loader,
		logger:       zap.NewNop(),
		lookupFaults: make(map[string]error),
		navFaults:    make(map[string]error),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FromHTML creates a driver with body already loaded at pageURL.
func FromHTML(pageURL, body string, opts ...Option) (*Driver, error) {
	d := New(Pages{pageURL: body}, opts...)
	if err := d.Navigate(context.Background(), pageURL); err != nil {
		return nil, err
	}
	return d, nil
}

// Launcher returns a browser.Launcher that creates a fresh static driver per launch.
func Launcher(loader Loader, opts ...Option) browser.Launcher {
	return browser.LauncherFunc(func(ctx context.Context) (browser.Browser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(loader, opts...), nil
	})
}

// History returns a copy of the recorded interactions.
func (d *Driver) History() []Interaction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Interaction(nil), d.history...)
}

// Count returns how many recorded interactions have the given kind.
func (d *Driver) Count(kind string) int {
	n := 0
	for _, it := range d.History() {
		if it.Kind == kind {
			n++
		}
	}
	return n
}

// Closed reports whether Close has been called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) record(kind, target, value string) {
	d.history = append(d.history, Interaction{Kind: kind, Target: target, Value: value})
}

// Navigate loads target, resolved against the current URL.
func (d *Driver) Navigate(ctx context.Context, target string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.navigateLocked(ctx, target)
}

func (d *Driver) navigateLocked(ctx context.Context, target string) error {
	if d.closed {
		return browser.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	if d.current != nil {
		u = d.current.ResolveReference(u)
	}
	abs := u.String()
	d.record("navigate", abs, "")

	for prefix, fault := range d.navFaults {
		if strings.HasPrefix(abs, prefix) {
			return fmt.Errorf("navigate %s: %w", abs, fault)
		}
	}

	body, err := d.loader.Load(ctx, abs)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", abs, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("navigate %s: parse: %w", abs, err)
	}
	d.doc = doc
	d.current = u
	d.logger.Debug("Loaded saved page.", zap.String("url", abs))
	return nil
}

// WaitForLoad succeeds once a document is loaded.
func (d *Driver) WaitForLoad(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrClosed
	}
	if d.doc == nil {
		return fmt.Errorf("wait for load: no document loaded")
	}
	return ctx.Err()
}

// WaitFor evaluates the condition once.
func (d *Driver) WaitFor(ctx context.Context, sel browser.Selector, state browser.ElementState, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return browser.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record("wait", sel.String(), state.String())

	nodes, err := d.resolveLocked([]step{{sel: sel, index: -1}})
	if err != nil {
		return err
	}
	anyVisible := false
	for _, n := range nodes {
		if isVisible(n) {
			anyVisible = true
			break
		}
	}

	met := false
	switch state {
	case browser.StateVisible:
		met = anyVisible
	case browser.StateHidden:
		met = !anyVisible
	case browser.StateAttached:
		met = len(nodes) > 0
	}
	if !met {
		return &browser.LookupError{Op: "wait for " + state.String(), Selector: sel, Err: browser.ErrTimeout}
	}
	return nil
}

// Locate returns a collection rooted at the document.
func (d *Driver) Locate(sel browser.Selector) browser.Collection {
	return &collection{d: d, path: []step{{sel: sel, index: -1}}}
}

// Sleep records the pause and returns immediately.
func (d *Driver) Sleep(ctx context.Context, dur time.Duration) error {
	d.mu.Lock()
	d.record("sleep", "", dur.String())
	d.mu.Unlock()
	return ctx.Err()
}

// CurrentURL returns the URL of the loaded document.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return "about:blank", nil
	}
	return d.current.String(), nil
}

// CaptureState returns the blob last restored or preloaded, or an empty state.
func (d *Driver) CaptureState(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, browser.ErrClosed
	}
	if d.state == nil {
		return (&browser.State{Cookies: []browser.Cookie{}}).Encode()
	}
	return append([]byte(nil), d.state...), nil
}

// RestoreState validates the blob in full before keeping it.
func (d *Driver) RestoreState(ctx context.Context, blob []byte) error {
	if _, err := browser.DecodeState(blob); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.restoreFault != nil {
		d.state = nil
		return &browser.StateError{Phase: "apply", Err: d.restoreFault}
	}
	d.state = append([]byte(nil), blob...)
	return nil
}

// SetState replaces the session state, as a server setting cookies would.
func (d *Driver) SetState(blob []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = append([]byte(nil), blob...)
}

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type step struct {
	sel   browser.Selector
	index int
}

// resolveLocked walks path. A final index of -1 returns every match; otherwise
// the single addressed node is returned, or ErrNotFound.
func (d *Driver) resolveLocked(path []step) ([]*html.Node, error) {
	if d.closed {
		return nil, browser.ErrClosed
	}
	if d.doc == nil {
		return nil, nil
	}
	scope := d.doc.Get(0)
	for i, s := range path {
		if fault, ok := d.lookupFaults[s.sel.CSS]; ok && s.sel.CSS != "" {
			return nil, &browser.LookupError{Op: "locate", Selector: s.sel, Err: fault}
		}
		matches := matchAll(d.doc, scope, s.sel)
		if s.index < 0 {
			if i != len(path)-1 {
				return nil, fmt.Errorf("collection step must be last")
			}
			return matches, nil
		}
		if s.index >= len(matches) {
			return nil, &browser.LookupError{Op: "locate", Selector: s.sel, Err: browser.ErrNotFound}
		}
		scope = matches[s.index]
	}
	return []*html.Node{scope}, nil
}

type collection struct {
	d    *Driver
	path []step
}

func (c *collection) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	nodes, err := c.d.resolveLocked(c.path)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (c *collection) Nth(i int) browser.Element {
	path := append([]step(nil), c.path...)
	path[len(path)-1].index = i
	return &element{d: c.d, path: path}
}

type element struct {
	d    *Driver
	path []step
}

func (e *element) sel() browser.Selector { return e.path[len(e.path)-1].sel }

func (e *element) child(sel browser.Selector, index int) []step {
	path := append([]step(nil), e.path...)
	return append(path, step{sel: sel, index: index})
}

func (e *element) Locate(sel browser.Selector) browser.Element {
	return &element{d: e.d, path: e.child(sel, 0)}
}

func (e *element) LocateAll(sel browser.Selector) browser.Collection {
	return &collection{d: e.d, path: e.child(sel, -1)}
}

func (e *element) node(ctx context.Context) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, err := e.d.resolveLocked(e.path)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, &browser.LookupError{Op: "locate", Selector: e.sel(), Err: browser.ErrNotFound}
	}
	return nodes[0], nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.node(ctx)
	if err != nil {
		return "", err
	}
	return innerText(n), nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.node(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := attr(n, name)
	return v, ok, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.node(ctx)
	if err != nil {
		return false, err
	}
	return isVisible(n), nil
}

func (e *element) Fill(ctx context.Context, value string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.node(ctx)
	if err != nil {
		return err
	}
	if !isVisible(n) || (n.DataAtom != atom.Input && n.DataAtom != atom.Textarea) {
		return &browser.LookupError{Op: "fill", Selector: e.sel(), Err: browser.ErrNotInteractable}
	}
	if _, disabled := attr(n, "disabled"); disabled {
		return &browser.LookupError{Op: "fill", Selector: e.sel(), Err: browser.ErrNotInteractable}
	}

	if n.DataAtom == atom.Textarea {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	} else {
		setAttr(n, "value", value)
	}
	e.d.record("fill", e.sel().String(), value)
	return nil
}

// Click records the click and performs its navigation consequence, if any.
func (e *element) Click(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	n, err := e.node(ctx)
	if err != nil {
		return err
	}
	if !isVisible(n) {
		return &browser.LookupError{Op: "click", Selector: e.sel(), Err: browser.ErrNotInteractable}
	}
	if _, disabled := attr(n, "disabled"); disabled {
		return &browser.LookupError{Op: "click", Selector: e.sel(), Err: browser.ErrNotInteractable}
	}
	e.d.record("click", e.sel().String(), "")

	// The clicked node may sit inside an anchor, as with a label span.
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.A {
			href, _ := attr(p, "href")
			if href != "" && href != "#" && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
				return e.d.navigateLocked(ctx, href)
			}
			break
		}
	}

	inputType, _ := attr(n, "type")
	inputType = strings.ToLower(inputType)
	isSubmit := (n.DataAtom == atom.Button && (inputType == "submit" || inputType == "")) ||
		(n.DataAtom == atom.Input && inputType == "submit")
	if isSubmit {
		if form := findParentForm(n); form != nil {
			return e.d.submitLocked(ctx, form)
		}
	}
	return nil
}

// submitLocked navigates to the form action. GET forms carry their named
// fields in the query string.
func (d *Driver) submitLocked(ctx context.Context, form *html.Node) error {
	action, _ := attr(form, "action")
	if action == "" && d.current != nil {
		action = d.current.String()
	}
	method, _ := attr(form, "method")
	if !strings.EqualFold(method, "get") {
		return d.navigateLocked(ctx, action)
	}

	values := url.Values{}
	d.doc.FindNodes(form).Find("input[name], textarea[name]").Each(func(_ int, s *goquery.Selection) {
		n := s.Get(0)
		name, _ := attr(n, "name")
		if n.DataAtom == atom.Textarea {
			values.Add(name, textContent(n))
			return
		}
		switch t, _ := attr(n, "type"); strings.ToLower(t) {
		case "submit", "button", "image", "reset", "file":
		case "checkbox", "radio":
			if _, checked := attr(n, "checked"); checked {
				v, ok := attr(n, "value")
				if !ok {
					v = "on"
				}
				values.Add(name, v)
			}
		default:
			v, _ := attr(n, "value")
			values.Add(name, v)
		}
	})

	u, err := url.Parse(action)
	if err != nil {
		return fmt.Errorf("invalid form action %q: %w", action, err)
	}
	u.RawQuery = values.Encode()
	return d.navigateLocked(ctx, u.String())
}
