// internal/browser/driver.go
package browser

import (
	"context"
	"strings"
	"time"
)

// ElementState is the condition WaitFor blocks on.
type ElementState int

const (
	// StateVisible waits for at least one matching element to be rendered and visible.
	StateVisible ElementState = iota
	// StateHidden waits until no matching element is visible. An absent element counts as hidden.
	StateHidden
	// StateAttached waits for a matching element to exist in the DOM.
	StateAttached
)

func (s ElementState) String() string {
	switch s {
	case StateVisible:
		return "visible"
	case StateHidden:
		return "hidden"
	case StateAttached:
		return "attached"
	default:
		return "unknown"
	}
}

// Selector addresses elements on a rendered page.
//
// CSS is a plain CSS selector. HasText keeps only elements whose rendered text
// contains the given string (case-insensitive, whitespace collapsed); when an
// element and one of its descendants both match, the innermost one wins.
// Sibling, when set, replaces every match with its immediately following
// element sibling, if that sibling matches the Sibling CSS selector.
//
// The empty Selector addresses the scope itself (the card in a card
// extraction, the document at page level).
type Selector struct {
	CSS     string `json:"css,omitempty"`
	HasText string `json:"has_text,omitempty"`
	Sibling string `json:"sibling,omitempty"`
}

// CSS builds a Selector from a CSS expression.
func CSS(css string) Selector {
	return Selector{CSS: css}
}

// WithText returns a copy of s narrowed to elements containing text.
func (s Selector) WithText(text string) Selector {
	s.HasText = text
	return s
}

// Next returns a copy of s that resolves to the next element sibling matching css.
func (s Selector) Next(css string) Selector {
	s.Sibling = css
	return s
}

// IsSelf reports whether s addresses the scope itself.
func (s Selector) IsSelf() bool {
	return s.CSS == "" && s.HasText == "" && s.Sibling == ""
}

func (s Selector) String() string {
	if s.IsSelf() {
		return ":scope"
	}
	var b strings.Builder
	b.WriteString(s.CSS)
	if s.HasText != "" {
		b.WriteString(`:has-text("`)
		b.WriteString(s.HasText)
		b.WriteString(`")`)
	}
	if s.Sibling != "" {
		b.WriteString(" + ")
		b.WriteString(s.Sibling)
	}
	return b.String()
}

// NormalizeText collapses whitespace runs and lower-cases text the way
// HasText matching compares it.
func NormalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Driver is the narrow page surface the rest of the program depends on.
// Implementations are not safe for concurrent use unless documented otherwise;
// one logical session issues its calls sequentially.
type Driver interface {
	// Navigate loads url and returns once the main document has committed.
	Navigate(ctx context.Context, url string) error
	// WaitForLoad blocks until the current document is ready.
	WaitForLoad(ctx context.Context) error
	// WaitFor blocks until sel reaches state or timeout elapses (ErrTimeout).
	WaitFor(ctx context.Context, sel Selector, state ElementState, timeout time.Duration) error
	// Locate returns a lazy collection of the elements matching sel.
	Locate(sel Selector) Collection
	// Sleep pauses for d unless ctx ends first.
	Sleep(ctx context.Context, d time.Duration) error
	// CurrentURL returns the URL of the loaded document.
	CurrentURL(ctx context.Context) (string, error)

	// CaptureState serializes the authentication-relevant browser state.
	CaptureState(ctx context.Context) ([]byte, error)
	// RestoreState applies a blob produced by CaptureState. The blob is decoded
	// completely before any part of it is applied.
	RestoreState(ctx context.Context, state []byte) error
}

// Collection is a lazily resolved, ordered set of elements.
type Collection interface {
	Count(ctx context.Context) (int, error)
	Nth(i int) Element
}

// Element is a lazily resolved handle to a single element. Lookups happen on
// each call, so a handle stays valid across re-renders as long as its path does.
type Element interface {
	// Locate returns the first descendant matching sel.
	Locate(sel Selector) Element
	// LocateAll returns all descendants matching sel.
	LocateAll(sel Selector) Collection
	// Text returns the rendered text, trimmed. ErrNotFound if the element is absent.
	Text(ctx context.Context) (string, error)
	// Attribute returns the attribute value and whether it was present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error
	Visible(ctx context.Context) (bool, error)
}

// Browser is a launched driver that owns resources.
type Browser interface {
	Driver
	// Close releases the browser. It is safe to call more than once.
	Close() error
}

// Launcher starts browsers. The orchestrator depends on this rather than on Chrome.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context) (Browser, error)

// Launch calls f(ctx).
func (f LauncherFunc) Launch(ctx context.Context) (Browser, error) {
	return f(ctx)
}
