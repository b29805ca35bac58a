// internal/browser/chrome_element.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
)

// pathStep is one hop from the document down to an element. Index -1 on the
// last step means "all matches" (a collection).
type pathStep struct {
	Sel   Selector `json:"sel"`
	Index int      `json:"index"`
}

type evalOp string

const (
	opCount   evalOp = "count"
	opState   evalOp = "state"
	opText    evalOp = "text"
	opAttr    evalOp = "attr"
	opVisible evalOp = "visible"
	opBox     evalOp = "box"
	opFill    evalOp = "fill"
)

type evalResult struct {
	Found      bool    `json:"found"`
	Count      int     `json:"count"`
	AnyVisible bool    `json:"anyVisible"`
	Visible    bool    `json:"visible"`
	Present    bool    `json:"present"`
	Value      string  `json:"value"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Error      string  `json:"error"`
}

// resolverJS walks a path of selector steps. It mirrors the matching rules
// documented on Selector so live pages and saved pages behave alike.
const resolverJS = `(function(steps, op, arg) {
	const norm = (t) => (t || '').replace(/\s+/g, ' ').trim().toLowerCase();
	const isVisible = (el) => {
		if (!el || !el.getBoundingClientRect) { return false; }
		const r = el.getBoundingClientRect();
		const s = window.getComputedStyle(el);
		return r.width > 0 && r.height > 0 && s.display !== 'none' && s.visibility !== 'hidden' && s.opacity !== '0';
	};
	const matchAll = (scope, sel) => {
		const root = scope === document ? document.documentElement : scope;
		if (!sel.css && !sel.has_text && !sel.sibling) { return [root]; }
		let els;
		try {
			els = sel.css ? Array.from(scope.querySelectorAll(sel.css)) : Array.from(scope.querySelectorAll('*'));
		} catch (e) {
			throw new Error('invalid selector ' + sel.css);
		}
		if (sel.has_text) {
			const needle = norm(sel.has_text);
			const hits = els.filter((e) => norm(e.innerText || e.textContent).includes(needle));
			els = hits.filter((e) => !hits.some((o) => o !== e && e.contains(o)));
		}
		if (sel.sibling) {
			const seen = new Set();
			els = els.map((e) => e.nextElementSibling)
				.filter((n) => n && n.matches(sel.sibling) && !seen.has(n) && seen.add(n));
		}
		return els;
	};

	let scope = document;
	let all = null;
	for (let i = 0; i < steps.length; i++) {
		const matches = matchAll(scope, steps[i].sel);
		if (steps[i].index < 0) { all = matches; break; }
		scope = matches[steps[i].index];
		if (!scope) { return { found: false }; }
	}

	if (op === 'count') { return { found: true, count: all ? all.length : 1 }; }
	if (op === 'state') {
		const list = all || [scope];
		return { found: list.length > 0, count: list.length, anyVisible: list.some(isVisible) };
	}

	const el = all ? all[0] : scope;
	if (!el) { return { found: false }; }

	switch (op) {
	case 'text':
		return { found: true, value: (el.innerText !== undefined ? el.innerText : el.textContent || '').trim() };
	case 'attr':
		return el.hasAttribute(arg) ? { found: true, present: true, value: el.getAttribute(arg) } : { found: true, present: false };
	case 'visible':
		return { found: true, visible: isVisible(el) };
	case 'box': {
		el.scrollIntoView({ block: 'center', inline: 'center' });
		if (!isVisible(el) || el.disabled) { return { found: true, visible: false }; }
		const r = el.getBoundingClientRect();
		return { found: true, visible: true, x: r.left + r.width / 2, y: r.top + r.height / 2 };
	}
	case 'fill': {
		if (!isVisible(el) || el.disabled || el.readOnly) { return { found: true, visible: false }; }
		el.focus();
		const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		const desc = Object.getOwnPropertyDescriptor(proto, 'value');
		if (desc && desc.set) { desc.set.call(el, arg); } else { el.value = arg; }
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return { found: true, visible: true };
	}
	}
	return { found: true, error: 'unknown op ' + op };
})`

func (c *Chrome) eval(ctx context.Context, path []pathStep, op evalOp, arg string, res *evalResult) error {
	stepsJSON, err := json.Marshal(path)
	if err != nil {
		return err
	}
	argJSON, err := json.Marshal(arg)
	if err != nil {
		return err
	}
	script := fmt.Sprintf("%s(%s, %q, %s)", resolverJS, stepsJSON, string(op), argJSON)
	return c.run(ctx, chromedp.Evaluate(script, res))
}

type chromeCollection struct {
	c    *Chrome
	path []pathStep
}

func (col *chromeCollection) last() Selector { return col.path[len(col.path)-1].Sel }

func (col *chromeCollection) Count(ctx context.Context) (int, error) {
	var res evalResult
	if err := col.c.eval(ctx, col.path, opCount, "", &res); err != nil {
		return 0, &LookupError{Op: "count", Selector: col.last(), Err: err}
	}
	if !res.Found {
		return 0, nil
	}
	return res.Count, nil
}

func (col *chromeCollection) Nth(i int) Element {
	path := append([]pathStep(nil), col.path...)
	path[len(path)-1].Index = i
	return &chromeElement{c: col.c, path: path}
}

type chromeElement struct {
	c    *Chrome
	path []pathStep
}

func (e *chromeElement) sel() Selector { return e.path[len(e.path)-1].Sel }

func (e *chromeElement) child(sel Selector, index int) []pathStep {
	path := append([]pathStep(nil), e.path...)
	return append(path, pathStep{Sel: sel, Index: index})
}

func (e *chromeElement) Locate(sel Selector) Element {
	return &chromeElement{c: e.c, path: e.child(sel, 0)}
}

func (e *chromeElement) LocateAll(sel Selector) Collection {
	return &chromeCollection{c: e.c, path: e.child(sel, -1)}
}

// do runs op and maps a missing element to ErrNotFound.
func (e *chromeElement) do(ctx context.Context, op evalOp, arg string) (*evalResult, error) {
	var res evalResult
	if err := e.c.eval(ctx, e.path, op, arg, &res); err != nil {
		return nil, &LookupError{Op: string(op), Selector: e.sel(), Err: err}
	}
	if res.Error != "" {
		return nil, &LookupError{Op: string(op), Selector: e.sel(), Err: fmt.Errorf("%s", res.Error)}
	}
	if !res.Found {
		return nil, &LookupError{Op: string(op), Selector: e.sel(), Err: ErrNotFound}
	}
	return &res, nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	res, err := e.do(ctx, opText, "")
	if err != nil {
		return "", err
	}
	return res.Value, nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	res, err := e.do(ctx, opAttr, name)
	if err != nil {
		return "", false, err
	}
	return res.Value, res.Present, nil
}

func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	res, err := e.do(ctx, opVisible, "")
	if err != nil {
		return false, err
	}
	return res.Visible, nil
}

func (e *chromeElement) Fill(ctx context.Context, value string) error {
	res, err := e.do(ctx, opFill, value)
	if err != nil {
		return err
	}
	if !res.Visible {
		return &LookupError{Op: "fill", Selector: e.sel(), Err: ErrNotInteractable}
	}
	return nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	res, err := e.do(ctx, opBox, "")
	if err != nil {
		return err
	}
	if !res.Visible {
		return &LookupError{Op: "click", Selector: e.sel(), Err: ErrNotInteractable}
	}
	if err := e.c.click(ctx, res.X, res.Y); err != nil {
		return &LookupError{Op: "click", Selector: e.sel(), Err: err}
	}
	return nil
}
