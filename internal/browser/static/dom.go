package static

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/fastwork-cli/internal/browser"
)

// blockElements start and end a line in rendered text.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Fieldset: true,
	atom.Figure: true, atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true,
	atom.Section: true, atom.Table: true, atom.Tr: true, atom.Ul: true,
}

// neverRendered elements contribute no text and are never visible.
var neverRendered = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Template: true,
	atom.Title: true, atom.Meta: true, atom.Link: true, atom.Noscript: true,
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// hiddenByStyle reports whether an inline style hides the element.
func hiddenByStyle(n *html.Node) bool {
	style, ok := attr(n, "style")
	if !ok {
		return false
	}
	compact := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(compact, "display:none") || strings.Contains(compact, "visibility:hidden")
}

func selfHidden(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if neverRendered[n.DataAtom] {
		return true
	}
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if n.DataAtom == atom.Input {
		if t, _ := attr(n, "type"); strings.EqualFold(t, "hidden") {
			return true
		}
	}
	return hiddenByStyle(n)
}

// isVisible approximates rendering: the element and all of its ancestors must
// be free of hidden attributes and hiding inline styles.
func isVisible(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if selfHidden(p) {
			return false
		}
	}
	return true
}

// innerText renders the text of n the way a browser's innerText would for
// simple layouts: block elements break lines, hidden subtrees are skipped.
func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if selfHidden(n) {
				return
			}
			if n.DataAtom == atom.Br {
				b.WriteByte('\n')
				return
			}
			if n.DataAtom == atom.Textarea {
				b.WriteString(textContent(n))
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Td || n.DataAtom == atom.Th) {
			b.WriteByte('\t')
		}
	}
	walk(n)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func contains(ancestor, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// matchAll applies sel below scope, following the rules documented on
// browser.Selector.
func matchAll(doc *goquery.Document, scope *html.Node, sel browser.Selector) []*html.Node {
	if sel.IsSelf() {
		if scope.Type == html.DocumentNode {
			return doc.Find("html").Nodes
		}
		return []*html.Node{scope}
	}

	scopeSel := doc.FindNodes(scope)
	if scope.Type == html.DocumentNode {
		scopeSel = doc.Selection
	}

	css := sel.CSS
	if css == "" {
		css = "*"
	}
	nodes := scopeSel.Find(css).Nodes

	if sel.HasText != "" {
		needle := browser.NormalizeText(sel.HasText)
		var hits []*html.Node
		for _, n := range nodes {
			if strings.Contains(browser.NormalizeText(innerText(n)), needle) {
				hits = append(hits, n)
			}
		}
		nodes = nodes[:0]
		for _, n := range hits {
			innermost := true
			for _, o := range hits {
				if o != n && contains(n, o) {
					innermost = false
					break
				}
			}
			if innermost {
				nodes = append(nodes, n)
			}
		}
	}

	if sel.Sibling != "" {
		seen := make(map[*html.Node]bool)
		var next []*html.Node
		for _, n := range nodes {
			sib := doc.FindNodes(n).Next()
			if sib.Length() == 0 || !sib.Is(sel.Sibling) {
				continue
			}
			node := sib.Get(0)
			if !seen[node] {
				seen[node] = true
				next = append(next, node)
			}
		}
		nodes = next
	}
	return nodes
}

func findParentForm(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Form {
			return p
		}
	}
	return nil
}
