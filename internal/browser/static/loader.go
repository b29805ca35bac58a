package static

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// Loader returns the HTML for a URL.
type Loader interface {
	Load(ctx context.Context, target string) ([]byte, error)
}

// ErrPageNotFound is returned by loaders that have nothing for a URL.
type ErrPageNotFound struct {
	URL string
}

func (e *ErrPageNotFound) Error() string {
	return fmt.Sprintf("no saved page for %s", e.URL)
}

// Pages is an in-memory loader keyed by URL. A key without a query string
// also matches requests that carry one.
type Pages map[string]string

// Load implements Loader.
func (p Pages) Load(ctx context.Context, target string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if body, ok := p[target]; ok {
		return []byte(body), nil
	}
	if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
		u.RawQuery = ""
		if body, ok := p[u.String()]; ok {
			return []byte(body), nil
		}
	}
	return nil, &ErrPageNotFound{URL: target}
}

// Dir loads pages saved under Root using a host/path layout:
//
//	https://fastwork.id/            -> <root>/fastwork.id/index.html
//	https://fastwork.id/search?q=x  -> <root>/fastwork.id/search.html
//	https://seller.fastwork.id/dashboard -> <root>/seller.fastwork.id/dashboard.html
type Dir struct {
	Root string
}

// PathFor maps a URL to its file under the root.
func (d Dir) PathFor(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", target)
	}
	root, err := homedir.Expand(d.Root)
	if err != nil {
		return "", err
	}

	p := path.Clean("/" + u.Path)
	switch {
	case p == "/":
		p = "/index.html"
	case path.Ext(p) == "":
		p += ".html"
	}
	return filepath.Join(root, u.Host, filepath.FromSlash(strings.TrimPrefix(p, "/"))), nil
}

// Load implements Loader.
func (d Dir) Load(ctx context.Context, target string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := d.PathFor(target)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return nil, &ErrPageNotFound{URL: target}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read saved page %s: %w", file, err)
	}
	return body, nil
}
