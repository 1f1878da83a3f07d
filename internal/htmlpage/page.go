// Package htmlpage implements the consent page capability over a parsed
// HTML document. It serves offline scans of saved pages and test fixtures.
package htmlpage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

// ClickFunc is invoked when an element of the page is clicked
type ClickFunc func(ctx context.Context, info consent.ElementInfo) error

// Page is a static, script-less page
type Page struct {
	root *html.Node

	mu      sync.Mutex
	onClick ClickFunc
	clicks  []string
}

// Parse reads an HTML document
func Parse(r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Page{root: root}, nil
}

// ParseString parses an in-memory HTML document
func ParseString(content string) (*Page, error) {
	return Parse(strings.NewReader(content))
}

// OnClick installs a hook run on every click, e.g. to simulate a consent
// platform setting cookies. A hook error fails the click.
func (p *Page) OnClick(fn ClickFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick = fn
}

// Clicks returns the selectors of clicked elements in click order
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// QueryAll returns all elements matching selector in document order
func (p *Page) QueryAll(ctx context.Context, selector string) ([]consent.Element, error) {
	return p.query(ctx, p.root, selector)
}

// Content renders the whole document
func (p *Page) Content(ctx context.Context) (string, error) {
	return render(p.root)
}

func (p *Page) query(ctx context.Context, from *html.Node, selector string) ([]consent.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	nodes := cascadia.QueryAll(from, group)
	out := make([]consent.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Element{page: p, node: n})
	}
	return out, nil
}

func (p *Page) click(ctx context.Context, el *Element) error {
	info, _ := el.Describe(ctx)

	p.mu.Lock()
	hook := p.onClick
	p.clicks = append(p.clicks, consent.DeriveSelector(info))
	p.mu.Unlock()

	if hook != nil {
		return hook(ctx, info)
	}
	return nil
}

func render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
