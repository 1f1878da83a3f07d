package htmldoc

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

// privacyMarkers are matched case-insensitively against link targets
var privacyMarkers = []string{"privacy", "datenschutz"}

// Document holds what a scan needs from the page markup
type Document struct {
	PrivacyPolicyURL string
	Scripts          []consent.ScriptReference
}

// Parser extracts the privacy policy link and external scripts from HTML
type Parser struct {
	baseURL    *url.URL
	maxScripts int
}

// NewParser creates a parser resolving relative URLs against baseURL
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{
		baseURL:    u,
		maxScripts: 5000, // Safety limit
	}, nil
}

// Parse reads the document and collects its privacy link and scripts
func (p *Parser) Parse(body io.Reader) (*Document, error) {
	root, err := html.Parse(body)
	if err != nil {
		return nil, err
	}

	doc := &Document{Scripts: make([]consent.ScriptReference, 0)}
	p.traverse(root, doc)
	return doc, nil
}

// ParseString is Parse for an in-memory document
func (p *Parser) ParseString(content string) (*Document, error) {
	return p.Parse(strings.NewReader(content))
}

// traverse walks the tree in document order
func (p *Parser) traverse(n *html.Node, doc *Document) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "a":
			if doc.PrivacyPolicyURL == "" {
				p.extractPrivacyLink(n, doc)
			}
		case "script":
			p.extractScript(n, doc)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.traverse(c, doc)
	}
}

// extractPrivacyLink records the first link pointing at a privacy policy
func (p *Parser) extractPrivacyLink(n *html.Node, doc *Document) {
	href, ok := attr(n, "href")
	if !ok || href == "" {
		return
	}

	lowered := strings.ToLower(href)
	for _, marker := range privacyMarkers {
		if strings.Contains(lowered, marker) {
			doc.PrivacyPolicyURL = p.resolveURL(href)
			return
		}
	}
}

// extractScript records external scripts; inline scripts have no src
func (p *Parser) extractScript(n *html.Node, doc *Document) {
	if len(doc.Scripts) >= p.maxScripts {
		return
	}

	src, ok := attr(n, "src")
	if !ok || strings.TrimSpace(src) == "" {
		return
	}

	doc.Scripts = append(doc.Scripts, consent.ScriptReference{
		SourceURL: p.resolveURL(strings.TrimSpace(src)),
		IsTracker: false,
	})
}

// resolveURL converts a relative URL to absolute
func (p *Parser) resolveURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return p.baseURL.ResolveReference(u).String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
