package htmlpage

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

// blockTags break text into lines the way rendered innerText does
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "label": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "section": true, "table": true,
	"tr": true, "ul": true,
}

// Element is a node of a static Page
type Element struct {
	page *Page
	node *html.Node
}

// QueryAll returns matching descendants
func (e *Element) QueryAll(ctx context.Context, selector string) ([]consent.Element, error) {
	return e.page.query(ctx, e.node, selector)
}

// Text returns the element text with block elements on their own lines.
// Hidden subtrees, scripts and styles are left out.
func (e *Element) Text(ctx context.Context) (string, error) {
	var b strings.Builder
	collectText(e.node, &b)

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" || styleOf(n).Display == "none" {
			return
		}
	}

	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if block {
		b.WriteByte('\n')
	}
}

// Attribute returns an attribute value
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := attr(e.node, name)
	return v, ok, nil
}

// Style derives visibility from inline styles and the hidden attribute of
// the element and its ancestors. Boxes are assumed non-empty unless an
// explicit zero width or height is set.
func (e *Element) Style(ctx context.Context) (consent.Visibility, error) {
	v := consent.Visibility{Display: "block", Visibility: "visible", Opacity: 1, Width: 1, Height: 1}

	// visibility inherits, so the closest declaration wins
	visibilityDecided := false
	for n := e.node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		s := styleOf(n)
		if s.Display == "none" {
			v.Display = "none"
		}
		if s.Visibility != "" && !visibilityDecided {
			v.Visibility = s.Visibility
			visibilityDecided = true
		}
		if s.Opacity == 0 {
			v.Opacity = 0
		}
		if n == e.node {
			v.Width, v.Height = s.Width, s.Height
		}
	}

	if v.Display == "none" {
		v.Width, v.Height = 0, 0
	}
	return v, nil
}

// inlineStyle is the subset of CSS the static page understands
type inlineStyle struct {
	Display    string
	Visibility string
	Opacity    float64
	Width      float64
	Height     float64
}

func styleOf(n *html.Node) inlineStyle {
	s := inlineStyle{Opacity: 1, Width: 1, Height: 1}

	if _, hidden := attr(n, "hidden"); hidden {
		s.Display = "none"
	}
	if t, _ := attr(n, "type"); n.Data == "input" && strings.EqualFold(t, "hidden") {
		s.Display = "none"
	}

	raw, _ := attr(n, "style")
	for _, decl := range strings.Split(raw, ";") {
		key, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important")))

		switch key {
		case "display":
			s.Display = value
		case "visibility":
			s.Visibility = value
		case "opacity":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				s.Opacity = f
			}
		case "width":
			s.Width = lengthOf(value)
		case "height":
			s.Height = lengthOf(value)
		}
	}
	return s
}

// lengthOf treats any non-zero CSS length as a visible size
func lengthOf(value string) float64 {
	trimmed := strings.TrimRight(value, "pxemrvhw%")
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f == 0 {
		return 0
	}
	return 1
}

// Describe returns tag, id, classes and form state
func (e *Element) Describe(ctx context.Context) (consent.ElementInfo, error) {
	n := e.node
	id, _ := attr(n, "id")
	class, _ := attr(n, "class")
	typ, _ := attr(n, "type")
	value, _ := attr(n, "value")
	_, checked := attr(n, "checked")
	_, disabled := attr(n, "disabled")
	_, readOnly := attr(n, "readonly")
	if v, ok := attr(n, "aria-checked"); ok && v == "true" {
		checked = true
	}

	return consent.ElementInfo{
		Tag:      n.Data,
		ID:       id,
		Classes:  strings.Fields(class),
		Type:     strings.ToLower(typ),
		Value:    value,
		Checked:  checked,
		Disabled: disabled,
		ReadOnly: readOnly,
	}, nil
}

// OuterHTML renders the element
func (e *Element) OuterHTML(ctx context.Context) (string, error) {
	return render(e.node)
}

// Click records the click and runs the page's click hook
func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.page.click(ctx, e)
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
