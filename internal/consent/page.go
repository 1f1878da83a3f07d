package consent

import (
	"context"
	"strings"
)

// Page is the page-interaction capability the engine works against.
// Implementations wrap a live browser tab or a parsed HTML document.
type Page interface {
	// QueryAll returns all elements matching a CSS selector in document order
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Content returns the serialized document HTML
	Content(ctx context.Context) (string, error)
}

// Session is a Page owned by one scan that can also navigate and read
// cookies. The orchestrator opens and closes it; the engine only borrows
// its Page side.
type Session interface {
	Page
	// Navigate loads url and returns once the document is ready
	Navigate(ctx context.Context, url string) error
	// Cookies reads the current cookie jar
	Cookies(ctx context.Context) ([]RawCookie, error)
	// ObservedCookies returns cookies seen in Set-Cookie response headers
	ObservedCookies() []RawCookie
	// Close releases the session
	Close() error
}

// Element is a handle to one DOM element of a Page
type Element interface {
	// QueryAll returns matching descendants in document order
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// Text returns the rendered text (innerText where available)
	Text(ctx context.Context) (string, error)
	// Attribute returns an attribute value and whether it is present
	Attribute(ctx context.Context, name string) (string, bool, error)
	// Style returns the computed visibility facts of the element
	Style(ctx context.Context) (Visibility, error)
	// Describe returns identity and form-state facts of the element
	Describe(ctx context.Context) (ElementInfo, error)
	// OuterHTML returns the element's markup
	OuterHTML(ctx context.Context) (string, error)
	// Click activates the element
	Click(ctx context.Context) error
}

// Visibility carries computed style and box size of an element
type Visibility struct {
	Display    string
	Visibility string
	Opacity    float64
	Width      float64
	Height     float64
}

// Shown reports whether the element is really rendered
func (v Visibility) Shown() bool {
	return v.Visibility != "hidden" &&
		v.Display != "none" &&
		v.Opacity != 0 &&
		v.Width > 0 &&
		v.Height > 0
}

// ElementInfo describes an element's identity and form state
type ElementInfo struct {
	Tag      string
	ID       string
	Classes  []string
	Type     string
	Value    string
	Checked  bool
	Disabled bool
	ReadOnly bool
}

// DeriveSelector builds a selector descriptor for an element:
// "#id" if it has an id, else ".a.b" from its classes, else the tag name.
// Both the banner profiler and the interaction sequencer use it.
func DeriveSelector(info ElementInfo) string {
	if info.ID != "" {
		return "#" + info.ID
	}

	classes := make([]string, 0, len(info.Classes))
	for _, c := range info.Classes {
		if c = strings.TrimSpace(c); c != "" {
			classes = append(classes, c)
		}
	}
	if len(classes) > 0 {
		return "." + strings.Join(classes, ".")
	}

	return strings.ToLower(info.Tag)
}

// elementLabel returns the lower-cased text used for keyword bucketing,
// falling back to the value of input buttons
func elementLabel(ctx context.Context, el Element) (string, error) {
	text, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		value, _, err := el.Attribute(ctx, "value")
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(value)
	}
	return strings.ToLower(text), nil
}
