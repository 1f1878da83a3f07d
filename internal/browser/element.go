package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/olegrjumin/cookieguard/internal/consent"
)

const (
	jsText = `function() {
		return (this.innerText !== undefined ? this.innerText : this.textContent) || "";
	}`
	jsStyle = `function() {
		const s = window.getComputedStyle(this);
		const r = this.getBoundingClientRect();
		return {
			display: s.display,
			visibility: s.visibility,
			opacity: parseFloat(s.opacity),
			width: r.width,
			height: r.height
		};
	}`
	jsDescribe = `function() {
		return {
			tag: this.tagName.toLowerCase(),
			id: this.id || "",
			classes: Array.from(this.classList || []),
			type: this.getAttribute("type") || "",
			value: this.value !== undefined ? String(this.value) : (this.getAttribute("value") || ""),
			checked: this.checked === true || this.getAttribute("aria-checked") === "true",
			disabled: this.disabled === true || this.hasAttribute("disabled"),
			readOnly: this.readOnly === true || this.hasAttribute("readonly")
		};
	}`
	jsOuterHTML = `function() { return this.outerHTML; }`
	jsClick     = `function() { this.click(); return true; }`
)

// Element is a DOM node inside a Session's tab
type Element struct {
	session *Session
	node    *cdp.Node
}

var _ consent.Element = (*Element)(nil)

// call runs fn with the element bound to this and decodes its JSON result
func (e *Element) call(ctx context.Context, fn string, out any) error {
	return e.session.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		defer runtime.ReleaseObject(obj.ObjectID).Do(ctx)

		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal(res.Value, out)
	}))
}

// QueryAll returns matching descendants in document order
func (e *Element) QueryAll(ctx context.Context, selector string) ([]consent.Element, error) {
	return e.session.queryAll(ctx, selector, chromedp.FromNode(e.node))
}

// Text returns the rendered innerText
func (e *Element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.call(ctx, jsText, &text)
	return text, err
}

// Attribute returns an attribute value and whether it is present
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	quoted, err := json.Marshal(name)
	if err != nil {
		return "", false, err
	}
	fn := fmt.Sprintf(`function() {
		const n = %s;
		return this.hasAttribute(n) ? [this.getAttribute(n), true] : ["", false];
	}`, quoted)

	var res [2]any
	if err := e.call(ctx, fn, &res); err != nil {
		return "", false, err
	}
	value, _ := res[0].(string)
	present, _ := res[1].(bool)
	return value, present, nil
}

// Style reads computed display, visibility and opacity plus the layout box
func (e *Element) Style(ctx context.Context) (consent.Visibility, error) {
	var res struct {
		Display    string  `json:"display"`
		Visibility string  `json:"visibility"`
		Opacity    float64 `json:"opacity"`
		Width      float64 `json:"width"`
		Height     float64 `json:"height"`
	}
	if err := e.call(ctx, jsStyle, &res); err != nil {
		return consent.Visibility{}, err
	}
	return consent.Visibility{
		Display:    res.Display,
		Visibility: res.Visibility,
		Opacity:    res.Opacity,
		Width:      res.Width,
		Height:     res.Height,
	}, nil
}

// Describe returns tag, id, classes and form state
func (e *Element) Describe(ctx context.Context) (consent.ElementInfo, error) {
	var res struct {
		Tag      string   `json:"tag"`
		ID       string   `json:"id"`
		Classes  []string `json:"classes"`
		Type     string   `json:"type"`
		Value    string   `json:"value"`
		Checked  bool     `json:"checked"`
		Disabled bool     `json:"disabled"`
		ReadOnly bool     `json:"readOnly"`
	}
	if err := e.call(ctx, jsDescribe, &res); err != nil {
		return consent.ElementInfo{}, err
	}
	return consent.ElementInfo{
		Tag:      res.Tag,
		ID:       res.ID,
		Classes:  res.Classes,
		Type:     res.Type,
		Value:    res.Value,
		Checked:  res.Checked,
		Disabled: res.Disabled,
		ReadOnly: res.ReadOnly,
	}, nil
}

// OuterHTML returns the element markup
func (e *Element) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := e.call(ctx, jsOuterHTML, &html)
	return html, err
}

// Click dispatches a real mouse click, falling back to a DOM click for
// elements without a layout box
func (e *Element) Click(ctx context.Context) error {
	if err := e.session.run(ctx, chromedp.MouseClickNode(e.node)); err == nil {
		return nil
	} else if ctx.Err() != nil {
		return ctx.Err()
	}
	return e.call(ctx, jsClick, nil)
}
