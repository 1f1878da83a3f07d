package consent

import (
	"context"
	"strings"

	"github.com/olegrjumin/cookieguard/internal/logging"
)

// Profiler locates a consent banner and describes its controls
type Profiler struct {
	banner  BannerRules
	buttons ButtonRules
	logger  *logging.Logger
}

// NewProfiler creates a banner profiler from the rule set
func NewProfiler(rules Rules, logger *logging.Logger) *Profiler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Profiler{
		banner:  rules.Banner,
		buttons: rules.Buttons,
		logger:  logger.With("component", "banner_profiler"),
	}
}

// emptyProfile is the "no banner detected" result
func emptyProfile() BannerProfile {
	return BannerProfile{
		Selectors: BannerSelectors{
			Container: []string{},
			Accept:    []string{},
			Reject:    []string{},
			Settings:  []string{},
			Close:     []string{},
		},
		Behavior: BannerBehavior{AppearsOn: "unknown"},
		ConsentSettings: ConsentSettings{
			Categories:         []CategoryProfile{},
			DefaultState:       map[string]bool{},
			RequiredCategories: []string{},
			ToggleSelectors:    map[string]string{},
		},
	}
}

// Profile inspects the page for a visible consent banner.
// Not finding one is a valid result with an empty container set.
func (p *Profiler) Profile(ctx context.Context, page Page) BannerProfile {
	profile := emptyProfile()

	container, selector, ok := p.locate(ctx, page)
	if !ok {
		return profile
	}

	profile.Selectors.Container = []string{selector}
	profile.Behavior = BannerBehavior{
		AppearsOn:       "load",
		HidesOnAccept:   true,
		HidesOnReject:   true,
		HidesOnSettings: false,
	}

	p.classifyButtons(ctx, container, &profile)
	p.analyzeCategories(ctx, container, &profile)

	p.logger.Debug("Banner profiled",
		"container", selector,
		"accept", len(profile.Selectors.Accept),
		"reject", len(profile.Selectors.Reject),
		"categories", len(profile.ConsentSettings.Categories),
	)

	return profile
}

// locate walks the container selectors in priority order and returns the
// first visible match. Hidden matches are skipped.
func (p *Profiler) locate(ctx context.Context, page Page) (Element, string, bool) {
	for _, selector := range p.banner.Containers {
		matches, err := page.QueryAll(ctx, selector)
		if err != nil {
			p.logger.Debug("Banner selector failed", "selector", selector, "error", err)
			continue
		}

		for _, el := range matches {
			if isShown(ctx, el) {
				return el, selector, true
			}
		}
	}
	return nil, "", false
}

func isShown(ctx context.Context, el Element) bool {
	v, err := el.Style(ctx)
	if err != nil {
		return false
	}
	return v.Shown()
}

// buttonBucket names the role a banner control was assigned to
type buttonBucket int

const (
	bucketNone buttonBucket = iota
	bucketAccept
	bucketReject
	bucketSettings
	bucketClose
)

// bucketFor assigns text to the first matching bucket in the order
// accept, reject, settings, close
func (p *Profiler) bucketFor(text string) buttonBucket {
	switch {
	case containsAny(text, p.buttons.Accept):
		return bucketAccept
	case containsAny(text, p.buttons.Reject):
		return bucketReject
	case containsAny(text, p.buttons.Settings):
		return bucketSettings
	case containsAny(text, p.buttons.Close):
		return bucketClose
	default:
		return bucketNone
	}
}

func (p *Profiler) classifyButtons(ctx context.Context, container Element, profile *BannerProfile) {
	controls, err := container.QueryAll(ctx, p.banner.Clickables)
	if err != nil {
		p.logger.Debug("Banner controls query failed", "error", err)
		return
	}

	for _, control := range controls {
		label, err := elementLabel(ctx, control)
		if err != nil || label == "" {
			continue
		}

		info, err := control.Describe(ctx)
		if err != nil {
			continue
		}
		selector := DeriveSelector(info)

		if profile.ConsentSettings.SaveButtonSelector == "" && containsAny(label, p.buttons.Save) {
			profile.ConsentSettings.SaveButtonSelector = selector
		}

		sel := &profile.Selectors
		switch p.bucketFor(label) {
		case bucketAccept:
			sel.Accept = appendUnique(sel.Accept, selector)
		case bucketReject:
			sel.Reject = appendUnique(sel.Reject, selector)
		case bucketSettings:
			sel.Settings = appendUnique(sel.Settings, selector)
		case bucketClose:
			sel.Close = appendUnique(sel.Close, selector)
		}
	}
}

func (p *Profiler) analyzeCategories(ctx context.Context, container Element, profile *BannerProfile) {
	if p.banner.Categories == "" {
		return
	}

	nodes, err := container.QueryAll(ctx, p.banner.Categories)
	if err != nil {
		p.logger.Debug("Category query failed", "error", err)
		return
	}

	settings := &profile.ConsentSettings
	for _, node := range nodes {
		category, ok := p.analyzeCategory(ctx, node)
		if !ok {
			continue
		}

		key := category.Name
		if key == "" {
			key = category.ToggleSelector
		}

		settings.Categories = append(settings.Categories, category)
		settings.DefaultState[key] = category.DefaultState
		settings.ToggleSelectors[key] = category.ToggleSelector
		if category.Required {
			settings.RequiredCategories = append(settings.RequiredCategories, key)
		}
	}
	settings.HasCategories = len(settings.Categories) > 0
}

// analyzeCategory reads one category control. The toggle is the element
// itself when it is a form control, otherwise its first toggle descendant.
func (p *Profiler) analyzeCategory(ctx context.Context, node Element) (CategoryProfile, bool) {
	text, err := node.Text(ctx)
	if err != nil {
		return CategoryProfile{}, false
	}
	name, description := splitCategoryText(text)

	nodeInfo, err := node.Describe(ctx)
	if err != nil {
		return CategoryProfile{}, false
	}

	toggleInfo := nodeInfo
	if !isToggle(nodeInfo) && p.banner.Toggles != "" {
		if toggles, err := node.QueryAll(ctx, p.banner.Toggles); err == nil && len(toggles) > 0 {
			if info, err := toggles[0].Describe(ctx); err == nil {
				toggleInfo = info
			}
		}
	}

	return CategoryProfile{
		Name:           name,
		Description:    description,
		Required:       nodeInfo.Disabled || nodeInfo.ReadOnly || toggleInfo.Disabled || toggleInfo.ReadOnly,
		DefaultState:   toggleInfo.Checked,
		ToggleSelector: DeriveSelector(toggleInfo),
	}, true
}

func isToggle(info ElementInfo) bool {
	return strings.EqualFold(info.Tag, "input")
}

// splitCategoryText takes the first non-empty line as the name and joins
// the remaining lines into the description
func splitCategoryText(text string) (string, string) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", ""
	}
	return lines[0], strings.Join(lines[1:], " ")
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
