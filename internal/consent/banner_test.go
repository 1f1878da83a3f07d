package consent_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/olegrjumin/cookieguard/internal/consent"
	"github.com/olegrjumin/cookieguard/internal/htmlpage"
)

func mustPage(t *testing.T, content string) *htmlpage.Page {
	t.Helper()
	page, err := htmlpage.ParseString(content)
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}
	return page
}

func newProfiler() *consent.Profiler {
	return consent.NewProfiler(consent.DefaultRules(), nil)
}

func TestProfileHiddenBannerIsNotDetected(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
	}{
		{
			"display none",
			`<html><body><div id="cookie-banner" style="display:none">
				<p>We use cookies</p><button>Accept all</button></div></body></html>`,
		},
		{
			"visibility hidden",
			`<html><body><div class="consent-layer" style="visibility: hidden">
				<button>Akzeptieren</button></div></body></html>`,
		},
		{
			"zero opacity",
			`<html><body><div id="CybotCookiebotDialog" style="opacity:0">
				<button>Allow all</button></div></body></html>`,
		},
		{
			"hidden attribute on parent",
			`<html><body><section hidden><div class="cookie-notice">
				<a href="#">Close</a></div></section></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := newProfiler().Profile(context.Background(), mustPage(t, tt.fixture))

			if len(profile.Selectors.Container) != 0 {
				t.Errorf("expected empty container set, got %v", profile.Selectors.Container)
			}
			if profile.Detected() {
				t.Errorf("hidden banner must not be detected")
			}
			if profile.Behavior.AppearsOn != "unknown" {
				t.Errorf("expected unknown behavior, got %q", profile.Behavior.AppearsOn)
			}
			if len(profile.Selectors.Accept) != 0 {
				t.Errorf("expected no accept selectors, got %v", profile.Selectors.Accept)
			}
		})
	}
}

func TestProfileNoBanner(t *testing.T) {
	page := mustPage(t, `<html><body><h1>Welcome</h1><button>Buy now</button></body></html>`)

	profile := newProfiler().Profile(context.Background(), page)

	if profile.Detected() {
		t.Fatalf("expected no banner, got %v", profile.Selectors.Container)
	}
	if profile.ConsentSettings.HasCategories {
		t.Errorf("expected no categories")
	}
}

func TestProfileClassifiesButtons(t *testing.T) {
	page := mustPage(t, `<html><body>
		<div id="onetrust-banner-sdk">
			<p>Wir verwenden Cookies.</p>
			<button id="onetrust-accept-btn-handler">Alle akzeptieren</button>
			<button class="ot-reject btn">Alle ablehnen</button>
			<a role="button" class="ot-settings">Einstellungen</a>
			<button>Schließen</button>
			<button class="ambiguous">Accept or reject</button>
			<button class="noise">Mehr erfahren</button>
		</div>
	</body></html>`)

	profile := newProfiler().Profile(context.Background(), page)

	want := consent.BannerSelectors{
		Container: []string{"#onetrust-banner-sdk"},
		Accept:    []string{"#onetrust-accept-btn-handler", ".ambiguous"},
		Reject:    []string{".ot-reject.btn"},
		Settings:  []string{".ot-settings"},
		Close:     []string{"button"},
	}
	if !reflect.DeepEqual(profile.Selectors, want) {
		t.Errorf("selectors = %+v\nwant %+v", profile.Selectors, want)
	}

	if profile.Behavior.AppearsOn != "load" || !profile.Behavior.HidesOnAccept || !profile.Behavior.HidesOnReject || profile.Behavior.HidesOnSettings {
		t.Errorf("unexpected behavior: %+v", profile.Behavior)
	}
}

func TestProfileHonoursSelectorPriority(t *testing.T) {
	// The generic match comes first in the document, the vendor container wins
	page := mustPage(t, `<html><body>
		<div class="cookie-hint">Cookie hint</div>
		<div id="usercentrics-cmp"><button>OK, accept</button></div>
	</body></html>`)

	profile := newProfiler().Profile(context.Background(), page)

	if !reflect.DeepEqual(profile.Selectors.Container, []string{"#usercentrics-cmp"}) {
		t.Errorf("container = %v, want [#usercentrics-cmp]", profile.Selectors.Container)
	}
}

func TestProfileSkipsHiddenCandidate(t *testing.T) {
	page := mustPage(t, `<html><body>
		<div id="onetrust-consent-sdk" style="display:none"><button>Accept</button></div>
		<div class="cookie-bar"><button>Accept</button></div>
	</body></html>`)

	profile := newProfiler().Profile(context.Background(), page)

	if !reflect.DeepEqual(profile.Selectors.Container, []string{`[class*="cookie"]`}) {
		t.Errorf("container = %v, want the generic cookie class match", profile.Selectors.Container)
	}
}

func TestProfileCategories(t *testing.T) {
	page := mustPage(t, `<html><body>
		<div id="cookie-settings">
			<div class="category-item">
				<label>Notwendig</label>
				<p>Für den Betrieb der Seite erforderlich.</p>
				<input type="checkbox" id="cat-necessary" checked disabled>
			</div>
			<div class="category-item">
				<label>Marketing</label>
				<p>Personalisierte Werbung.</p>
				<p>Von Drittanbietern.</p>
				<input type="checkbox" class="toggle marketing">
			</div>
			<button class="save">Auswahl speichern</button>
		</div>
	</body></html>`)

	profile := newProfiler().Profile(context.Background(), page)
	settings := profile.ConsentSettings

	if !settings.HasCategories {
		t.Fatal("expected categories to be detected")
	}

	want := []consent.CategoryProfile{
		{
			Name:           "Notwendig",
			Description:    "Für den Betrieb der Seite erforderlich.",
			Required:       true,
			DefaultState:   true,
			ToggleSelector: "#cat-necessary",
		},
		{
			Name:           "Marketing",
			Description:    "Personalisierte Werbung. Von Drittanbietern.",
			Required:       false,
			DefaultState:   false,
			ToggleSelector: ".toggle.marketing",
		},
	}
	if !reflect.DeepEqual(settings.Categories, want) {
		t.Errorf("categories = %+v\nwant %+v", settings.Categories, want)
	}

	if !reflect.DeepEqual(settings.RequiredCategories, []string{"Notwendig"}) {
		t.Errorf("required categories = %v", settings.RequiredCategories)
	}
	if !settings.DefaultState["Notwendig"] || settings.DefaultState["Marketing"] {
		t.Errorf("default state = %v", settings.DefaultState)
	}
	if settings.ToggleSelectors["Marketing"] != ".toggle.marketing" {
		t.Errorf("toggle selectors = %v", settings.ToggleSelectors)
	}
	if settings.SaveButtonSelector != ".save" {
		t.Errorf("save button = %q, want .save", settings.SaveButtonSelector)
	}
}

func TestDeriveSelector(t *testing.T) {
	tests := []struct {
		name string
		info consent.ElementInfo
		want string
	}{
		{"id wins", consent.ElementInfo{Tag: "button", ID: "accept", Classes: []string{"btn"}}, "#accept"},
		{"class list", consent.ElementInfo{Tag: "button", Classes: []string{"btn", "btn-primary"}}, ".btn.btn-primary"},
		{"blank classes ignored", consent.ElementInfo{Tag: "A", Classes: []string{" ", ""}}, "a"},
		{"tag fallback", consent.ElementInfo{Tag: "BUTTON"}, "button"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := consent.DeriveSelector(tt.info); got != tt.want {
				t.Errorf("DeriveSelector() = %q, want %q", got, tt.want)
			}
		})
	}
}
