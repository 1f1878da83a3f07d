package consent

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Check is one named compliance requirement satisfied by any of its keywords
type Check struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Checklist is the ordered set of checks for one regime.
// Order matters: violations are reported in this order.
type Checklist struct {
	Regime   string  `yaml:"regime"`
	Required bool    `yaml:"required"`
	Checks   []Check `yaml:"checks"`
}

// CookieRules holds the substring patterns used by the classifier
type CookieRules struct {
	// Tracking is matched against name and domain
	Tracking []string `yaml:"tracking"`
	// Analytics is matched against name only
	Analytics []string `yaml:"analytics"`
}

// BannerRules controls where the profiler looks
type BannerRules struct {
	Containers []string `yaml:"containers"`
	Clickables string   `yaml:"clickables"`
	Categories string   `yaml:"categories"`
	Toggles    string   `yaml:"toggles"`
	Snapshot   string   `yaml:"snapshot"`
}

// ButtonRules buckets banner controls by their text
type ButtonRules struct {
	Accept   []string `yaml:"accept"`
	Reject   []string `yaml:"reject"`
	Settings []string `yaml:"settings"`
	Close    []string `yaml:"close"`
	Save     []string `yaml:"save"`
}

// InteractionRules drive the accept-then-reject click
type InteractionRules struct {
	Clickables string   `yaml:"clickables"`
	Accept     []string `yaml:"accept"`
	Reject     []string `yaml:"reject"`
}

// AutomationRules describe the class-pattern click plan and its retry policy
type AutomationRules struct {
	Accept       string            `yaml:"accept"`
	Reject       string            `yaml:"reject"`
	Essential    string            `yaml:"essential"`
	Settings     string            `yaml:"settings"`
	RetryCount   int               `yaml:"retryCount"`
	RetryDelayMs int               `yaml:"retryDelayMs"`
	Fallback     map[string]string `yaml:"fallback"`
}

// Rules is the complete keyword and selector configuration of the engine
type Rules struct {
	Cookies     CookieRules      `yaml:"cookies"`
	Banner      BannerRules      `yaml:"banner"`
	Buttons     ButtonRules      `yaml:"buttons"`
	Interaction InteractionRules `yaml:"interaction"`
	Automation  AutomationRules  `yaml:"automation"`
	GDPR        Checklist        `yaml:"gdpr"`
	EPrivacy    Checklist        `yaml:"eprivacy"`
	TTDSG       Checklist        `yaml:"ttdsg"`
}

// DefaultRules returns the built-in rule set
func DefaultRules() Rules {
	return Rules{
		Cookies: CookieRules{
			Tracking:  []string{"_ga", "_gid", "fbp", "fr", "_gcl", "doubleclick", "adservice", "adsense"},
			Analytics: []string{"matomo", "mp_", "mixpanel", "segment", "amplitude"},
		},
		Banner: BannerRules{
			Containers: []string{
				// Consent management platforms first
				"#onetrust-consent-sdk",
				".onetrust-pc-dark-filter",
				".ot-sdk-container",
				"#onetrust-banner-sdk",
				"#usercentrics-cmp",
				".uc-banner",
				".usercentrics-dialog",
				"#CybotCookiebotDialog",
				"#Cookiebot",
				".cookiebot-banner",
				"#sp-cc",
				".sp-cc-banner",
				".sp-message-container",
				// Generic fallbacks
				`[id*="cookie"]`,
				`[class*="cookie"]`,
				`[id*="consent"]`,
				`[class*="consent"]`,
				`[aria-label*="cookie"]`,
				`[aria-label*="Cookie"]`,
				".gdpr-banner",
				".privacy-banner",
				".cookie-notice",
				".cookie-bar",
			},
			Clickables: `button, a, [role="button"]`,
			Categories: `[class*="category"], [class*="preference"]`,
			Toggles:    `input[type="checkbox"], input[type="radio"], [role="switch"]`,
			Snapshot:   `[class*="cookie"], [id*="cookie"], [class*="consent"], [id*="consent"]`,
		},
		Buttons: ButtonRules{
			Accept:   []string{"akzeptieren", "accept", "allow", "agree", "zustimmen"},
			Reject:   []string{"ablehnen", "reject", "decline", "verweigern"},
			Settings: []string{"einstellungen", "settings", "preferences", "präferenzen"},
			Close:    []string{"schließen", "close"},
			Save:     []string{"speichern", "save", "auswahl bestätigen", "confirm"},
		},
		Interaction: InteractionRules{
			Clickables: `button, a, [role="button"], input[type="button"], input[type="submit"]`,
			Accept:     []string{"akzeptieren", "alle akzeptieren", "accept", "allow", "zustimmen", "agree"},
			Reject:     []string{"ablehnen", "alle ablehnen", "reject", "decline", "nicht akzeptieren", "verweigern"},
		},
		Automation: AutomationRules{
			Accept:       `[class*="accept"], [class*="allow"]`,
			Reject:       `[class*="reject"], [class*="deny"]`,
			Essential:    `[class*="essential"], [class*="necessary"]`,
			Settings:     `[class*="settings"], [class*="preferences"]`,
			RetryCount:   3,
			RetryDelayMs: 1000,
			Fallback: map[string]string{
				string(ActionAccept):   string(ActionReject),
				string(ActionReject):   string(ActionSettings),
				string(ActionSettings): string(ActionClose),
			},
		},
		GDPR: Checklist{
			Regime:   "gdpr",
			Required: true,
			Checks: []Check{
				{Name: "hasConsent", Keywords: []string{"einwilligung", "consent", "zustimmung", "akzeptieren"}},
				{Name: "hasReject", Keywords: []string{"ablehnen", "reject", "verweigern", "nicht akzeptieren"}},
				{Name: "hasSettings", Keywords: []string{"einstellungen", "settings", "präferenzen", "auswahl"}},
				{Name: "hasInfo", Keywords: []string{"datenschutz", "privacy", "cookies", "tracking"}},
				{Name: "hasPurpose", Keywords: []string{"zweck", "purpose", "verwendung", "nutzung"}},
				{Name: "hasDuration", Keywords: []string{"dauer", "duration", "zeitraum", "speicherdauer"}},
				{Name: "hasThirdParty", Keywords: []string{"drittanbieter", "third party", "partner", "dienstleister"}},
				{Name: "hasWithdraw", Keywords: []string{"widerruf", "withdraw", "zurückziehen", "ändern"}},
				// Presentation checks have no reliable text signal; they stay
				// unsatisfied unless a rules file supplies keywords.
				{Name: "isVisible"},
				{Name: "isAccessible"},
				{Name: "hasContrast"},
				{Name: "hasReadableFont"},
				{Name: "noPreTicked"},
				{Name: "noForcedAccept"},
				{Name: "hasSaveButton"},
				{Name: "hasCloseButton"},
			},
		},
		EPrivacy: Checklist{
			Regime:   "eprivacy",
			Required: true,
			Checks: []Check{
				{Name: "hasCookieInfo", Keywords: []string{"cookie", "cookies", "browser-storage", "speicherung"}},
				{Name: "hasTrackingInfo", Keywords: []string{"tracking", "verfolgung", "analyse", "statistik"}},
				{Name: "hasOptOut", Keywords: []string{"opt-out", "ablehnen", "deaktivieren", "ausschalten"}},
				{Name: "hasStorageInfo", Keywords: []string{"speicherung", "storage", "speichern", "save"}},
			},
		},
		TTDSG: Checklist{
			Regime:   "ttdsg",
			Required: true,
			Checks: []Check{
				{Name: "hasGermanInfo", Keywords: []string{"datenschutz", "cookies", "einwilligung", "zustimmung"}},
				{Name: "hasGermanSettings", Keywords: []string{"einstellungen", "präferenzen", "auswahl", "anpassen"}},
				{Name: "hasGermanButtons", Keywords: []string{"akzeptieren", "ablehnen", "einstellungen", "speichern"}},
				{Name: "hasGermanPrivacy", Keywords: []string{"datenschutzerklärung", "datenschutzrichtlinie", "datenschutzbestimmungen"}},
			},
		},
	}
}

// LoadRules reads a YAML rules file and overlays it on DefaultRules.
// Sections missing from the file keep their defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules file: %w", err)
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("rules file %s: %w", path, err)
	}

	return rules, nil
}

// Validate reports configuration that would make the engine misbehave
func (r Rules) Validate() error {
	var errs []error

	if len(r.Banner.Containers) == 0 {
		errs = append(errs, errors.New("banner.containers must not be empty"))
	}
	if strings.TrimSpace(r.Interaction.Clickables) == "" {
		errs = append(errs, errors.New("interaction.clickables must not be empty"))
	}
	if r.Automation.RetryCount < 1 {
		errs = append(errs, errors.New("automation.retryCount must be at least 1"))
	}

	for _, list := range []Checklist{r.GDPR, r.EPrivacy, r.TTDSG} {
		seen := make(map[string]bool, len(list.Checks))
		for _, c := range list.Checks {
			if c.Name == "" {
				errs = append(errs, fmt.Errorf("%s: check without name", list.Regime))
				continue
			}
			if seen[c.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate check %q", list.Regime, c.Name))
			}
			seen[c.Name] = true
		}
	}

	return errors.Join(errs...)
}
