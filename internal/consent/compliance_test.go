package consent

import (
	"reflect"
	"testing"
)

func TestEvaluateEmptyTextFailsEverything(t *testing.T) {
	rules := DefaultRules()

	for _, list := range []Checklist{rules.GDPR, rules.EPrivacy, rules.TTDSG} {
		report := Evaluate("", list)

		if len(report.Violations) != len(list.Checks) {
			t.Errorf("%s: expected %d violations, got %d", list.Regime, len(list.Checks), len(report.Violations))
		}
		for i, check := range list.Checks {
			if report.Checks[check.Name] {
				t.Errorf("%s: check %s should be false", list.Regime, check.Name)
			}
			if report.Violations[i] != check.Name {
				t.Errorf("%s: violation %d = %s, want %s", list.Regime, i, report.Violations[i], check.Name)
			}
		}
		if !report.Required {
			t.Errorf("%s: expected regime to be required", list.Regime)
		}
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	rules := DefaultRules()
	text := `<div id="cookie-banner">Wir nutzen Cookies zu Analyse-Zwecken.
		<a href="/datenschutz">Datenschutzerklärung</a>
		<button>Alle akzeptieren</button><button>Einstellungen</button></div>`

	first := EvaluateAll(text, rules)
	for i := 0; i < 5; i++ {
		again := EvaluateAll(text, rules)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("evaluation %d differs:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}

func TestViolationsFollowChecklistOrder(t *testing.T) {
	list := Checklist{
		Regime:   "test",
		Required: true,
		Checks: []Check{
			{Name: "alpha", Keywords: []string{"alpha"}},
			{Name: "bravo", Keywords: []string{"bravo"}},
			{Name: "charlie", Keywords: []string{"charlie"}},
			{Name: "delta", Keywords: []string{"delta"}},
			{Name: "echo", Keywords: []string{"echo"}},
		},
	}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none present", "nothing here", []string{"alpha", "bravo", "charlie", "delta", "echo"}},
		{"all present", "echo delta charlie bravo alpha", []string{}},
		{"odd ones present", "ALPHA charlie Echo", []string{"bravo", "delta"}},
		{"even ones present", "delta bravo", []string{"alpha", "charlie", "echo"}},
		{"substring match", "alphabet", []string{"bravo", "charlie", "delta", "echo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Evaluate(tt.text, list)
			if !reflect.DeepEqual(report.Violations, tt.want) {
				t.Errorf("violations = %v, want %v", report.Violations, tt.want)
			}

			// violations are exactly the false checks
			for name, ok := range report.Checks {
				if ok == contains(report.Violations, name) {
					t.Errorf("check %s = %v disagrees with violations %v", name, ok, report.Violations)
				}
			}
		})
	}
}

func TestEvaluateGermanBanner(t *testing.T) {
	rules := DefaultRules()
	text := "Wir verwenden Cookies. Mit Klick auf Akzeptieren erteilen Sie Ihre Einwilligung. " +
		"Sie können ablehnen oder die Einstellungen anpassen. Mehr in der Datenschutzerklärung."

	c := EvaluateAll(text, rules)

	for _, name := range []string{"hasConsent", "hasReject", "hasSettings", "hasInfo"} {
		if !c.GDPR.Checks[name] {
			t.Errorf("gdpr %s should pass", name)
		}
	}
	for _, name := range []string{"hasPurpose", "hasDuration", "isVisible", "hasCloseButton"} {
		if c.GDPR.Checks[name] {
			t.Errorf("gdpr %s should fail", name)
		}
	}
	for _, name := range []string{"hasGermanInfo", "hasGermanSettings", "hasGermanButtons", "hasGermanPrivacy"} {
		if !c.TTDSG.Checks[name] {
			t.Errorf("ttdsg %s should pass", name)
		}
	}
	if !c.EPrivacy.Checks["hasCookieInfo"] || !c.EPrivacy.Checks["hasOptOut"] {
		t.Errorf("eprivacy cookie info and opt-out should pass: %v", c.EPrivacy.Checks)
	}
}

func TestViolationsTreatsMissingChecksAsFailed(t *testing.T) {
	list := Checklist{Checks: []Check{{Name: "a"}, {Name: "b"}}}

	got := Violations(map[string]bool{"b": true}, list)
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Violations = %v, want [a]", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
