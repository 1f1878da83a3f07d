package consent

import "strings"

// Evaluate runs one checklist against page text. A check passes when the
// lower-cased text contains any of its keywords. Empty text fails every check.
func Evaluate(text string, list Checklist) ComplianceReport {
	lowered := strings.ToLower(text)

	report := ComplianceReport{
		Required:   list.Required,
		Checks:     make(map[string]bool, len(list.Checks)),
		Violations: make([]string, 0),
	}

	for _, check := range list.Checks {
		report.Checks[check.Name] = containsAny(lowered, check.Keywords)
	}

	report.Violations = Violations(report.Checks, list)
	return report
}

// Violations lists the failed checks in checklist order.
// Checks missing from the map count as failed.
func Violations(checks map[string]bool, list Checklist) []string {
	out := make([]string, 0)
	for _, check := range list.Checks {
		if !checks[check.Name] {
			out = append(out, check.Name)
		}
	}
	return out
}

// EvaluateAll runs the GDPR, ePrivacy and TTDSG checklists
func EvaluateAll(text string, rules Rules) Compliance {
	return Compliance{
		GDPR:     Evaluate(text, rules.GDPR),
		EPrivacy: Evaluate(text, rules.EPrivacy),
		TTDSG:    Evaluate(text, rules.TTDSG),
	}
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	for _, k := range keywords {
		if k != "" && strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
