package consent

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Classification is the category and purpose assigned to a cookie
type Classification struct {
	Category Rating `json:"category"`
	Purpose  string `json:"purpose"`
}

// Classifier maps cookies to risk categories.
// It holds only compiled patterns and is safe for concurrent use.
type Classifier struct {
	tracking  *regexp.Regexp
	analytics *regexp.Regexp
}

// NewClassifier compiles the cookie patterns into matchers
func NewClassifier(rules CookieRules) *Classifier {
	return &Classifier{
		tracking:  compileAny(rules.Tracking),
		analytics: compileAny(rules.Analytics),
	}
}

// compileAny builds a case-insensitive alternation of literal substrings.
// An empty list yields nil, which never matches.
func compileAny(patterns []string) *regexp.Regexp {
	quoted := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = normalize(p); p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`)
}

// normalize folds compatibility forms and case before matching
func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(s)))
}

func matches(re *regexp.Regexp, s string) bool {
	return re != nil && re.MatchString(s)
}

// Classify rates a cookie by name and domain. First match wins:
// tracking (name or domain) is red, analytics (name) is yellow,
// everything else is green.
func (c *Classifier) Classify(name, domain string) Classification {
	name = normalize(name)
	domain = normalize(domain)

	if matches(c.tracking, name) || matches(c.tracking, domain) {
		return Classification{Category: RatingRed, Purpose: PurposeTracking}
	}

	if matches(c.analytics, name) {
		return Classification{Category: RatingYellow, Purpose: PurposeAnalytics}
	}

	return Classification{Category: RatingGreen, Purpose: PurposeEssential}
}

// ClassifyCookie classifies a captured cookie and builds its final record.
// fallbackDomain is used when the cookie carries no domain of its own.
func (c *Classifier) ClassifyCookie(raw RawCookie, fallbackDomain string) Cookie {
	domain := raw.Domain
	if domain == "" {
		domain = fallbackDomain
	}

	cls := c.Classify(raw.Name, domain)

	return Cookie{
		Name:      raw.Name,
		Domain:    domain,
		Path:      raw.Path,
		ExpiresAt: raw.ExpiresAt,
		HTTPOnly:  raw.HTTPOnly,
		Secure:    raw.Secure,
		SameSite:  raw.SameSite,
		SizeBytes: len(raw.Name) + len(raw.Value),
		Category:  cls.Category,
		Purpose:   cls.Purpose,
	}
}

// MergeRatings returns the worst rating in the list; an empty list is green
func MergeRatings(ratings []Rating) Rating {
	worst := RatingGreen
	for _, r := range ratings {
		if r.severity() > worst.severity() {
			worst = r
		}
	}
	return worst
}
