package consent

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock supplies the scan timestamp
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// AggregateInput is everything a scan collected about one page
type AggregateInput struct {
	Domain           string
	URL              string
	Cookies          []Cookie
	Banner           BannerProfile
	Interaction      Outcome
	Automation       AutomationPlan
	Compliance       Compliance
	Scripts          []ScriptReference
	PrivacyPolicyURL string
	BannerHTML       string
}

// Aggregator assembles Evaluations
type Aggregator struct {
	clock Clock
	newID func() string
}

// NewAggregator creates an aggregator stamping evaluations with clock
func NewAggregator(clock Clock) *Aggregator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Aggregator{
		clock: clock,
		newID: func() string { return uuid.NewString() },
	}
}

// Aggregate builds the final Evaluation. The overall rating is the worst
// cookie category and the timestamp is taken now, not at crawl start.
func (a *Aggregator) Aggregate(in AggregateInput) Evaluation {
	ratings := make([]Rating, 0, len(in.Cookies))
	for _, c := range in.Cookies {
		ratings = append(ratings, c.Category)
	}
	overall := MergeRatings(ratings)

	cookies := append(make([]Cookie, 0, len(in.Cookies)), in.Cookies...)
	scripts := append(make([]ScriptReference, 0, len(in.Scripts)), in.Scripts...)

	return Evaluation{
		ID:               a.newID(),
		Domain:           in.Domain,
		URL:              in.URL,
		ScanTimestamp:    a.clock.Now(),
		OverallRating:    overall,
		Explanation:      Explain(overall),
		Cookies:          cookies,
		BannerHTML:       optional(in.BannerHTML),
		PrivacyPolicyURL: optional(in.PrivacyPolicyURL),
		Scripts:          scripts,
		Compliance:       in.Compliance,
		Banner:           in.Banner,
		Interaction:      in.Interaction,
		Automation:       in.Automation,
	}
}

// Explain renders the explanation line for a rating,
// e.g. "RED – Tracker-Cookies entdeckt."
func Explain(r Rating) string {
	clause := "Analyse/Essentials"
	if r == RatingRed {
		clause = "Tracker"
	}
	return fmt.Sprintf("%s – %s-Cookies entdeckt.", strings.ToUpper(string(r)), clause)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
