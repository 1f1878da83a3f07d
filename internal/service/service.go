package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/olegrjumin/cookieguard/internal/consent"
	"github.com/olegrjumin/cookieguard/internal/htmldoc"
	"github.com/olegrjumin/cookieguard/internal/logging"
	"github.com/olegrjumin/cookieguard/internal/metrics"
	"github.com/olegrjumin/cookieguard/internal/store"
)

// Opener hands out isolated page sessions, one per scan
type Opener interface {
	Open(ctx context.Context) (consent.Session, error)
}

// ScanOptions tunes the timing of one scan
type ScanOptions struct {
	NavTimeout  time.Duration
	BannerWait  time.Duration
	SettleDelay time.Duration
}

// Service provides the business logic layer for consent scans
// It sits between the transport layers and the consent engine
type Service struct {
	engine  atomic.Pointer[consent.Engine]
	browser Opener
	store   store.Store
	metrics *metrics.Collector
	logger  *logging.Logger
	options ScanOptions
	clock   consent.Clock
}

// New creates a new Service instance. metrics may be nil.
func New(rules consent.Rules, browser Opener, st store.Store, m *metrics.Collector, logger *logging.Logger, opts ScanOptions) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 45 * time.Second
	}
	s := &Service{
		browser: browser,
		store:   st,
		metrics: m,
		logger:  logger.With("component", "service"),
		options: opts,
		clock:   consent.SystemClock{},
	}
	s.SetRules(rules)
	return s
}

// SetRules swaps the rule set; scans already running keep their engine
func (s *Service) SetRules(rules consent.Rules) {
	s.engine.Store(consent.NewEngine(rules, s.clock, s.logger))
}

// Engine returns the current engine
func (s *Service) Engine() *consent.Engine {
	return s.engine.Load()
}

// Latest returns the newest stored evaluation of domain
func (s *Service) Latest(ctx context.Context, domain string) (*consent.Evaluation, error) {
	key, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	return s.store.Latest(ctx, key)
}

// History returns stored evaluations of domain, newest first
func (s *Service) History(ctx context.Context, domain string, limit int) ([]consent.Evaluation, error) {
	key, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	return s.store.History(ctx, key, limit)
}

// Scan evaluates one domain and stores the result
// This is the main entry point for the scanning use case
func (s *Service) Scan(ctx context.Context, domain string, opts *ScanOptions) (*consent.Evaluation, error) {
	start := time.Now()
	finalOpts := s.mergeOptions(opts)

	target, err := ParseTarget(domain)
	if err != nil {
		se := &ScanError{Domain: domain, Stage: StageInput, Kind: ErrorInvalidURL, Err: err}
		s.recordFailure(se, start)
		return nil, se
	}

	s.logger.Info("Scanning domain", "domain", target.Domain, "url", target.URL)

	ev, err := s.scan(ctx, target, finalOpts)
	if err == nil {
		if storeErr := s.store.Create(ctx, ev); storeErr != nil {
			err = &ScanError{Domain: target.Domain, Stage: StageStore, Kind: ErrorStore, Err: storeErr}
		}
	}
	if err != nil {
		s.recordFailure(err, start)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ScanFinished(string(ev.OverallRating), time.Since(start))
	}
	s.logger.Info("Scan completed",
		"domain", ev.Domain,
		"rating", ev.OverallRating,
		"cookies", len(ev.Cookies),
		"banner", ev.Banner.Detected(),
		"action", ev.Interaction.Action,
		"total_ms", time.Since(start).Milliseconds(),
	)
	return ev, nil
}

func (s *Service) recordFailure(err error, start time.Time) {
	var se *ScanError
	if !errors.As(err, &se) {
		se = &ScanError{Stage: "unknown", Kind: ErrorNetwork, Err: err}
	}
	if s.metrics != nil {
		s.metrics.ScanFinished(se.Kind, time.Since(start))
	}
	s.logger.Error("Scan failed",
		"domain", se.Domain,
		"stage", se.Stage,
		"error_type", se.Kind,
		"error", se.Err,
	)
}

// mergeOptions merges provided options with service defaults
// If opts is nil, returns service defaults
func (s *Service) mergeOptions(opts *ScanOptions) ScanOptions {
	if opts == nil {
		return s.options
	}

	merged := s.options
	if opts.NavTimeout > 0 {
		merged.NavTimeout = opts.NavTimeout
	}
	if opts.BannerWait > 0 {
		merged.BannerWait = opts.BannerWait
	}
	if opts.SettleDelay > 0 {
		merged.SettleDelay = opts.SettleDelay
	}
	return merged
}

// scan runs the page pipeline: load, first cookie read, banner profile and
// interaction, settle, second cookie read, then classification and
// aggregation
func (s *Service) scan(ctx context.Context, target Target, opts ScanOptions) (*consent.Evaluation, error) {
	engine := s.Engine()
	fail := func(stage, kind string, err error) error {
		return &ScanError{Domain: target.Domain, Stage: stage, Kind: kind, Err: err}
	}

	session, err := s.browser.Open(ctx)
	if err != nil {
		return nil, fail(StageOpen, ErrorBrowser, err)
	}
	defer session.Close()

	navCtx, cancel := context.WithTimeout(ctx, opts.NavTimeout)
	err = session.Navigate(navCtx, target.URL)
	cancel()
	if err != nil {
		kind, _ := ClassifyError(err)
		return nil, fail(StageNavigate, kind, err)
	}

	if err := wait(ctx, opts.BannerWait); err != nil {
		return nil, fail(StageNavigate, ErrorTimeout, err)
	}

	before, err := session.Cookies(ctx)
	if err != nil {
		return nil, fail(StageCookies, ErrorBrowser, err)
	}

	bannerHTML := s.snapshot(ctx, session, engine.Rules.Banner.Snapshot)
	profile := engine.Profiler.Profile(ctx, session)
	plan := engine.Sequencer.Plan(ctx, session)
	outcome := engine.Sequencer.Resolve(ctx, session)
	if outcome.Action == consent.ActionNone && profile.Detected() {
		// no labelled control; try the class-pattern plan with retries
		fallback := engine.Sequencer.Perform(ctx, session, profile, consent.ActionAccept)
		switch {
		case fallback.Resolved():
			s.logger.Debug("Banner resolved by class pattern", "domain", target.Domain, "selector", fallback.Selector)
			outcome = fallback
		case fallback.Succeeded:
			outcome.Attempted = true
			outcome.Selector = fallback.Selector
			outcome.Reason = fmt.Sprintf("class pattern reached %s without resolving consent", fallback.Action)
		}
	}
	if s.metrics != nil {
		s.metrics.Interaction(string(outcome.Action), outcome.Succeeded)
	}

	if err := wait(ctx, opts.SettleDelay); err != nil {
		return nil, fail(StageCookies, ErrorTimeout, err)
	}

	after, err := session.Cookies(ctx)
	if err != nil {
		return nil, fail(StageCookies, ErrorBrowser, err)
	}

	content, err := session.Content(ctx)
	if err != nil {
		s.logger.Warn("Reading page content failed", "domain", target.Domain, "error", err)
	}

	doc := &htmldoc.Document{}
	if parser, err := htmldoc.NewParser(target.URL); err == nil {
		if parsed, err := parser.ParseString(content); err == nil {
			doc = parsed
		}
	}

	raw := consent.MergeCookies(after, before, session.ObservedCookies())
	cookies := make([]consent.Cookie, 0, len(raw))
	for _, c := range raw {
		classified := engine.Classifier.ClassifyCookie(c, target.Domain)
		if s.metrics != nil {
			s.metrics.CookieClassified(string(classified.Category))
		}
		cookies = append(cookies, classified)
	}

	ev := engine.Aggregator.Aggregate(consent.AggregateInput{
		Domain:           target.Domain,
		URL:              target.URL,
		Cookies:          cookies,
		Banner:           profile,
		Interaction:      outcome,
		Automation:       plan,
		Compliance:       engine.Evaluate(content),
		Scripts:          doc.Scripts,
		PrivacyPolicyURL: doc.PrivacyPolicyURL,
		BannerHTML:       bannerHTML,
	})
	return &ev, nil
}

// snapshot returns the markup of the first cookie or consent element
func (s *Service) snapshot(ctx context.Context, page consent.Page, selector string) string {
	if selector == "" {
		return ""
	}
	elements, err := page.QueryAll(ctx, selector)
	if err != nil || len(elements) == 0 {
		return ""
	}
	html, err := elements[0].OuterHTML(ctx)
	if err != nil {
		return ""
	}
	return html
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
