package browser

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/olegrjumin/cookieguard/internal/consent"
	"github.com/olegrjumin/cookieguard/internal/logging"
)

// maxCookieURLs bounds the URL list sent with Network.getCookies
const maxCookieURLs = 200

// Session is one browser context serving a single scan
type Session struct {
	ctx     context.Context
	logger  *logging.Logger
	release func(failed bool)
	failed  bool

	closeOnce sync.Once

	mu       sync.Mutex
	requests map[network.RequestID]string
	urls     []string
	observed []consent.RawCookie
}

var _ consent.Session = (*Session)(nil)

func newSession(ctx context.Context, logger *logging.Logger) *Session {
	return &Session{
		ctx:      ctx,
		logger:   logger,
		requests: make(map[network.RequestID]string),
	}
}

// run executes actions on the tab, bounded by the caller's deadline and
// cancellation as well as the tab's lifetime
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithDeadline(opCtx, deadline)
		defer cancel()
	}

	opCtx, cancel := context.WithCancel(opCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// onEvent records request URLs and Set-Cookie headers
func (s *Session) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Request == nil {
			return
		}
		s.mu.Lock()
		if _, ok := s.requests[e.RequestID]; !ok && len(s.urls) < maxCookieURLs {
			s.urls = append(s.urls, e.Request.URL)
		}
		s.requests[e.RequestID] = e.Request.URL
		s.mu.Unlock()

	case *network.EventResponseReceivedExtraInfo:
		s.mu.Lock()
		defer s.mu.Unlock()

		host := ""
		if u, err := url.Parse(s.requests[e.RequestID]); err == nil {
			host = u.Hostname()
		}
		for name, value := range e.Headers {
			if !strings.EqualFold(name, "set-cookie") {
				continue
			}
			text, ok := value.(string)
			if !ok {
				continue
			}
			for _, line := range strings.Split(text, "\n") {
				if c, ok := consent.ParseSetCookie(line, host); ok {
					s.observed = append(s.observed, c)
				}
			}
		}
	}
}

// Navigate loads rawURL and waits for the body
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	err := s.run(ctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

// Cookies reads every cookie the context holds for the URLs it has loaded
func (s *Session) Cookies(ctx context.Context) ([]consent.RawCookie, error) {
	s.mu.Lock()
	urls := append([]string(nil), s.urls...)
	s.mu.Unlock()

	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		params := network.GetCookies()
		if len(urls) > 0 {
			params = params.WithURLs(urls)
		}
		cookies, err = params.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	out := make([]consent.RawCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, fromCDPCookie(c))
	}
	return out, nil
}

func fromCDPCookie(c *network.Cookie) consent.RawCookie {
	raw := consent.RawCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: string(c.SameSite),
		Session:  c.Session,
	}
	if !c.Session && c.Expires > 0 {
		sec, frac := math.Modf(c.Expires)
		exp := time.Unix(int64(sec), int64(frac*1e9)).UTC()
		raw.ExpiresAt = &exp
	}
	return raw
}

// ObservedCookies returns the Set-Cookie headers seen so far
func (s *Session) ObservedCookies() []consent.RawCookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]consent.RawCookie(nil), s.observed...)
}

// Content returns the live document markup
func (s *Session) Content(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return html, nil
}

// QueryAll returns all elements matching selector without waiting for them
func (s *Session) QueryAll(ctx context.Context, selector string) ([]consent.Element, error) {
	return s.queryAll(ctx, selector)
}

func (s *Session) queryAll(ctx context.Context, selector string, opts ...chromedp.QueryOption) ([]consent.Element, error) {
	var nodes []*cdp.Node
	opts = append([]chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}, opts...)
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	elements := make([]consent.Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &Element{session: s, node: n})
	}
	return elements, nil
}

// Close tears down the browser context and returns the process to the pool
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.release != nil {
			s.release(s.failed)
		}
	})
	return nil
}
