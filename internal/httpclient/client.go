// Package httpclient is the browserless scan driver: it fetches a page over
// plain HTTP, keeps a public-suffix aware cookie jar and serves the parsed
// document as a consent.Session. Scripts never run, so only server-set
// cookies are seen.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/olegrjumin/cookieguard/internal/consent"
	"github.com/olegrjumin/cookieguard/internal/htmlpage"
)

// maxBodyBytes caps how much of a page is parsed
const maxBodyBytes = 5 << 20

var errNoDocument = errors.New("no document loaded")

// StatusError is returned when the page answers with a 4xx or 5xx status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Client opens static sessions sharing one connection pool
type Client struct {
	transport http.RoundTripper
	userAgent string
}

// NewClient creates a new static driver with the configured transport
func NewClient(userAgent string) *Client {
	if userAgent == "" {
		userAgent = "cookieguard/1.0"
	}
	return &Client{
		transport: NewTransport(),
		userAgent: userAgent,
	}
}

// Open starts a session with an empty cookie jar
func (c *Client) Open(ctx context.Context) (consent.Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	s := &Session{userAgent: c.userAgent, jar: jar}
	s.http = &http.Client{
		Jar: jar,
		Transport: &recordingTransport{
			base:   c.transport,
			record: s.record,
		},
	}
	return s, nil
}

// Session is one static page load
type Session struct {
	http      *http.Client
	jar       *cookiejar.Jar
	userAgent string

	mu       sync.Mutex
	page     *htmlpage.Page
	final    *url.URL
	observed []consent.RawCookie
}

var _ consent.Session = (*Session)(nil)

// record keeps the cookies one response set for its request host
func (s *Session) record(req *http.Request, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cookies {
		s.observed = append(s.observed, consent.FromHTTPCookie(c, req.URL.Hostname()))
	}
}

// Navigate fetches rawURL, following redirects, and parses the document
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.8")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	page, err := htmlpage.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("parse %s: %w", rawURL, err)
	}

	s.mu.Lock()
	s.page = page
	s.final = resp.Request.URL
	s.mu.Unlock()
	return nil
}

// Cookies returns the jar's cookies for the final URL. The jar only keeps
// names and values, so attributes are taken from the matching Set-Cookie.
func (s *Session) Cookies(ctx context.Context) ([]consent.RawCookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.final == nil {
		return []consent.RawCookie{}, nil
	}

	host := s.final.Hostname()
	out := make([]consent.RawCookie, 0)
	for _, c := range s.jar.Cookies(s.final) {
		raw := consent.RawCookie{Name: c.Name, Value: c.Value, Domain: host, Path: "/", Session: true}
		for i := len(s.observed) - 1; i >= 0; i-- {
			if o := s.observed[i]; o.Name == c.Name && o.Value == c.Value {
				raw = o
				break
			}
		}
		out = append(out, raw)
	}
	return out, nil
}

// ObservedCookies returns the Set-Cookie headers seen along the redirect chain
func (s *Session) ObservedCookies() []consent.RawCookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]consent.RawCookie(nil), s.observed...)
}

func (s *Session) current() (*htmlpage.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, errNoDocument
	}
	return s.page, nil
}

// QueryAll queries the fetched document; it fails before Navigate
func (s *Session) QueryAll(ctx context.Context, selector string) ([]consent.Element, error) {
	page, err := s.current()
	if err != nil {
		return nil, err
	}
	return page.QueryAll(ctx, selector)
}

// Content renders the fetched document
func (s *Session) Content(ctx context.Context) (string, error) {
	page, err := s.current()
	if err != nil {
		return "", err
	}
	return page.Content(ctx)
}

// Close forgets the document; connections stay pooled in the Client
func (s *Session) Close() error {
	s.mu.Lock()
	s.page = nil
	s.mu.Unlock()
	return nil
}
