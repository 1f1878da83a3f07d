package service

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Target is a normalized scan target
type Target struct {
	Domain string // host[:port], lower-case, the storage key
	URL    string // page to load
}

// NormalizeDomain turns user input ("Example.com", "https://example.com/path")
// into the lower-case host used as the evaluation key
func NormalizeDomain(input string) (string, error) {
	t, err := ParseTarget(input)
	if err != nil {
		return "", err
	}
	return t.Domain, nil
}

// ParseTarget validates input and derives the URL to scan. Inputs without
// a scheme are loaded over https. The fragment is dropped.
func ParseTarget(input string) (Target, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Target{}, fmt.Errorf("%w: empty", ErrInvalidDomain)
	}

	scheme := "https"
	if i := strings.Index(raw, "://"); i >= 0 {
		scheme = strings.ToLower(raw[:i])
		raw = raw[i+3:]
	}
	if scheme != "http" && scheme != "https" {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDomain, scheme)
	}

	u, err := url.Parse(scheme + "://" + raw)
	if err != nil || u.Host == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidDomain, input)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if !isLocalHost(host) {
		if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
			return Target{}, fmt.Errorf("%w: %q: %v", ErrInvalidDomain, input, err)
		}
	}

	domain := host
	if port := u.Port(); port != "" {
		domain = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		domain = "[" + host + "]"
	}

	// path and query are loaded as given; the key is the host only
	page := scheme + "://" + domain
	if u.Path != "" || u.RawQuery != "" {
		page += u.RequestURI()
	}
	return Target{Domain: domain, URL: page}, nil
}

func isLocalHost(host string) bool {
	return host == "localhost" || net.ParseIP(host) != nil
}
