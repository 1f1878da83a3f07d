package consent

import (
	"net/http"
	"strings"
	"time"
)

// ParseSetCookie reads one Set-Cookie header line. Cookies without a Domain
// attribute belong to host. ok is false for malformed lines.
func ParseSetCookie(line, host string) (RawCookie, bool) {
	c, err := http.ParseSetCookie(strings.TrimSpace(line))
	if err != nil || c.Name == "" {
		return RawCookie{}, false
	}
	return FromHTTPCookie(c, host), true
}

// FromHTTPCookie converts a net/http cookie
func FromHTTPCookie(c *http.Cookie, host string) RawCookie {
	raw := RawCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: sameSiteName(c.SameSite),
	}
	if raw.Domain == "" {
		raw.Domain = host
	}
	if raw.Path == "" {
		raw.Path = "/"
	}

	switch {
	case c.MaxAge > 0:
		exp := time.Now().Add(time.Duration(c.MaxAge) * time.Second).UTC()
		raw.ExpiresAt = &exp
	case c.MaxAge < 0:
		exp := time.Unix(0, 0).UTC()
		raw.ExpiresAt = &exp
	case !c.Expires.IsZero():
		exp := c.Expires.UTC()
		raw.ExpiresAt = &exp
	default:
		raw.Session = true
	}
	return raw
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return ""
	}
}

// MergeCookies combines jar and header cookies. The first occurrence of a
// (name, domain, path) triple wins, so jar cookies should come first.
func MergeCookies(lists ...[]RawCookie) []RawCookie {
	type key struct{ name, domain, path string }

	seen := make(map[key]bool)
	merged := make([]RawCookie, 0)
	for _, list := range lists {
		for _, c := range list {
			k := key{c.Name, strings.TrimPrefix(strings.ToLower(c.Domain), "."), c.Path}
			if k.path == "" {
				k.path = "/"
			}
			if seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, c)
		}
	}
	return merged
}
