package httpclient

import (
	"net/http"
	"time"
)

// NewTransport creates a configured HTTP transport optimized for performance
// The transport is reused across requests for connection pooling
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,

		// Maximum number of idle connections across all hosts
		MaxIdleConns: 100,

		// Maximum number of idle connections per host
		MaxIdleConnsPerHost: 10,

		// How long an idle connection stays in the pool
		IdleConnTimeout: 90 * time.Second,

		// Timeout for TLS handshake
		TLSHandshakeTimeout: 10 * time.Second,

		// Timeout for expecting response headers after request is sent
		ResponseHeaderTimeout: 15 * time.Second,

		ForceAttemptHTTP2: true,
	}
}

// recordingTransport reports every response's Set-Cookie headers,
// including those of redirect hops the client follows
type recordingTransport struct {
	base   http.RoundTripper
	record func(req *http.Request, cookies []*http.Cookie)
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		t.record(req, cookies)
	}
	return resp, nil
}
