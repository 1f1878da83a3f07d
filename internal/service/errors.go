package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/olegrjumin/cookieguard/internal/httpclient"
)

// Error type constants
const (
	ErrorNone       = "none"
	ErrorInvalidURL = "invalid_url"
	ErrorTimeout    = "timeout"
	ErrorDNS        = "dns_error"
	ErrorTLS        = "tls_error"
	ErrorNetwork    = "network_error"
	ErrorHTTP       = "http_error"
	ErrorBrowser    = "browser_error"
	ErrorStore      = "store_error"
)

// Scan stages reported with failures
const (
	StageInput    = "input"
	StageOpen     = "open"
	StageNavigate = "navigate"
	StageCookies  = "cookies"
	StageStore    = "store"
)

// ErrInvalidDomain is wrapped by ScanError when the input is not a domain
var ErrInvalidDomain = errors.New("invalid domain")

// ScanError is a scan failure that is fatal for one domain only
type ScanError struct {
	Domain string
	Stage  string
	Kind   string
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %s failed (%s): %v", e.Domain, e.Stage, e.Kind, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// ClassifyError determines the error type from a Go error
// Returns the error type constant and a human-readable message
func ClassifyError(err error) (string, string) {
	if err == nil {
		return ErrorNone, ""
	}

	errMsg := err.Error()

	// Check for timeout errors
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout, "navigation timeout"
	}

	// Check if it's a network error with Timeout() method
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTimeout, "navigation timeout"
	}

	// Check for DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorDNS, "DNS lookup failed"
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return ErrorHTTP, fmt.Sprintf("HTTP %d", statusErr.StatusCode)
	}

	// Chrome reports network failures as net::ERR_* codes
	switch {
	case strings.Contains(errMsg, "ERR_NAME_NOT_RESOLVED"), strings.Contains(errMsg, "no such host"):
		return ErrorDNS, "host not found"
	case strings.Contains(errMsg, "ERR_CERT"), strings.Contains(errMsg, "ERR_SSL"):
		return ErrorTLS, "certificate error"
	case strings.Contains(errMsg, "ERR_TIMED_OUT"):
		return ErrorTimeout, "navigation timeout"
	case strings.Contains(errMsg, "ERR_INVALID_URL"):
		return ErrorInvalidURL, "invalid URL"
	}

	// Check for TLS/certificate errors
	if strings.Contains(errMsg, "tls") || strings.Contains(errMsg, "TLS") {
		return ErrorTLS, "TLS handshake failed"
	}
	if strings.Contains(errMsg, "certificate") || strings.Contains(errMsg, "x509") {
		return ErrorTLS, "certificate error"
	}

	// Check for connection refused and similar network errors
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "ERR_CONNECTION_REFUSED") {
		return ErrorNetwork, "connection refused"
	}
	if strings.Contains(errMsg, "connection reset") || strings.Contains(errMsg, "ERR_CONNECTION_RESET") {
		return ErrorNetwork, "connection reset"
	}
	if strings.Contains(errMsg, "network is unreachable") {
		return ErrorNetwork, "network unreachable"
	}

	// Default to network error for other cases
	return ErrorNetwork, errMsg
}
