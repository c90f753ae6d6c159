// Package resilience classifies fetch/transport failures into a closed
// taxonomy and decides retry policy and provider degradation from it.
package resilience

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorClass is the closed failure taxonomy used across the fetcher set,
// the HTTP client and the generator.
type ErrorClass string

const (
	ClassNetwork    ErrorClass = "Network"
	ClassTLS        ErrorClass = "TLS"
	ClassParse      ErrorClass = "Parse"
	ClassHTTP4xx    ErrorClass = "HTTP4xx"
	ClassHTTP5xx    ErrorClass = "HTTP5xx"
	ClassDependency ErrorClass = "Dependency"
	ClassNotFound   ErrorClass = "NotFound"
	ClassAuth       ErrorClass = "Auth"
	ClassConfig     ErrorClass = "Config"
	ClassValidation ErrorClass = "Validation"
	ClassInternal   ErrorClass = "Internal"
)

// SaidataError carries a classified failure plus the provider/URL that
// triggered it, so user-facing messages can name both the kind and the
// offending source (spec §7).
type SaidataError struct {
	Class    ErrorClass
	Provider string
	URL      string
	Cause    error
}

func (e *SaidataError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Class))
	if e.Provider != "" {
		fmt.Fprintf(&b, " provider=%s", e.Provider)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " url=%s", e.URL)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *SaidataError) Unwrap() error { return e.Cause }

// NewError wraps cause with a classification, provider and URL.
func NewError(class ErrorClass, provider, url string, cause error) *SaidataError {
	return &SaidataError{Class: class, Provider: provider, URL: url, Cause: cause}
}

// HTTPStatusClass maps a response status code to ErrorClass.
func HTTPStatusClass(status int) ErrorClass {
	switch {
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassAuth
	case status >= 400 && status < 500:
		return ClassHTTP4xx
	case status >= 500:
		return ClassHTTP5xx
	}
	return ClassInternal
}

// Classify inspects err and assigns it a taxonomy class. It never panics.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassInternal
	}

	var saidataErr *SaidataError
	if errors.As(err, &saidataErr) {
		return saidataErr.Class
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassNetwork
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return ClassTLS
	}
	if strings.Contains(strings.ToLower(err.Error()), "certificate") ||
		strings.Contains(strings.ToLower(err.Error()), "x509") {
		return ClassTLS
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassNetwork
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ClassNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "i/o timeout"):
		return ClassNetwork
	case strings.Contains(msg, "executable file not found"), strings.Contains(msg, "command not found"):
		return ClassDependency
	case strings.Contains(msg, "unmarshal"), strings.Contains(msg, "unexpected eof"), strings.Contains(msg, "invalid character"), strings.Contains(msg, "malformed"):
		return ClassParse
	case strings.Contains(msg, "not found"), strings.Contains(msg, "404"):
		return ClassNotFound
	}

	return ClassInternal
}

// ShouldRetry implements spec §4.5/§4.2's retry policy: Network/HTTP5xx/429
// and a first-time TLS failure are retryable; everything else is not.
// attempt is 1-based (the attempt that just failed).
func ShouldRetry(class ErrorClass, statusCode int, attempt int, tlsAlreadyDowngraded bool) bool {
	switch class {
	case ClassNetwork:
		return true
	case ClassHTTP5xx:
		return true
	case ClassHTTP4xx:
		return statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout
	case ClassTLS:
		return !tlsAlreadyDowngraded
	default:
		return false
	}
}

// RetryableErrorChecker determines if an error should trigger a retry
// attempt; kept as an interface so callers can supply alternative policies
// (see ChainedErrorChecker / NeverRetryChecker / AlwaysRetryChecker).
type RetryableErrorChecker interface {
	IsRetryable(err error) bool
}

// DefaultErrorChecker classifies err with Classify and retries Network,
// HTTP5xx, 429/408 and first-attempt TLS failures.
type DefaultErrorChecker struct{}

func (DefaultErrorChecker) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	class := Classify(err)
	return ShouldRetry(class, 0, 1, false)
}

// ChainedErrorChecker retries if any delegate says to retry.
type ChainedErrorChecker struct{ Checkers []RetryableErrorChecker }

func (c ChainedErrorChecker) IsRetryable(err error) bool {
	for _, checker := range c.Checkers {
		if checker.IsRetryable(err) {
			return true
		}
	}
	return false
}

// HTTPErrorChecker retries based on HTTP status codes embedded in the error
// message, for callers that don't have a structured SaidataError available.
type HTTPErrorChecker struct {
	RetryOn5xx bool
	RetryOn429 bool
	RetryOn408 bool
}

// NewHTTPErrorChecker returns a checker with spec-default retry behavior.
func NewHTTPErrorChecker() *HTTPErrorChecker {
	return &HTTPErrorChecker{RetryOn5xx: true, RetryOn429: true, RetryOn408: true}
}

func (c *HTTPErrorChecker) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if c.RetryOn5xx {
		for code := 500; code < 600; code++ {
			if strings.Contains(msg, fmt.Sprintf("%d", code)) {
				return true
			}
		}
	}
	if c.RetryOn429 && (strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests")) {
		return true
	}
	if c.RetryOn408 && strings.Contains(msg, "408") {
		return true
	}
	return DefaultErrorChecker{}.IsRetryable(err)
}

// NeverRetryChecker never retries.
type NeverRetryChecker struct{}

func (NeverRetryChecker) IsRetryable(error) bool { return false }

// AlwaysRetryChecker retries every non-nil error.
type AlwaysRetryChecker struct{}

func (AlwaysRetryChecker) IsRetryable(err error) bool { return err != nil }
