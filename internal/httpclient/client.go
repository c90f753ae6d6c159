// Package httpclient implements the resilient HTTP client shared by every
// HTTP-transport fetcher (npm, PyPI, Crates, Docker Hub, Helm, Homebrew,
// APT, APK, DNF/YUM, Zypper): pooled connections, token-bucket rate
// limiting, retry with backoff, once-per-URL TLS fallback and an
// ordered fallback-URL chain.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/example42/saidata-gen/internal/core/resilience"
)

// Response is the result of a successful fetch.
type Response struct {
	StatusCode     int
	Header         http.Header
	Body           []byte
	TLSDowngraded  bool
	URL            string
}

// Config controls pool sizing, rate limiting and TLS fallback behavior.
type Config struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration

	RateLimit     rate.Limit
	Burst         int
	TokenWaitMax  time.Duration

	RetryPolicy *resilience.RetryPolicy

	// AllowTLSFallback gates the once-per-URL verify-disabled retry on
	// certificate failure (spec §4.2) — off unless explicitly enabled.
	AllowTLSFallback bool

	Logger *slog.Logger
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.MaxIdleConns <= 0 {
		out.MaxIdleConns = 100
	}
	if out.MaxIdleConnsPerHost <= 0 {
		out.MaxIdleConnsPerHost = 10
	}
	if out.IdleConnTimeout <= 0 {
		out.IdleConnTimeout = 90 * time.Second
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 10 * time.Second
	}
	if out.RateLimit <= 0 {
		out.RateLimit = rate.Inf
	}
	if out.Burst <= 0 {
		out.Burst = 1
	}
	if out.TokenWaitMax <= 0 {
		out.TokenWaitMax = 30 * time.Second
	}
	if out.RetryPolicy == nil {
		out.RetryPolicy = resilience.DefaultRetryPolicy()
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}

// Client is the pooled, rate-limited, retrying HTTP client of C2. One
// Client instance is shared by every fetcher in a run.
type Client struct {
	httpClient  *http.Client
	insecureOne *http.Client
	limiter     *rate.Limiter
	policy      *resilience.RetryPolicy
	allowTLS    bool
	logger      *slog.Logger

	mu              sync.Mutex
	downgradedURLs  map[string]bool
}

// New constructs a Client from cfg, filling unset fields with defaults.
func New(cfg Config) *Client {
	full := cfg.withDefaults()

	transport := &http.Transport{
		MaxIdleConns:        full.MaxIdleConns,
		MaxIdleConnsPerHost: full.MaxIdleConnsPerHost,
		IdleConnTimeout:     full.IdleConnTimeout,
		DialContext: (&net.Dialer{
			Timeout:   full.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}

	insecureTransport := transport.Clone()
	insecureTransport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true}

	return &Client{
		httpClient:     &http.Client{Transport: transport},
		insecureOne:    &http.Client{Transport: insecureTransport},
		limiter:        rate.NewLimiter(full.RateLimit, full.Burst),
		policy:         full.RetryPolicy,
		allowTLS:       full.AllowTLSFallback,
		logger:         full.Logger.With("component", "httpclient"),
		downgradedURLs: make(map[string]bool),
	}
}

// Fetch implements spec §4.2: fetch(url, headers, timeout_hint). It honors
// the rate limiter, retries per the configured RetryPolicy, and applies
// once-per-URL TLS fallback when allowed.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeoutHint time.Duration) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, resilience.NewError(resilience.ClassNetwork, "", url, fmt.Errorf("rate limit wait: %w", err))
	}

	return resilience.WithRetryFunc(ctx, c.policy, func() (*Response, error) {
		return c.attempt(ctx, url, headers, timeoutHint)
	})
}

// FetchWithFallback implements the ordered fallback-URL chain: tries
// primaryURL, then each of fallbackURLs in order, applying the full retry
// policy to each; returns the first success or a composite error.
func (c *Client) FetchWithFallback(ctx context.Context, primaryURL string, fallbackURLs []string, headers map[string]string, timeoutHint time.Duration) (*Response, error) {
	urls := append([]string{primaryURL}, fallbackURLs...)
	var causes []error
	for _, u := range urls {
		resp, err := c.Fetch(ctx, u, headers, timeoutHint)
		if err == nil {
			return resp, nil
		}
		causes = append(causes, fmt.Errorf("%s: %w", u, err))
	}
	return nil, &FetchError{Causes: causes}
}

func (c *Client) attempt(ctx context.Context, url string, headers map[string]string, timeoutHint time.Duration) (*Response, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeoutHint > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeoutHint)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, resilience.NewError(resilience.ClassConfig, "", url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := c.httpClient
	downgraded := c.wasDowngraded(url)
	if downgraded {
		client = c.insecureOne
	}

	httpResp, err := client.Do(req)
	if err != nil {
		class := resilience.Classify(err)
		if class == resilience.ClassTLS && c.allowTLS && !downgraded {
			c.markDowngraded(url)
			httpResp, err = c.insecureOne.Do(req.Clone(reqCtx))
			downgraded = true
			if err != nil {
				return nil, resilience.NewError(resilience.Classify(err), "", url, err)
			}
		} else {
			return nil, resilience.NewError(class, "", url, err)
		}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, resilience.NewError(resilience.ClassNetwork, "", url, err)
	}

	if httpResp.StatusCode >= 400 {
		class := resilience.HTTPStatusClass(httpResp.StatusCode)
		return nil, resilience.NewError(class, "", url, c.statusError(httpResp, body))
	}

	return &Response{
		StatusCode:    httpResp.StatusCode,
		Header:        httpResp.Header,
		Body:          body,
		TLSDowngraded: downgraded,
		URL:           url,
	}, nil
}

func (c *Client) statusError(resp *http.Response, body []byte) error {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil {
			return fmt.Errorf("HTTP %d (retry-after %ds): %s", resp.StatusCode, secs, truncate(body, 256))
		}
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 256))
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}

func (c *Client) wasDowngraded(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downgradedURLs[url]
}

func (c *Client) markDowngraded(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downgradedURLs[url] = true
}

// FetchError is the composite error returned when every URL in a fallback
// chain fails, preserving each attempt's cause.
type FetchError struct {
	Causes []error
}

func (e *FetchError) Error() string {
	var buf bytes.Buffer
	buf.WriteString("all fetch attempts failed: ")
	for i, c := range e.Causes {
		if i > 0 {
			buf.WriteString("; ")
		}
		buf.WriteString(c.Error())
	}
	return buf.String()
}

func (e *FetchError) Unwrap() []error { return e.Causes }
