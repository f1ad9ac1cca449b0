// Package zipcode resolves Brazilian postal codes (CEP) into address parts
// through an external lookup API. Lookups are advisory: Lookup swallows
// every failure and only reports whether an address was found.
package zipcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-opform/internal/metrics"
)

const (
	// DefaultBaseURL is the lookup endpoint; the code is appended as the
	// last path segment.
	DefaultBaseURL = "https://api.pagar.me/1/zipcodes"
	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 5 * time.Second

	maxBodyBytes = 1 << 20
)

var pattern = regexp.MustCompile(`^[0-9]{5}-[0-9]{3}$`)

var (
	// ErrPattern means the code is not in the 99999-999 shape; no request
	// is made.
	ErrPattern = errors.New("zipcode: code does not match 99999-999")
	// ErrNotFound means the service answered with an errors field.
	ErrNotFound = errors.New("zipcode: address not found")
	// ErrStatus means the service answered with a non-2xx status.
	ErrStatus = errors.New("zipcode: unexpected status")
	// ErrRateLimited means the local limiter refused the request.
	ErrRateLimited = errors.New("zipcode: rate limited")
)

// Address holds the parts returned by the lookup service.
type Address struct {
	State        string `json:"state"`
	Neighborhood string `json:"neighborhood"`
	Street       string `json:"street"`
	City         string `json:"city"`
}

type response struct {
	Address
	Errors json.RawMessage `json:"errors"`
}

// Matches reports whether code has the 99999-999 shape required before a
// lookup is attempted. The pattern is anchored on purpose: a code with
// anything before or after the shape is not looked up.
func Matches(code string) bool {
	return pattern.MatchString(code)
}

// Client calls the lookup service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for lookups.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL points the client at another lookup endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every lookup; non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRateLimit caps outbound lookups with a token bucket. A non-positive
// rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger used to report swallowed failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records lookup outcomes.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = rec
	}
}

// New builds a client with defaults: DefaultBaseURL, DefaultTimeout, no
// rate limit and slog.Default().
func New(options ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Fetch performs the lookup and reports why it failed.
func (c *Client) Fetch(ctx context.Context, code string) (Address, error) {
	if !Matches(code) {
		return Address{}, ErrPattern
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return Address{}, ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(code), nil)
	if err != nil {
		return Address{}, fmt.Errorf("zipcode: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Address{}, fmt.Errorf("zipcode: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Address{}, fmt.Errorf("zipcode: read body: %w", err)
	}

	var payload response
	decodeErr := json.Unmarshal(body, &payload)
	if decodeErr == nil && hasErrors(payload.Errors) {
		return Address{}, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Address{}, fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}
	if decodeErr != nil {
		return Address{}, fmt.Errorf("zipcode: decode: %w", decodeErr)
	}
	return payload.Address, nil
}

// Lookup is the advisory form of Fetch: every failure is logged, counted
// and swallowed. The boolean reports whether an address was found.
func (c *Client) Lookup(ctx context.Context, code string) (Address, bool) {
	addr, err := c.Fetch(ctx, code)
	switch {
	case err == nil:
		c.metrics.Lookup(metrics.OutcomeFound)
		c.logger.Debug("zipcode resolved", "zipcode", code, "city", addr.City, "state", addr.State)
		return addr, true
	case errors.Is(err, ErrPattern):
		c.metrics.Lookup(metrics.OutcomeSkipped)
		c.logger.Debug("zipcode lookup skipped", "zipcode", code)
	case errors.Is(err, ErrNotFound):
		c.metrics.Lookup(metrics.OutcomeNotFound)
		c.logger.Warn("zipcode not found", "zipcode", code)
	default:
		c.metrics.Lookup(metrics.OutcomeFailed)
		c.logger.Warn("zipcode lookup failed", "zipcode", code, "error", err)
	}
	return Address{}, false
}

// hasErrors mirrors a truthiness check: absent, null, false, 0 and "" do
// not count as errors.
func hasErrors(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch string(trimmed) {
	case "null", "false", "0", `""`:
		return false
	default:
		return true
	}
}
