// Package client provides the Perplexity web API client.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/diogo/perplexity-web-api-go/internal/auth"
	"github.com/diogo/perplexity-web-api-go/internal/metrics"
	"go.uber.org/zap"
)

// DefaultTimeout bounds every network leg unless configured otherwise.
const DefaultTimeout = 30 * time.Second

// Timeouts bounds each network leg of a call. Zero values take DefaultTimeout.
type Timeouts struct {
	Session           time.Duration
	Query             time.Duration
	UploadNegotiation time.Duration
	StorageTransfer   time.Duration
}

// DefaultTimeouts returns DefaultTimeout for every leg.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Session:           DefaultTimeout,
		Query:             DefaultTimeout,
		UploadNegotiation: DefaultTimeout,
		StorageTransfer:   DefaultTimeout,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	fill := func(d *time.Duration) {
		if *d <= 0 {
			*d = DefaultTimeout
		}
	}
	fill(&t.Session)
	fill(&t.Query)
	fill(&t.UploadNegotiation)
	fill(&t.StorageTransfer)
	return t
}

// Config holds client configuration options.
type Config struct {
	Cookies    []*http.Cookie
	CookieFile string
	Timeouts   Timeouts
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{Timeouts: DefaultTimeouts()}
}

// Client is the main Perplexity API client. It keeps no per-request state
// and is safe for concurrent use.
type Client struct {
	transport Transport
	http      *HTTPClient // nil when built with NewWithTransport
	timeouts  Timeouts
	log       *zap.Logger
}

// New creates a client backed by a Chrome-impersonating HTTP client. It
// does not touch the network; call OpenSession to warm the session up.
func New(cfg Config) (*Client, error) {
	httpClient, err := NewHTTPClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	// Load cookies from file if specified
	if cfg.CookieFile != "" {
		cookies, err := auth.LoadCookiesFromFile(cfg.CookieFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load cookies: %w", err)
		}
		httpClient.SetCookieList(cookies)
	} else if len(cfg.Cookies) > 0 {
		httpClient.SetCookieList(cfg.Cookies)
	}

	c := NewWithTransport(httpClient, cfg)
	c.http = httpClient
	return c, nil
}

// NewWithTransport creates a client on top of an existing transport.
func NewWithTransport(t Transport, cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		transport: t,
		timeouts:  cfg.Timeouts.withDefaults(),
		log:       log,
	}
}

// OpenSession warms up the session under the session timeout.
func (c *Client) OpenSession(ctx context.Context) error {
	return c.runLeg(ctx, LegSession, c.timeouts.Session, c.transport.OpenSession)
}

// SetCookies replaces the client cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if c.http != nil {
		c.http.SetCookieList(cookies)
	}
}

// GetCookies returns current cookies.
func (c *Client) GetCookies() []*http.Cookie {
	if c.http == nil {
		return nil
	}
	return c.http.GetCookies()
}

// HasCredentials reports whether authentication cookies are configured.
func (c *Client) HasCredentials() bool {
	return c.transport.HasCredentials()
}

// Timeouts returns the effective leg timeouts.
func (c *Client) Timeouts() Timeouts {
	return c.timeouts
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	if c.http != nil {
		return c.http.Close()
	}
	return nil
}

// runLeg runs fn under the leg timeout and classifies its failure as a
// *TimeoutError, a *StatusError or a *LegError.
func (c *Client) runLeg(ctx context.Context, leg Leg, limit time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	legCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	err := fn(legCtx)
	if err != nil {
		err = classify(ctx, legCtx.Err(), leg, limit, err)
		c.log.Debug("request leg failed",
			zap.String("leg", string(leg)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}
	metrics.ObserveLeg(string(leg), start, err)
	return err
}

// classify maps a raw leg failure to the error taxonomy. legErr is the
// state of the leg context when the failure surfaced.
func classify(parent context.Context, legErr error, leg Leg, limit time.Duration, err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return err
	}
	if parent.Err() == nil && errors.Is(legErr, context.DeadlineExceeded) {
		return &TimeoutError{Leg: leg, Duration: limit}
	}
	return &LegError{Leg: leg, Err: err}
}
