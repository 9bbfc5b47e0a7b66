// Package anidb downloads AniDB anime pages and extracts their song lists.
package anidb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/aoq-factory/services/songsworker/internal/ratelimit"
)

const DefaultBaseURL = "https://anidb.net"

// ClientConfig holds configurable settings for the AniDB client.
type ClientConfig struct {
	UserAgent string
	Timeout   time.Duration
}

type Client struct {
	BaseURL string
	Config  ClientConfig
	Limiter *ratelimit.Limiter
	CB      *gobreaker.CircuitBreaker
	Log     *zap.Logger

	base      *colly.Collector
	transport http.RoundTripper
}

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// New builds a client. Every fetch waits on limiter first; pass one limiter
// per process so all requests share the same gate.
func New(baseURL string, cfg ClientConfig, limiter *ratelimit.Limiter, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	base := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	base.IgnoreRobotsTxt = true

	c := &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Config:    cfg,
		Limiter:   limiter,
		Log:       zap.NewNop(),
		base:      base,
		transport: newHTTPTransport(),
	}
	for _, o := range opts {
		o(c)
	}
	// Clones share the base HTTP backend, so backend settings are applied
	// once here and never per visit.
	base.SetRequestTimeout(cfg.Timeout)
	base.WithTransport(c.transport)
	return c
}

// TransportError reports a fetch that did not yield a usable answer:
// timeouts, refused connections, an open breaker, throttling or server
// errors. Retrying later may succeed.
type TransportError struct {
	AnimeID int64
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("anidb fetch %d: %v", e.AnimeID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is an HTTP status that says "try again later": 429, 408 or
// any 5xx.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// IsTransient reports whether err is a TransportError.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// PageURL returns the anime page address for animeID.
func (c *Client) PageURL(animeID int64) string {
	return c.BaseURL + "/anime/" + strconv.FormatInt(animeID, 10)
}

// Fetch downloads the anime page. 429, 408 and 5xx responses are
// TransportErrors; any other non-2xx response yields (nil, nil).
// Cancellation of ctx is returned as the bare context error.
func (c *Client) Fetch(ctx context.Context, animeID int64) ([]byte, error) {
	if animeID <= 0 {
		return nil, fmt.Errorf("anidb: invalid anime id %d", animeID)
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if c.CB == nil {
		return c.visit(ctx, animeID)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return c.visit(ctx, animeID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &TransportError{AnimeID: animeID, Err: err}
		}
		return nil, err
	}
	body, _ := result.([]byte)
	return body, nil
}

// visit performs one GET. Transport failures and retryable statuses count
// against the breaker; any other non-2xx page is a successful exchange.
func (c *Client) visit(ctx context.Context, animeID int64) ([]byte, error) {
	collector := c.base.Clone()
	collector.UserAgent = c.Config.UserAgent
	// Deliver 4xx/5xx to OnResponse; OnError then only sees transport faults.
	collector.ParseHTTPErrorResponse = true

	var (
		body   []byte
		status int
	)
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.8")
	})
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(c.PageURL(animeID))
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TransportError{AnimeID: animeID, Err: err}
		}
		if retryableStatus(status) {
			c.Log.Warn("anidb throttled or failing", zap.Int64("anidb_id", animeID), zap.Int("status", status))
			return nil, &TransportError{AnimeID: animeID, Err: &StatusError{Code: status}}
		}
		if status < 200 || status > 299 {
			c.Log.Info("anidb page unavailable", zap.Int64("anidb_id", animeID), zap.Int("status", status))
			return nil, nil
		}
		return body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
