// Package httpclient builds the outbound HTTP client used to fetch
// manifests and sandbox packages.
//
// Built on go-resty/resty over a hashicorp/go-retryablehttp transport, with
// an optional request rate limit.
package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Config defines client behavior
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
	RateLimit  float64 // requests per second, 0 = unlimited
	UserAgent  string

	BreakerThreshold int           // consecutive failed fetches that open the breaker, 0 = off
	BreakerCooldown  time.Duration // how long the breaker stays open
}

// DefaultConfig returns the configuration used for manifest and package fetches
func DefaultConfig() Config {
	return Config{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
		UserAgent:  "scriptworker/1.0",

		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// Client wraps resty with rate limiting
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *Breaker
}

// New creates a client from cfg
func New(cfg Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.MinWait
	retryClient.RetryWaitMax = cfg.MaxWait
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.MinWait).
		SetRetryMaxWaitTime(cfg.MaxWait)
	if cfg.UserAgent != "" {
		restyClient.SetHeader("User-Agent", cfg.UserAgent)
	}
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		Resty:   restyClient,
		Limiter: limiter,
		Breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
	}
}

// NewDefault creates a client with DefaultConfig
func NewDefault() *Client {
	return New(DefaultConfig())
}

// Get fetches url and returns the body. Non-2xx responses are errors.
// 4xx answers do not count against the breaker.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	if err := c.Breaker.Allow(); err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	resp, err := c.Resty.R().SetContext(ctx).Get(url)
	if err != nil {
		c.Breaker.Done(false)
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.IsError() {
		c.Breaker.Done(resp.StatusCode() < 500)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode()}
	}
	c.Breaker.Done(true)
	return resp.Body(), nil
}

// StatusError reports a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}
