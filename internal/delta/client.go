package delta

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/skyflexible-prog/deltamulti-modular/internal/metrics"
)

const (
	// DefaultBaseURL is the Delta Exchange India REST endpoint.
	DefaultBaseURL = "https://api.india.delta.exchange"

	userAgent    = "DeltaTradingBot/1.0"
	maxBodyBytes = 4 << 20
)

// Config tunes the shared HTTP machinery. Zero values fall back to the
// defaults below.
type Config struct {
	BaseURL            string
	PoolConnections    int           // idle connections kept per host
	PoolMaxSize        int           // hard cap on connections per host
	ConnectTimeout     time.Duration // dial budget per attempt
	ReadTimeout        time.Duration // full response budget per attempt
	MinRequestInterval time.Duration // per-credential pacing floor
	MaxAttempts        int           // total tries per request
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PoolConnections <= 0 {
		c.PoolConnections = 10
	}
	if c.PoolMaxSize <= 0 {
		c.PoolMaxSize = 20
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 3 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 27 * time.Second
	}
	if c.MinRequestInterval <= 0 {
		c.MinRequestInterval = 100 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	return c
}

// Exchange owns the process-lifetime HTTP plumbing: the pooled transport and
// the per-credential pacers. Credential-bound Clients built from it are cheap
// and may be created per operation without losing connection reuse or pacing
// history.
type Exchange struct {
	baseURL    string
	httpClient *http.Client
	limiters   *limiterCache
	attempts   int
	log        zerolog.Logger
}

func NewExchange(cfg Config, log zerolog.Logger) *Exchange {
	cfg = cfg.withDefaults()
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConnsPerHost: cfg.PoolConnections,
		MaxConnsPerHost:     cfg.PoolMaxSize,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Exchange{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Transport: transport, Timeout: cfg.ReadTimeout},
		limiters:   newLimiterCache(cfg.MinRequestInterval),
		attempts:   cfg.MaxAttempts,
		log:        log.With().Str("comp", "delta").Logger(),
	}
}

// Client signs and dispatches requests for one account.
type Client struct {
	ex    *Exchange
	creds Credentials
	pace  *pacer
	log   zerolog.Logger
}

// Client binds credentials to the exchange plumbing. The returned client
// shares the connection pool and the credential's pacer with every other
// client built for the same api key.
func (e *Exchange) Client(creds Credentials) (*Client, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	return &Client{
		ex:    e,
		creds: creds,
		pace:  e.limiters.pacerFor(creds.APIKey),
		log:   e.log.With().Str("key", maskKey(creds.APIKey)).Logger(),
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Code string `json:"code"`
}

// do signs and sends one logical request, decoding the result envelope into
// out. Transport failures, 429s and retryable 5xx are re-attempted with
// exponential backoff up to the attempt cap; each attempt is re-signed with a
// fresh timestamp and paced through the credential's limiter.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("delta %s %s: encode body: %w", method, path, err)
		}
	}
	qs := ""
	if len(params) > 0 {
		qs = "?" + params.Encode()
	}

	bo := backoff.NewExponentialBackOff()
	var lastErr error
	for attempt := 1; attempt <= c.ex.attempts; attempt++ {
		if attempt > 1 {
			sleep := bo.NextBackOff()
			c.log.Warn().
				Str("method", method).
				Str("path", path).
				Int("attempt", attempt).
				Dur("sleep", sleep).
				Err(lastErr).
				Msg("retrying request")
			metrics.ExchangeRetries.Inc()
			select {
			case <-ctx.Done():
				return &TransportError{Method: method, Path: path, Err: ctx.Err()}
			case <-time.After(sleep):
			}
		}

		waited, err := c.pace.reserve(ctx)
		metrics.RateLimitWait.Observe(waited.Seconds())
		if err != nil {
			return &TransportError{Method: method, Path: path, Err: err}
		}

		err = c.attempt(ctx, method, path, qs, payload, out)
		if err == nil {
			metrics.ExchangeRequests.WithLabelValues(method, metricPath(path), "ok").Inc()
			return nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	metrics.ExchangeRequests.WithLabelValues(method, metricPath(path), "error").Inc()
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, path, qs string, payload []byte, out any) error {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := signRequest(c.creds.APISecret, method, ts, path, qs, payload)

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.ex.baseURL+path+qs, rd)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("api-key", c.creds.APIKey)
	req.Header.Set("timestamp", ts)
	req.Header.Set("signature", sig)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().Str("method", method).Str("path", path).Msg("request")

	resp, err := c.ex.httpClient.Do(req)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{Method: method, Path: path, Body: trimBody(b)}
	case resp.StatusCode >= 500:
		return &ServerError{Method: method, Path: path, Status: resp.StatusCode, Body: trimBody(b)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &ClientError{Method: method, Path: path, Status: resp.StatusCode, Code: errorCode(b), Body: trimBody(b)}
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("delta %s %s: decode response: %w (body=%s)", method, path, err, trimBody(b))
	}
	if len(env.Result) == 0 {
		return fmt.Errorf("delta %s %s: %w", method, path, ErrMissingResult)
	}
	if out == nil || bytes.Equal(env.Result, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("delta %s %s: decode result: %w (body=%s)", method, path, err, trimBody(b))
	}
	return nil
}

func errorCode(b []byte) string {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil || env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}

// metricPath collapses numeric path segments so order ids do not explode the
// metric label space.
func metricPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
