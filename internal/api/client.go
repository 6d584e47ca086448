// Package api is a rate-limited HTTP client for the DocShelf server.
//
// Authenticated calls ask the configured Authorizer for the header right
// before sending, so a logout takes effect on the very next request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/docshelf/docshelf/internal/id"
	"github.com/docshelf/docshelf/internal/ratelimit"
)

const (
	defaultRPS   = 10.0
	defaultBurst = 20

	userAgent = "docshelf-cli/1.0"

	// Error bodies beyond this are not worth reading.
	maxErrorBody = 64 << 10
)

// Endpoint groups share a rate limit bucket.
const (
	groupAuth      = "auth"
	groupSearch    = "search"
	groupDocuments = "documents"
	groupRatings   = "ratings"
	groupAI        = "ai"
)

// Authorizer supplies the Authorization header value for the current session.
type Authorizer interface {
	AuthorizationHeader() (string, bool)
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration // 0 means no client-side timeout
	RateLimit float64
	RateBurst int
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client talks to the DocShelf API.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger

	mu   sync.RWMutex
	auth Authorizer
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	rps, burst := cfg.RateLimit, cfg.RateBurst
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		limiter: ratelimit.New(rps, burst),
		logger:  logger.With("component", "api"),
	}, nil
}

// SetAuthorizer installs the session that authenticates requests.
func (c *Client) SetAuthorizer(a Authorizer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = a
}

// BaseURL returns the server origin.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// request describes one API call.
type request struct {
	op          string
	group       string
	method      string
	path        string
	rawQuery    string
	body        io.Reader
	contentType string
	// bearer overrides the session header; used to validate a stored token.
	bearer string
	public bool
}

// jsonBody encodes v for a request body.
func jsonBody(v any) (io.Reader, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(buf), nil
}

// send executes r and returns the response on 2xx. Callers close the body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx, r.group); err != nil {
		return nil, wrapError(r.op, 0, "", fmt.Errorf("rate limit wait: %w", err))
	}

	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + r.path
	u.RawQuery = r.rawQuery

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return nil, wrapError(r.op, 0, "", fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", id.RequestID())
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if !r.public {
		if h, ok := c.authorization(r.bearer); ok {
			req.Header.Set("Authorization", h)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapError(r.op, 0, "", fmt.Errorf("execute request: %w", err))
	}

	c.logger.Debug("api request",
		"op", r.op,
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, wrapError(r.op, resp.StatusCode, parseDetail(body), statusError(resp.StatusCode))
}

// do executes r and decodes a JSON response into out, if non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return wrapError(r.op, 0, "", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) authorization(bearer string) (string, bool) {
	if bearer != "" {
		return bearer, true
	}
	c.mu.RLock()
	a := c.auth
	c.mu.RUnlock()
	if a == nil {
		return "", false
	}
	return a.AuthorizationHeader()
}
