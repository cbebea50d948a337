// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/jeranaias/talkydino-tui/internal/cache"
	"github.com/jeranaias/talkydino-tui/internal/logging"
)

// Configuration constants for the backend API.
const (
	// DefaultBaseURL is the local development backend.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4096

	userAgent = "talkydino-tui/1.0"
)

var (
	// ErrNotOK indicates a response envelope with "ok": false.
	ErrNotOK = errors.New("request not ok")

	// ErrResponseTooLarge indicates a body over MaxResponseSize.
	ErrResponseTooLarge = errors.New("response too large")

	// ErrMissingKey indicates a memory without a key.
	ErrMissingKey = errors.New("memory key is required")
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared between the REST and streaming clients.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("API request failed: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("API request failed: %d %s", e.Status, body)
}

// IsAPIStatus reports whether err is an APIError with the given status.
func IsAPIStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// =============================================================================
// CLIENT
// =============================================================================

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	RateLimit   float64 // requests per second; 0 disables limiting
	Burst       int
	TokenSource oauth2.TokenSource
	Cache       *cache.Manager
	UserID      string
	// Transport overrides the pooled transport, mainly for tests.
	Transport http.RoundTripper
}

// Client is the backend client. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	streaming *http.Client
	limiter   *rate.Limiter
	cache     *cache.Manager

	mu     sync.RWMutex
	userID string
}

// New creates a Client.
func New(opts Options) *Client {
	base := opts.Transport
	if base == nil {
		base = sharedTransport
	}
	var transport http.RoundTripper = base
	if opts.TokenSource != nil {
		transport = &oauth2.Transport{Source: opts.TokenSource, Base: base}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limit := rate.Inf
	burst := opts.Burst
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		// No timeout for streaming - controlled via context
		streaming: &http.Client{Transport: transport},
		limiter:   rate.NewLimiter(limit, burst),
		cache:     opts.Cache,
		userID:    opts.UserID,
	}
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Cache returns the cache manager, which may be nil.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// SetUserID sets the uid that scopes cache keys.
func (c *Client) SetUserID(uid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = uid
}

// UserID returns the uid that scopes cache keys.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// send waits for the rate limiter and performs req with hc. Non-2xx
// responses are returned as *APIError with the body closed.
func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, error) {
	log := logging.FromContext(req.Context())

	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		log.Debug("API_REQUEST_FAILED", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	// Don't log headers (they carry the bearer token) or bodies.
	log.Debug("API_RESPONSE", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// envelope is the common {ok, error} wrapper of backend responses.
type envelope struct {
	OK     *bool  `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// doJSON performs a request and decodes the JSON response into dst after
// checking the envelope. A missing "ok" field is accepted.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, dst any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.send(c.http, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// SECURITY: Limit response size to prevent memory exhaustion
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > MaxResponseSize {
		return fmt.Errorf("%w: over %d bytes", ErrResponseTooLarge, MaxResponseSize)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.OK != nil && !*env.OK {
		msg := env.Error
		if msg == "" {
			msg = env.Detail
		}
		if msg == "" {
			return fmt.Errorf("%s %s: %w", method, path, ErrNotOK)
		}
		return fmt.Errorf("%s %s: %w: %s", method, path, ErrNotOK, msg)
	}

	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// cacheKey builds a user-scoped key, or "" when caching is off.
func (c *Client) cacheKey(dataType string, params any) string {
	if c.cache == nil {
		return ""
	}
	return c.cache.Key(dataType, c.UserID(), params)
}

// invalidate drops the cached scope of dataType for the current user.
func (c *Client) invalidate(dataType string) {
	if c.cache == nil {
		return
	}
	c.cache.InvalidateUser(dataType, c.UserID())
}

// cached runs fetch through the cache when a key is available.
func cached[T any](ctx context.Context, c *Client, dataType string, params any, fetch func(context.Context) (T, error)) (T, error) {
	key := c.cacheKey(dataType, params)
	if key == "" {
		return fetch(ctx)
	}
	return cache.Load(ctx, c.cache, key, fetch)
}
