// Package client talks to the collection backend: schema lookups, paged
// item queries and item counts. Identical concurrent requests are
// coalesced and successful bodies may be cached. Failed requests are never
// retried automatically.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mathhub/mdh-explorer/internal/cache"
	"github.com/mathhub/mdh-explorer/internal/codec"
	apperrors "github.com/mathhub/mdh-explorer/internal/errors"
	"github.com/mathhub/mdh-explorer/internal/filter"
)

// Config holds client settings.
type Config struct {
	// BaseURL is prefixed to every API path, e.g. "https://example.org/api"
	BaseURL string

	// Timeout bounds a single request (default 30s)
	Timeout time.Duration

	// UserAgent is sent with every request
	UserAgent string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache stores successful response bodies in cc.
func WithCache(cc cache.Cache) Option {
	return func(c *Client) { c.cache = cc }
}

type freshKey struct{}

// Fresh returns a context under which the client does not answer requests
// from its response cache. Fresh bodies are still stored.
func Fresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshKey{}, true)
}

func isFresh(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshKey{}).(bool)
	return fresh
}

// Client is a backend client. It is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	registry  *codec.Registry
	cache     cache.Cache
	group     singleflight.Group
}

// New creates a client. A nil registry uses the process-wide default.
func New(cfg Config, registry *codec.Registry, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if registry == nil {
		registry = codec.Default()
	}
	c := &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		registry:  registry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the codec registry used to parse collections.
func (c *Client) Registry() *codec.Registry { return c.registry }

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// fetchJSON GETs path with params and decodes the JSON body into out.
// Parameters with empty values are dropped.
func (c *Client) fetchJSON(ctx context.Context, path string, params map[string]string, out any) error {
	target := c.buildURL(path, params)

	body, err := c.get(ctx, target)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.NewTransportError(apperrors.CodeDecodeFailed,
			fmt.Sprintf("failed to decode response of %s", target), err)
	}
	return nil
}

func (c *Client) buildURL(path string, params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	target := c.baseURL + path
	if len(values) > 0 {
		target += "?" + values.Encode()
	}
	return target
}

// get returns the body of a successful GET of target, consulting the
// cache unless ctx is Fresh and coalescing concurrent identical requests.
func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	key := filter.Key(target)
	if c.cache != nil && !isFresh(ctx) {
		if body, ok := c.cache.Get(ctx, key); ok {
			return body, nil
		}
	}

	v, err, _ := c.group.Do(target, func() (any, error) {
		return c.do(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	body := v.([]byte)

	if c.cache != nil {
		c.cache.Put(ctx, key, body)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperrors.NewTransportError(apperrors.CodeRequestFailed,
			fmt.Sprintf("invalid request %s", target), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		code := apperrors.CodeRequestFailed
		if errors.Is(err, context.DeadlineExceeded) {
			code = apperrors.CodeRequestTimeout
		}
		return nil, apperrors.NewTransportError(code, fmt.Sprintf("Request to %s failed", target), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		log.Printf("[client] GET %s -> %d (%v)", target, resp.StatusCode, time.Since(start))
		return nil, newResponseError(resp.StatusCode, target)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransportError(apperrors.CodeRequestFailed,
			fmt.Sprintf("failed to read response of %s", target), err)
	}
	return body, nil
}
