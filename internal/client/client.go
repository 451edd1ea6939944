// Package client is the request layer for the FinTrack REST API. It memoizes
// GET responses for a short TTL, collapses identical in-flight GETs, limits
// concurrent requests and retries rate-limited calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
)

const (
	DefaultCacheTTL    = 30 * time.Second
	DefaultConcurrency = 3
	DefaultBatchDelay  = 100 * time.Millisecond
	defaultCacheSize   = 256
)

// DefaultBackoff is the wait before each retry of a 429 response.
var DefaultBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Request is one API call. Path is relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
}

// Response is a successful API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into dest.
func (r *Response) Decode(dest interface{}) error {
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Client talks to the FinTrack API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	tokenMu sync.RWMutex
	token   string

	cache       *cache.LRUCache[*Response]
	cacheTTL    time.Duration
	cacheSize   int
	cacheMu     sync.Mutex
	generation  uint64 // bumped by InvalidateCache, guarded by cacheMu
	group       singleflight.Group
	sem         *semaphore.Weighted
	concurrency int
	backoff     []time.Duration
	batchDelay  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithCacheTTL sets how long GET responses are reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

// WithCacheSize bounds the number of cached responses.
func WithCacheSize(n int) Option {
	return func(c *Client) { c.cacheSize = n }
}

// WithConcurrency sets the number of requests allowed in flight and the batch
// chunk size.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithBackoff replaces the 429 retry table.
func WithBackoff(table []time.Duration) Option {
	return func(c *Client) { c.backoff = table }
}

// WithBatchDelay sets the pause between batch chunks.
func WithBatchDelay(d time.Duration) Option {
	return func(c *Client) { c.batchDelay = d }
}

// New creates a client for the API at baseURL (e.g. http://localhost:8080/api/v1).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		cacheTTL:    DefaultCacheTTL,
		cacheSize:   defaultCacheSize,
		concurrency: DefaultConcurrency,
		backoff:     DefaultBackoff,
		batchDelay:  DefaultBatchDelay,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = cache.NewLRUCache[*Response](c.cacheSize, c.cacheTTL)
	c.sem = semaphore.NewWeighted(int64(c.concurrency))
	return c
}

// SetToken replaces the bearer token and drops cached responses, which
// belonged to the previous identity.
func (c *Client) SetToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
	c.InvalidateCache()
}

func (c *Client) bearer() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

// InvalidateCache drops every cached GET response. GETs already in flight
// are not cached when they complete.
func (c *Client) InvalidateCache() {
	c.cacheMu.Lock()
	c.generation++
	c.cache.Clear()
	c.cacheMu.Unlock()
}

func (c *Client) currentGeneration() uint64 {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	return c.generation
}

// store caches resp unless the cache was invalidated since gen.
func (c *Client) store(key string, resp *Response, gen uint64) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if c.generation == gen {
		c.cache.SetWithTTL(key, resp, c.cacheTTL)
	}
}

func cacheKey(req Request) string {
	key := http.MethodGet + " " + req.Path
	if len(req.Query) > 0 {
		// Encode sorts by key.
		key += "?" + req.Query.Encode()
	}
	return key
}

// Do executes req. GETs are served from cache when fresh and share a single
// HTTP call with identical concurrent GETs; other methods clear the cache.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Method != http.MethodGet {
		resp, err := c.send(ctx, req)
		c.InvalidateCache()
		return resp, err
	}

	key := cacheKey(req)
	if c.cacheTTL > 0 {
		if resp, ok := c.cache.Get(key); ok {
			return resp, nil
		}
	}

	// Callers arriving after an invalidation do not join a call started
	// before it.
	gen := c.currentGeneration()
	ch := c.group.DoChan(fmt.Sprintf("%d %s", gen, key), func() (interface{}, error) {
		// Detached from the first caller so its cancellation does not fail
		// the callers sharing this call.
		resp, err := c.send(context.WithoutCancel(ctx), req)
		if err != nil {
			return nil, err
		}
		if c.cacheTTL > 0 {
			c.store(key, resp, gen)
		}
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Response), nil
	}
}

// send performs the HTTP exchange under the concurrency limit, retrying 429
// responses per the backoff table. The slot is released while waiting.
func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		resp, err := c.roundTrip(ctx, req, payload)
		c.sem.Release(1)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < len(c.backoff) {
			wait := c.backoff[attempt]
			if d, ok := retryAfter(resp.Header); ok {
				wait = d
			}
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, newAPIError(resp)
		}
		return resp, nil
	}
}

func (c *Client) roundTrip(ctx context.Context, req Request, payload []byte) (*Response, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", req.Method, req.Path, err)
	}
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

// retryAfter reads a Retry-After header expressed in seconds.
func retryAfter(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
