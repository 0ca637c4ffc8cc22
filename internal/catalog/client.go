// Package catalog is the gateway to the external movie API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"reelstream/internal/metrics"
)

const (
	maxBodyBytes  = 16 << 20
	flightTimeout = time.Minute
)

// Client fetches movie records. Safe for concurrent use.
type Client struct {
	base        string
	http        *http.Client
	log         zerolog.Logger
	cache       Cache
	ttl         time.Duration
	maxAttempts uint
	initial     time.Duration
	group       singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the detached context shared by every caller waiting on one
// path. It is canceled when the last waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithCache caches successful payloads for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.ttl = ttl
	}
}

func WithMaxAttempts(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.initial = d
		}
	}
}

func New(base string, opts ...Option) *Client {
	c := &Client{
		base:        strings.TrimRight(base, "/"),
		http:        &http.Client{Timeout: 15 * time.Second},
		log:         zerolog.Nop(),
		maxAttempts: 3,
		initial:     300 * time.Millisecond,
		flights:     make(map[string]*flight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns every movie the API exposes.
func (c *Client) List(ctx context.Context) ([]Movie, error) {
	movies, err := getJSON[[]Movie](ctx, c, "list", "/movies")
	if err != nil {
		return nil, err
	}
	if movies == nil {
		movies = []Movie{}
	}
	return movies, nil
}

// Get returns a single movie. A missing record yields an error matching ErrNotFound.
func (c *Client) Get(ctx context.Context, id int64) (Movie, error) {
	return getJSON[Movie](ctx, c, "get", "/movies/"+strconv.FormatInt(id, 10))
}

// Invalidate drops cached payloads for the list and the given ids.
func (c *Client) Invalidate(ctx context.Context, ids ...int64) {
	if c.cache == nil {
		return
	}
	c.cache.Delete(ctx, "/movies")
	for _, id := range ids {
		c.cache.Delete(ctx, "/movies/"+strconv.FormatInt(id, 10))
	}
}

func getJSON[T any](ctx context.Context, c *Client, op, path string) (T, error) {
	var zero T
	if c.cache != nil {
		if raw, ok := c.cache.Get(ctx, path); ok {
			var out T
			if err := json.Unmarshal(raw, &out); err == nil {
				metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
				return out, nil
			}
			c.cache.Delete(ctx, path)
		}
		metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()
	}

	if err := ctx.Err(); err != nil {
		metrics.CatalogFetchTotal.WithLabelValues(op, "canceled").Inc()
		return zero, &FetchError{Op: op, Err: err}
	}

	f, ch := c.join(ctx, op, path)
	var res singleflight.Result
	select {
	case res = <-ch:
		c.leave(path, f)
	case <-ctx.Done():
		c.leave(path, f)
		metrics.CatalogFetchTotal.WithLabelValues(op, "canceled").Inc()
		return zero, &FetchError{Op: op, Err: ctx.Err()}
	}
	if res.Err != nil {
		metrics.CatalogFetchTotal.WithLabelValues(op, outcome(res.Err)).Inc()
		return zero, res.Err
	}

	raw := res.Val.([]byte)
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		err = &FetchError{Op: op, Err: fmt.Errorf("%w: %v", ErrBadResponse, err)}
		metrics.CatalogFetchTotal.WithLabelValues(op, outcome(err)).Inc()
		return zero, err
	}
	if c.cache != nil {
		c.cache.Set(ctx, path, raw, c.ttl)
	}
	metrics.CatalogFetchTotal.WithLabelValues(op, "ok").Inc()
	return out, nil
}

// join registers the caller on the flight for path and returns the shared
// result channel. One caller giving up does not cancel the others.
func (c *Client) join(ctx context.Context, op, path string) (*flight, <-chan singleflight.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[path]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[path] = f
	}
	f.waiters++
	ch := c.group.DoChan(path, func() (any, error) {
		tctx, cancel := context.WithTimeout(f.ctx, flightTimeout)
		defer cancel()
		return c.fetch(tctx, op, path)
	})
	return f, ch
}

func (c *Client) leave(path string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[path] == f {
		delete(c.flights, path)
	}
	// Later callers start a fresh request instead of joining a canceled one.
	c.group.Forget(path)
}

func (c *Client) fetch(ctx context.Context, op, path string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	b.MaxInterval = 8 * c.initial

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return c.attempt(ctx, op, path)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.CatalogRetryTotal.WithLabelValues(op).Inc()
			c.log.Debug().Err(err).Str("path", path).Dur("wait", wait).Msg("catalog retry")
		}),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Op: op, Err: err}
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) attempt(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, backoff.Permanent(&FetchError{Op: op, Err: err})
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&FetchError{Op: op, Err: ctx.Err()})
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, &FetchError{Op: op, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
		}
		return nil, &FetchError{Op: op, Err: fmt.Errorf("%w: %v", ErrUpstream, err)}
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(&FetchError{Op: op, Status: res.StatusCode, Err: ErrNotFound})
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
		return nil, &FetchError{Op: op, Status: res.StatusCode, Err: ErrUpstream}
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, backoff.Permanent(&FetchError{Op: op, Status: res.StatusCode, Err: ErrUpstream})
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Op: op, Status: res.StatusCode, Err: fmt.Errorf("%w: %v", ErrUpstream, err)}
	}
	return body, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
