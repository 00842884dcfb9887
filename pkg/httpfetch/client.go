package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/gadgethost/pkg/buildinfo"
	"github.com/matzehuels/gadgethost/pkg/cache"
	"github.com/matzehuels/gadgethost/pkg/observability"
)

// ErrNoSigner is returned for signed or oauth requests when no Signer is set.
var ErrNoSigner = errors.New("no signer configured")

// Options configure an HTTPFetcher. Zero values select the defaults.
type Options struct {
	Timeout      time.Duration // per attempt, default 10s
	Attempts     int           // default 3
	RetryDelay   time.Duration // initial backoff, default 500ms
	CacheSize    int           // LRU entries, default 512; negative disables caching
	MaxBodyBytes int64         // default 4 MiB
	Signer       Signer
	Keyer        cache.Keyer
	Client       *http.Client
}

func (o *Options) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	if o.CacheSize == 0 {
		o.CacheSize = 512
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 4 << 20
	}
	if o.Keyer == nil {
		o.Keyer = cache.NewDefaultKeyer()
	}
	if o.Client == nil {
		o.Client = NewHTTPClient(o.Timeout)
	}
}

// HTTPFetcher is the net/http-backed Fetcher.
type HTTPFetcher struct {
	opts  Options
	cache *lru.Cache[string, *Response]
}

// New creates an HTTPFetcher.
func New(opts Options) (*HTTPFetcher, error) {
	opts.setDefaults()
	f := &HTTPFetcher{opts: opts}
	if opts.CacheSize > 0 {
		c, err := lru.New[string, *Response](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create response cache: %w", err)
		}
		f.cache = c
	}
	return f, nil
}

// NewHTTPClient creates an HTTP client with the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Fetch performs a GET. Successful unsigned responses are cached unless
// req.IgnoreCache is set. The returned Response must not be modified.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.URL == "" {
		return nil, errors.New("empty fetch url")
	}
	cacheable := f.cache != nil && !signed(req)
	key := f.opts.Keyer.HTTPKey(req.URL)

	if cacheable && !req.IgnoreCache {
		if resp, ok := f.cache.Get(key); ok {
			observability.Cache().OnCacheHit(ctx, "http")
			return resp, nil
		}
		observability.Cache().OnCacheMiss(ctx, "http")
	}

	var resp *Response
	err := cache.Retry(ctx, f.opts.Attempts, f.opts.RetryDelay, func() error {
		r, err := f.do(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return checkStatus(r.StatusCode)
	})
	if err != nil && resp == nil {
		return nil, err
	}
	if err != nil && !errors.Is(err, cache.ErrNetwork) {
		return nil, err
	}

	if cacheable && resp.OK() {
		f.cache.Add(key, resp)
		observability.Cache().OnCacheSet(ctx, "http", len(resp.Body))
	}
	return resp, nil
}

// Purge empties the response cache.
func (f *HTTPFetcher) Purge() {
	if f.cache != nil {
		f.cache.Purge()
	}
}

func (f *HTTPFetcher) do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", buildinfo.UserAgent())

	if signed(req) {
		if f.opts.Signer == nil {
			return nil, fmt.Errorf("%w for authz=%s", ErrNoSigner, req.AuthType)
		}
		if err := f.opts.Signer.Sign(ctx, httpReq, req); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	}

	host, path := hostPath(httpReq.URL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	httpResp, err := f.opts.Client.Do(httpReq)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, path, err)
		return nil, cache.Retryable(fmt.Errorf("%w: read body: %v", cache.ErrNetwork, err))
	}
	hooks.OnResponse(ctx, http.MethodGet, host, path, httpResp.StatusCode, time.Since(start))

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

// checkStatus marks 5xx responses retryable. Other statuses are final and are
// handed to the caller as-is.
func checkStatus(code int) error {
	if code >= 500 {
		return cache.Retryable(fmt.Errorf("%w: status %d", cache.ErrNetwork, code))
	}
	return nil
}

func signed(req *Request) bool {
	return req.AuthType == AuthSigned || req.AuthType == AuthOAuth
}

func hostPath(u *url.URL) (string, string) {
	if u == nil {
		return "", ""
	}
	return u.Host, u.Path
}

var _ Fetcher = (*HTTPFetcher)(nil)
