package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

var tracer = otel.Tracer("github.com/linnemanlabs/ransomfuse/internal/feeds")

// FetchError is a transient feed failure: the upstream was unreachable,
// answered with a non-2xx status, or returned a body that is not the
// expected JSON. It aborts only the affected adapter's run.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrUnexpectedStatus is wrapped by FetchError for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

// FetcherOptions configures a Fetcher. Zero values pick defaults.
type FetcherOptions struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	// RatePerSecond limits requests per upstream host; 0 disables limiting.
	RatePerSecond float64
	Burst         int
	// CacheTTL keeps successful bodies in memory; 0 disables the cache.
	CacheTTL time.Duration
	// OnFetch is called once per GetJSON with the outcome label.
	OnFetch func(host, outcome string, dur time.Duration)
}

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "ransomfuse/1.0 (+threat-intel ingestion)"
	defaultMaxBytes  = 64 << 20
)

// Fetcher performs rate-limited, optionally cached JSON GETs.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	limiter   *hostLimiter
	cache     *gocache.Cache
	cacheTTL  time.Duration
	onFetch   func(host, outcome string, dur time.Duration)
	logger    log.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts FetcherOptions, logger log.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if logger == nil {
		logger = log.Nop()
	}
	f := &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		limiter:   newHostLimiter(opts.RatePerSecond, opts.Burst),
		cacheTTL:  opts.CacheTTL,
		onFetch:   opts.OnFetch,
		logger:    logger,
	}
	if opts.CacheTTL > 0 {
		f.cache = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return f
}

// GetJSON fetches rawURL and decodes the body into v. Numbers are decoded
// as json.Number when v is an interface-typed container.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, v any) error {
	ctx, span := tracer.Start(ctx, "feed.fetch", trace.WithAttributes(
		attribute.String("url.full", rawURL),
	))
	defer span.End()

	start := time.Now()
	body, cached, err := f.get(ctx, rawURL)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case cached:
		outcome = "cached"
	}
	span.SetAttributes(attribute.Bool("ransomfuse.cache_hit", cached))

	if err == nil {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if derr := dec.Decode(v); derr != nil {
			err = &FetchError{URL: rawURL, Err: fmt.Errorf("decode json: %w", derr)}
			outcome = "bad_body"
			// a cached body that does not decode must not be served again
			if f.cache != nil {
				f.cache.Delete(rawURL)
			}
		}
	}
	if f.onFetch != nil {
		f.onFetch(hostOf(rawURL), outcome, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.logger.Warn(ctx, "feed fetch failed", "url", rawURL, "outcome", outcome, "error", err)
		return err
	}
	span.SetAttributes(attribute.Int("http.response.body.size", len(body)))
	return nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, bool, error) {
	if f.cache != nil {
		if b, ok := f.cache.Get(rawURL); ok {
			return b.([]byte), true, nil
		}
	}

	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, false, &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, &FetchError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, &FetchError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, false, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, false, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if f.cache != nil {
		f.cache.Set(rawURL, body, f.cacheTTL)
	}
	return body, false, nil
}
