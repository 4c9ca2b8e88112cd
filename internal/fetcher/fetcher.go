// Package fetcher retrieves pages out-of-band for the "test against URL" mode
// and runs field extraction on the detached document.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tmdgusya/crawl-selector/internal/config"
	"github.com/tmdgusya/crawl-selector/internal/extract"
	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/metrics"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

const fetchOK = "ok"

// TracerName names the tracer fetch spans are recorded on.
const TracerName = "github.com/tmdgusya/crawl-selector/fetcher"

// Fetcher downloads HTML documents with a hard timeout, a per-host rate limit,
// a body size cap and a short lived cache.
type Fetcher struct {
	client  *http.Client
	cfg     config.FetchConfig
	log     logger.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	cache   *lru.Cache[string, cachedPage]

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client. The configured timeout still applies.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithMetrics records fetch results on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithTracer records fetch spans on t instead of the global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(f *Fetcher) { f.tracer = t }
}

// New returns a Fetcher for cfg.
func New(cfg config.FetchConfig, log logger.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{},
		cfg:      cfg,
		log:      log.With(logger.String("component", "fetcher")),
		tracer:   otel.Tracer(TracerName),
		limiters: make(map[string]*rate.Limiter),
	}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		f.cache, _ = lru.New[string, cachedPage](cfg.CacheSize)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type cachedPage struct {
	body    []byte
	expires time.Time
}

// Close drops every cached page. The Fetcher owns no goroutines.
func (f *Fetcher) Close() {
	if f.cache != nil {
		f.cache.Purge()
	}
}

// Fetch downloads rawURL and parses it. Errors are *Error values.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	ctx, span := f.tracer.Start(ctx, "fetcher.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.full", rawURL)),
	)
	defer span.End()

	start := time.Now()
	doc, err := f.fetch(ctx, rawURL)

	result := fetchOK
	if err != nil {
		result = string(KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		f.log.Warn("Fetch failed",
			logger.String("url", rawURL),
			logger.String("kind", result),
			logger.Error(err),
		)
	} else {
		f.log.Debug("Fetched page",
			logger.String("url", rawURL),
			logger.Duration("duration", time.Since(start)),
		)
	}
	f.metrics.ObserveFetch(result, time.Since(start))
	return doc, err
}

// FetchAndExtract fetches rawURL and extracts every field from it.
func (f *Fetcher) FetchAndExtract(ctx context.Context, rawURL string, fields []recipe.SelectorField) (map[string]recipe.FieldTestResult, error) {
	doc, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	results := extract.ExtractAll(fields, doc.Selection)
	for _, r := range results {
		f.metrics.ObserveExtraction(r.Success)
	}
	return results, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: rawURL, Err: err}
	}
	key := u.String()

	if body, ok := f.cached(key); ok {
		return parse(key, body)
	}

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	if waitErr := f.limiter(u.Host).Wait(ctx); waitErr != nil {
		if ctx.Err() != nil {
			return nil, f.transportError(key, ctx.Err())
		}
		// The limiter refuses up front when the next slot is past the deadline.
		return nil, &Error{Kind: KindRateLimited, URL: key, Timeout: f.cfg.Timeout, Err: waitErr}
	}

	body, err := f.get(ctx, key)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		f.cache.Add(key, cachedPage{body: body, expires: time.Now().Add(f.cfg.CacheTTL)})
	}
	return parse(key, body)
}

func (f *Fetcher) cached(key string) ([]byte, bool) {
	if f.cache == nil {
		return nil, false
	}
	page, ok := f.cache.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(page.expires) {
		f.cache.Remove(key)
		return nil, false
	}
	return page.body, true
}

func (f *Fetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: target, Err: err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.transportError(target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{Kind: KindStatus, URL: target, StatusCode: resp.StatusCode}
	}

	reader := io.Reader(resp.Body)
	if f.cfg.MaxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, f.transportError(target, err)
	}
	if f.cfg.MaxBodyBytes > 0 && int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, &Error{Kind: KindTooLarge, URL: target, Limit: f.cfg.MaxBodyBytes}
	}
	return body, nil
}

func (f *Fetcher) transportError(target string, err error) *Error {
	return &Error{Kind: classify(err), URL: target, Timeout: f.cfg.Timeout, Err: err}
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		limit := rate.Inf
		if f.cfg.RatePerHost > 0 {
			limit = rate.Limit(f.cfg.RatePerHost)
		}
		l = rate.NewLimiter(limit, 1)
		f.limiters[host] = l
	}
	return l
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}

func parse(target string, body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindParse, URL: target, Err: err}
	}
	return doc, nil
}
