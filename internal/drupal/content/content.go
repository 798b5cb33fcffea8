// Package content fetches the raw HTML of the "about us" page body out of the Drupal
// node edit form, using the session from package session.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ESN-MoRe/members-manager/internal/components/assert"
	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	"github.com/ESN-MoRe/members-manager/internal/progress"
	"github.com/ESN-MoRe/members-manager/internal/sessioncache"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("members-manager/internal/drupal/content")

// ErrUnauthenticated means upstream served a page without the editor textarea, which is
// what Drupal does when the session is no longer valid server side.
var ErrUnauthenticated = errors.New("drupal served a page without the content editor, the session is likely invalid")

const (
	DefaultBaseUrl     = "https://more.esn.it"
	DefaultContentPath = "/?q=node/104/edit"
	DefaultSelector    = "#edit-body-und-0-value"
	DefaultTTL         = time.Hour
)

const (
	report_fetch = "fetcher.get-content"
	report_cache = "fetcher.cache"
)

type Sessions interface {
	GetSessionCookie(ctx context.Context, log progress.LogFunc) (string, error)
	Invalidate(ctx context.Context) error
}

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Options struct {
	BaseUrl     string
	ContentPath string
	// Selector locates the textarea holding the page body.
	Selector string
	TTL      time.Duration
	// ReloginOnRetry also drops the cached session before the second attempt, so the
	// retry runs with a fresh login instead of the cookie that just failed.
	ReloginOnRetry    bool
	Timeout           time.Duration
	RequestsPerSecond float64
	Telemetry         telemetry.API
}

type Fetcher struct {
	cache          Cache
	sessions       Sessions
	http           *resty.Client
	contentPath    string
	selector       string
	ttl            time.Duration
	reloginOnRetry bool
	tel            telemetry.API

	flight singleflight.Group
	fanout progress.Fanout
}

func NewFetcher(cache Cache, sessions Sessions, opts Options) (*Fetcher, error) {
	assert.NotNil(cache, "cache")
	assert.NotNil(sessions, "sessions")

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.ContentPath == "" {
		opts.ContentPath = DefaultContentPath
	}
	if opts.Selector == "" {
		opts.Selector = DefaultSelector
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	tel := telemetry.NewScopedAPI("drupal_content", telemetry.OrDefault(opts.Telemetry))
	return &Fetcher{
		cache:          cache,
		sessions:       sessions,
		http:           newHttpClient(baseUrl, opts.Timeout, opts.RequestsPerSecond, tel),
		contentPath:    opts.ContentPath,
		selector:       opts.Selector,
		ttl:            opts.TTL,
		reloginOnRetry: opts.ReloginOnRetry,
		tel:            tel,
	}, nil
}

type getOptions struct {
	attempts int
	refresh  bool
}

type GetOption func(o *getOptions)

// WithoutRetry makes the first failure terminal. It only applies when the call starts a
// fetch: a caller that joins a fetch already in flight shares that fetch, including its
// retry.
func WithoutRetry() GetOption {
	return func(o *getOptions) {
		o.attempts = 1
	}
}

// ForceRefresh skips the cached copy and fetches the page again.
func ForceRefresh() GetOption {
	return func(o *getOptions) {
		o.refresh = true
	}
}

// GetContent returns the page body HTML, from the cache when possible.
//
// Concurrent callers that miss the cache share one fetch. A failed fetch is retried once
// after dropping the cached content (and the session when ReloginOnRetry is set), the
// second failure is returned to every caller of that fetch.
func (f *Fetcher) GetContent(ctx context.Context, log progress.LogFunc, opts ...GetOption) (string, error) {
	o := getOptions{attempts: 2}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := tracer.Start(ctx, "GetContent")
	defer span.End()
	span.SetAttributes(
		attribute.Int("attempts", o.attempts),
		attribute.Bool("refresh", o.refresh),
	)

	if o.refresh {
		err := f.cache.Delete(ctx, sessioncache.KeyAboutUsPage)
		if err != nil {
			f.tel.ReportBroken(report_cache, err)
			return "", fmt.Errorf("drop cached content: %w", err)
		}
	} else {
		cached, found, err := f.cache.Get(ctx, sessioncache.KeyAboutUsPage)
		if err != nil {
			f.tel.ReportBroken(report_cache, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read cached content")
			return "", fmt.Errorf("read cached content: %w", err)
		}
		if found {
			log.Log("Using cached page content.")
			return cached, nil
		}
	}

	unsubscribe := f.fanout.Subscribe(log)
	defer unsubscribe()

	results := f.flight.DoChan(sessioncache.KeyAboutUsPage, func() (any, error) {
		return f.fetch(context.WithoutCancel(ctx), o.attempts)
	})

	select {
	case res := <-results:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "failed to fetch content")
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *Fetcher) fetch(ctx context.Context, attempts int) (content string, err error) {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content fetch panicked: %v", r)
			f.tel.ReportBroken(report_fetch, err)
		}
	}()

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			f.fanout.Log(fmt.Sprintf("Fetch failed (%v), retrying once...", err))

			derr := f.cache.Delete(ctx, sessioncache.KeyAboutUsPage)
			if derr != nil {
				f.tel.ReportBroken(report_cache, derr)
				return "", fmt.Errorf("drop cached content: %w", derr)
			}
			if f.reloginOnRetry {
				ierr := f.sessions.Invalidate(ctx)
				if ierr != nil {
					return "", ierr
				}
			}
		}

		content, err = f.fetchOnce(ctx, f.fanout.Log)
		if err == nil {
			serr := f.cache.Set(ctx, sessioncache.KeyAboutUsPage, content, f.ttl)
			if serr != nil {
				f.tel.ReportBroken(report_cache, serr)
				return "", fmt.Errorf("cache content: %w", serr)
			}
			f.fanout.Log("Page content fetched and cached.")
			return content, nil
		}
		f.tel.ReportWarning(report_fetch, "attempt", attempt, err)

		if errors.Is(err, context.Canceled) {
			break
		}
	}

	f.tel.ReportBroken(report_fetch, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, "all attempts failed")
	return "", err
}

func (f *Fetcher) fetchOnce(ctx context.Context, log progress.LogFunc) (string, error) {
	cookie, err := f.sessions.GetSessionCookie(ctx, log)
	if err != nil {
		return "", err
	}

	log.Log("Fetching page content from Drupal...")
	res, err := f.http.R().
		SetContext(ctx).
		SetHeader("cookie", cookie).
		Get(f.contentPath)
	if err != nil {
		return "", fmt.Errorf("fetch content page: %w", err)
	}
	if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
		return "", fmt.Errorf("%w: status %s", ErrUnauthenticated, res.Status())
	}
	if res.IsError() {
		return "", fmt.Errorf("fetch content page: status %s", res.Status())
	}

	return extractContent(res.Body(), f.selector)
}

func extractContent(body []byte, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse content page: %w", err)
	}
	textarea := doc.Find(selector).First()
	if textarea.Length() == 0 {
		return "", fmt.Errorf("%w: %s not found", ErrUnauthenticated, selector)
	}
	return textarea.Text(), nil
}
