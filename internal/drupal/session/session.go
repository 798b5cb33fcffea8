// Package session obtains and caches the authenticated Drupal session cookie.
//
// Logging in drives a real browser and takes seconds, so a cookie is cached for its
// ttl and concurrent callers that miss the cache share a single login.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ESN-MoRe/members-manager/internal/components/assert"
	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	"github.com/ESN-MoRe/members-manager/internal/progress"
	"github.com/ESN-MoRe/members-manager/internal/sessioncache"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("members-manager/internal/drupal/session")

var ErrMissingCredentials = errors.New("drupal username and password must be configured")

const DefaultTTL = 2 * time.Hour

const (
	report_login = "manager.login"
	report_cache = "manager.cache"
)

type Credentials struct {
	Username string
	Password string
}

// Login performs the interactive login and returns the session cookies formatted as a
// Cookie header value ("name=value; name2=value2").
type Login interface {
	Login(ctx context.Context, creds Credentials, log progress.LogFunc) (string, error)
}

type LoginFunc func(ctx context.Context, creds Credentials, log progress.LogFunc) (string, error)

func (f LoginFunc) Login(ctx context.Context, creds Credentials, log progress.LogFunc) (string, error) {
	return f(ctx, creds, log)
}

// Cache is the subset of sessioncache.Cache the manager needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Options struct {
	Credentials Credentials
	// TTL defaults to DefaultTTL.
	TTL       time.Duration
	Telemetry telemetry.API
}

type Manager struct {
	cache Cache
	login Login
	creds Credentials
	ttl   time.Duration
	tel   telemetry.API

	flight singleflight.Group
	fanout progress.Fanout
}

func NewManager(cache Cache, login Login, opts Options) (*Manager, error) {
	assert.NotNil(cache, "cache")
	assert.NotNil(login, "login")

	if opts.Credentials.Username == "" || opts.Credentials.Password == "" {
		return nil, ErrMissingCredentials
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	return &Manager{
		cache: cache,
		login: login,
		creds: opts.Credentials,
		ttl:   opts.TTL,
		tel:   telemetry.NewScopedAPI("drupal_session", telemetry.OrDefault(opts.Telemetry)),
	}, nil
}

// GetSessionCookie returns the cached session cookie, logging in when there is none.
//
// Callers arriving while a login is running wait for that login instead of starting
// their own, and receive its log lines. A caller whose ctx ends stops waiting, the
// login itself keeps running so its result still lands in the cache.
func (m *Manager) GetSessionCookie(ctx context.Context, log progress.LogFunc) (string, error) {
	ctx, span := tracer.Start(ctx, "GetSessionCookie")
	defer span.End()

	cookie, found, err := m.cache.Get(ctx, sessioncache.KeySessionCookie)
	if err != nil {
		m.tel.ReportBroken(report_cache, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cached session")
		return "", fmt.Errorf("read cached session: %w", err)
	}
	if found {
		log.Log("Using cached Drupal session.")
		return cookie, nil
	}

	unsubscribe := m.fanout.Subscribe(log)
	defer unsubscribe()

	results := m.flight.DoChan(sessioncache.KeySessionCookie, func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-results:
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "failed to obtain session")
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) (cookie string, err error) {
	ctx, span := tracer.Start(ctx, "refresh")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("drupal login panicked: %v", r)
			m.tel.ReportBroken(report_login, err)
		}
	}()

	// a flight that finished right before this one started may have filled the cache
	cookie, found, err := m.cache.Get(ctx, sessioncache.KeySessionCookie)
	if err != nil {
		m.tel.ReportBroken(report_cache, err)
		return "", fmt.Errorf("read cached session: %w", err)
	}
	if found {
		return cookie, nil
	}

	m.fanout.Log("No cached session, logging into Drupal...")
	start := time.Now()
	cookie, err = m.login.Login(ctx, m.creds, m.fanout.Log)
	if err != nil {
		m.tel.ReportBroken(report_login, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return "", fmt.Errorf("drupal login: %w", err)
	}
	if cookie == "" {
		err = errors.New("drupal login returned no cookies")
		m.tel.ReportBroken(report_login, err)
		return "", err
	}
	m.tel.ReportDebug("login finished", "duration", time.Since(start))

	err = m.cache.Set(ctx, sessioncache.KeySessionCookie, cookie, m.ttl)
	if err != nil {
		m.tel.ReportBroken(report_cache, err)
		return "", fmt.Errorf("cache session: %w", err)
	}
	m.fanout.Log("Logged in, session cached.")
	return cookie, nil
}

// Invalidate drops the cached session so the next GetSessionCookie logs in again.
func (m *Manager) Invalidate(ctx context.Context) error {
	err := m.cache.Delete(ctx, sessioncache.KeySessionCookie)
	if err != nil {
		m.tel.ReportBroken(report_cache, err)
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}
