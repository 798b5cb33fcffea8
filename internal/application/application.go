// Package application wires the members editor components together from a Config.
package application

import (
	"context"
	"errors"
	"time"

	"github.com/ESN-MoRe/members-manager/internal/components/chrono"
	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	"github.com/ESN-MoRe/members-manager/internal/drupal/browser"
	"github.com/ESN-MoRe/members-manager/internal/drupal/content"
	"github.com/ESN-MoRe/members-manager/internal/drupal/images"
	"github.com/ESN-MoRe/members-manager/internal/drupal/session"
	"github.com/ESN-MoRe/members-manager/internal/members"
	"github.com/ESN-MoRe/members-manager/internal/sessioncache"
)

type Application struct {
	Config Config

	Store    sessioncache.Store
	Cache    sessioncache.Cache
	Browser  *browser.Browser
	Sessions *session.Manager
	Content  *content.Fetcher
	Images   *images.Deployer
	Members  *members.Service
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// New builds every component. session.ErrMissingCredentials is returned when the
// Drupal credentials are not configured.
func New(ctx context.Context, cfg Config, tel telemetry.API) (*Application, error) {
	tel = telemetry.OrDefault(tel)

	store, err := sessioncache.Open(ctx, cfg.Cache, chrono.StandardImpl{})
	if err != nil {
		return nil, err
	}
	app, err := build(cfg, store, tel)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return app, nil
}

func build(cfg Config, store sessioncache.Store, tel telemetry.API) (*Application, error) {
	cache := sessioncache.New(store, cfg.Cache.Prefix)

	b, err := browser.New(browser.Options{
		BaseUrl:        cfg.Drupal.BaseUrl,
		LoginPath:      cfg.Drupal.LoginPath,
		ImcePath:       cfg.Drupal.ImcePath,
		ExecutablePath: cfg.Drupal.Browser.ExecutablePath,
		Headless:       cfg.Drupal.Browser.IsHeadless(),
		StepTimeout:    seconds(cfg.Drupal.Browser.StepTimeoutSeconds),
		UploadTimeout:  seconds(cfg.Drupal.Browser.UploadTimeoutSeconds),
		MinListedFiles: cfg.Drupal.Browser.MinListedFiles,
		Telemetry:      tel,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(cache, b, session.Options{
		Credentials: session.Credentials{
			Username: cfg.Drupal.Username,
			Password: cfg.Drupal.Password,
		},
		TTL:       minutes(cfg.Cache.SessionTTLMinutes),
		Telemetry: tel,
	})
	if err != nil {
		return nil, err
	}

	fetcher, err := content.NewFetcher(cache, sessions, content.Options{
		BaseUrl:           cfg.Drupal.BaseUrl,
		ContentPath:       cfg.Drupal.ContentPath,
		Selector:          cfg.Drupal.ContentSelector,
		TTL:               minutes(cfg.Cache.ContentTTLMinutes),
		ReloginOnRetry:    cfg.Drupal.ShouldReloginOnRetry(),
		Timeout:           seconds(cfg.Drupal.RequestTimeoutSeconds),
		RequestsPerSecond: cfg.Drupal.RequestsPerSecond,
		Telemetry:         tel,
	})
	if err != nil {
		return nil, err
	}

	return &Application{
		Config:   cfg,
		Store:    store,
		Cache:    cache,
		Browser:  b,
		Sessions: sessions,
		Content:  fetcher,
		Images:   images.NewDeployer(sessions, b, tel),
		Members:  members.NewService(fetcher, tel),
	}, nil
}

func (a *Application) Close() error {
	return a.Store.Close()
}
