package sessioncache

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultPrefix = "about-us-editor"

// logical keys shared by the drupal components
const (
	KeySessionCookie = "drupal_session_cookie"
	KeyAboutUsPage   = "drupal_about_us_content"
)

var tracer = otel.Tracer("members-manager/internal/sessioncache")

// Cache is a namespaced view over a Store, every key is stored as "<prefix>:<key>" so
// several consumers can share one backing store.
type Cache struct {
	store  Store
	prefix string
}

func New(store Store, prefix string) Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Cache{store: store, prefix: prefix}
}

func (c Cache) key(key string) string {
	return c.prefix + ":" + key
}

// Get returns the value under key, found is false when the entry is absent or expired.
func (c Cache) Get(ctx context.Context, key string) (value string, found bool, err error) {
	ctx, span := tracer.Start(ctx, "cache:get")
	defer span.End()
	span.SetAttributes(attribute.String("cache.key", c.key(key)))

	raw, err := c.store.Get(ctx, c.key(key))
	if errors.Is(err, ErrNotFound) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read from backing store")
		return "", false, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return string(raw), true, nil
}

func (c Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "cache:set")
	defer span.End()
	span.SetAttributes(attribute.String("cache.key", c.key(key)))

	err := c.store.Set(ctx, c.key(key), []byte(value), ttl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write to backing store")
	}
	return err
}

func (c Cache) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "cache:delete")
	defer span.End()
	span.SetAttributes(attribute.String("cache.key", c.key(key)))

	err := c.store.Delete(ctx, c.key(key))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete from backing store")
	}
	return err
}
