// Package fonts caches the generated font stylesheet of the media library.
// Any change that can alter which fonts a user may see invalidates it.
package fonts

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionKey    = "fonts:version"
	stylesheetKey = "fonts:stylesheet"
	bumpChannel   = "fonts.bump"
)

// Cache wraps the Redis copy of the font stylesheet.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A zero ttl keeps entries until invalidated.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current stylesheet version, initialising it when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey).Int64()
	}
	return ver, err
}

// Stylesheet returns the cached stylesheet or builds and stores it.
func (c *Cache) Stylesheet(ctx context.Context, build func(context.Context) (string, error)) (string, error) {
	if build == nil {
		return "", errors.New("fonts: stylesheet builder required")
	}
	if c == nil || c.client == nil {
		return build(ctx)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	key := stylesheetKey + ":" + strconv.FormatInt(ver, 10)
	css, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return css, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", err
	}
	css, err = build(ctx)
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, key, css, c.ttl).Err(); err != nil {
		return "", err
	}
	return css, nil
}

// Invalidate drops the current stylesheet and moves to a new version so
// readers holding the old version rebuild.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return err
	}
	if err := c.client.Del(ctx, stylesheetKey+":"+strconv.FormatInt(ver, 10)).Err(); err != nil {
		return err
	}
	next, err := c.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(next, 10)).Err()
}
