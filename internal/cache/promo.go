// Package cache provides a redis read-through cache for promo lookups.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/promo"
)

// Client is the subset of redis commands the cache needs. *redis.Client
// satisfies it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Promos caches FindByCode results in redis and drops them whenever the promo
// is written. Other calls go straight to the wrapped repository.
//
// Cached usage counts can lag behind the database; IncrementUsage stays
// authoritative for the usage limit.
type Promos struct {
	promo.Repository

	rdb Client
	ttl time.Duration
}

var _ promo.Repository = (*Promos)(nil)

// NewPromos wraps repo with a cache whose entries live for ttl.
func NewPromos(repo promo.Repository, rdb Client, ttl time.Duration) *Promos {
	return &Promos{Repository: repo, rdb: rdb, ttl: ttl}
}

func codeKey(code string) string { return "promo:code:" + code }

func idKey(id string) string { return "promo:id:" + id }

// FindByCode returns the cached promo or loads and caches it. Redis failures
// degrade to a plain repository lookup.
func (c *Promos) FindByCode(ctx context.Context, code string) (*promo.Promo, error) {
	lg := zctx.From(ctx)

	data, err := c.rdb.Get(ctx, codeKey(code)).Bytes()
	switch {
	case err == nil:
		p, decErr := decodePromo(data)
		if decErr == nil {
			return p, nil
		}
		lg.Warn("Dropping undecodable promo cache entry", zap.String("code", code), zap.Error(decErr))
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Promo cache read failed", zap.String("code", code), zap.Error(err))
	}

	p, err := c.Repository.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	c.store(ctx, p)
	return p, nil
}

func (c *Promos) store(ctx context.Context, p *promo.Promo) {
	var e jx.Encoder
	encodePromo(&e, p)

	if err := c.rdb.Set(ctx, codeKey(p.Code), e.Bytes(), c.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Promo cache write failed", zap.String("code", p.Code), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, idKey(p.ID), p.Code, c.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Promo cache write failed", zap.String("id", p.ID), zap.Error(err))
	}
}

// Update writes through and drops the entry cached under the old code.
func (c *Promos) Update(ctx context.Context, p *promo.Promo) error {
	if err := c.Repository.Update(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, p.ID)
	return nil
}

// Delete removes the promo and its cache entry.
func (c *Promos) Delete(ctx context.Context, id string) error {
	if err := c.Repository.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

// IncrementUsage consumes a use and drops the cached usage count.
func (c *Promos) IncrementUsage(ctx context.Context, id string) error {
	if err := c.Repository.IncrementUsage(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

// DecrementUsage gives back a use and drops the cached usage count.
func (c *Promos) DecrementUsage(ctx context.Context, id string) error {
	if err := c.Repository.DecrementUsage(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *Promos) invalidate(ctx context.Context, id string) {
	code, err := c.rdb.Get(ctx, idKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zctx.From(ctx).Warn("Promo cache read failed", zap.String("id", id), zap.Error(err))
		}
		return
	}
	if err := c.rdb.Del(ctx, codeKey(code), idKey(id)).Err(); err != nil {
		zctx.From(ctx).Warn("Promo cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
}
