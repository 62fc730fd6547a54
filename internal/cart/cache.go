package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("cache miss")

	// ErrStaleCart is returned by Set when the cart was invalidated after
	// the generation passed in was read. Nothing is written.
	ErrStaleCart = errors.New("cart invalidated during load")
)

// generationTTL outlives any single cart load by a wide margin.
const generationTTL = 24 * time.Hour

// Cache holds rendered carts. Each user has a generation counter that
// Delete bumps; Set only writes when the caller's generation is current.
type Cache interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Generation(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, gen int64, c *Cart) error
	Delete(ctx context.Context, userID string) error
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCache{client: client, baseTTL: ttl}
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &c, nil
}

func (r *RedisCache) Generation(ctx context.Context, userID string) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

// Set writes c under WATCH on the generation key, so a Delete that lands
// between the check and the write aborts the transaction.
func (r *RedisCache) Set(ctx context.Context, userID string, gen int64, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	// jitter spreads expiry of carts cached in the same burst
	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	genKey := generationKey(userID)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if errors.Is(err, redis.Nil) {
			cur, err = 0, nil
		}
		if err != nil {
			return err
		}
		if cur != gen {
			return ErrStaleCart
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, cacheKey(userID), data, ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case errors.Is(err, ErrStaleCart), errors.Is(err, redis.TxFailedErr):
		return ErrStaleCart
	case err != nil:
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete drops the cached cart and bumps the generation in one MULTI.
func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	genKey := generationKey(userID)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, generationTTL)
		p.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "cart:" + userID
}

func generationKey(userID string) string {
	return "cart-gen:" + userID
}

// NopCache is used when no Redis is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Cart, error)        { return nil, ErrCacheMiss }
func (NopCache) Generation(context.Context, string) (int64, error) { return 0, nil }
func (NopCache) Set(context.Context, string, int64, *Cart) error   { return nil }
func (NopCache) Delete(context.Context, string) error              { return nil }
