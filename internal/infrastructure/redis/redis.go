package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/citypulse/event-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(addr, pass string, db int, ttl time.Duration) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return &Cache{Client: rdb, TTL: ttl}
}

func viewsKey(eventID int64) string {
	return "event:views:" + strconv.FormatInt(eventID, 10)
}

func (c *Cache) GetEventViews(ctx context.Context, eventID int64) (int64, error) {
	val, err := c.Client.Get(ctx, viewsKey(eventID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrCacheMiss
		}
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (c *Cache) SetEventViews(ctx context.Context, eventID int64, views int64) error {
	return c.Client.Set(ctx, viewsKey(eventID), views, c.TTL).Err()
}

// AllowRequest: Simple Fixed Window Rate Limit
func (c *Cache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	key := "ratelimit:" + ip
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil // fail open
	}
	if count == 1 {
		_ = c.Client.Expire(ctx, key, window).Err()
	}
	return count <= int64(limit), nil
}
