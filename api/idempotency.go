package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// HeaderIdempotencyKey names the request header carrying a client-chosen
// key for a mutation. Requests without the header are processed as-is.
const HeaderIdempotencyKey = "Idempotency-Key"

// RedisDeduper stores seen idempotency keys in Redis so repeated delivery
// of the same mutation is rejected across instances.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func dedupeKey(key string) string {
	return "idem:" + key
}

// Add records the key if it does not already exist. It returns true when
// the key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, dedupeKey(key), 1, r.ttl).Result()
}

// Remove deletes a previously recorded key so the caller may retry the
// mutation after a failure.
func (r *RedisDeduper) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, dedupeKey(key)).Err()
}

// idempotencyMiddleware rejects a mutation whose Idempotency-Key was seen
// before. A deduper outage never blocks writes; the key is released again
// when the handler responds with an error status so the client can retry.
func idempotencyMiddleware(deduper Deduper, logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(HeaderIdempotencyKey)
			if key == "" || deduper == nil {
				return next(c)
			}
			ctx := c.Request().Context()
			added, err := deduper.Add(ctx, key)
			if err != nil {
				if logger != nil {
					logger.Warnf("idempotency check unavailable: %v", err)
				}
				return next(c)
			}
			if !added {
				return respondError(c, http.StatusConflict, "duplicate request")
			}
			err = next(c)
			if err != nil || c.Response().Status >= http.StatusBadRequest {
				if remErr := deduper.Remove(ctx, key); remErr != nil && logger != nil {
					logger.Warnf("idempotency key release failed: %v", remErr)
				}
			}
			return err
		}
	}
}
