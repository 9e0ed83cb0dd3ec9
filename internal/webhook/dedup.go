package webhook

import (
	"context"
	"time"

	"hire-onboarding/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultDedupTTL = 24 * time.Hour
	dedupPrefix     = "webhook:pandadoc:"
)

// Deduper short-circuits repeated deliveries. It is an optimisation only: every write
// behind the webhook is conditional, so a missed duplicate is harmless.
type Deduper interface {
	// FirstDelivery records key and reports whether it was not seen before.
	FirstDelivery(ctx context.Context, key string) bool
	// Forget drops key so a failed delivery can be processed again on retry.
	Forget(ctx context.Context, key string)
}

// RedisDeduper stores delivery keys with SETNX. Redis errors fail open.
type RedisDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisDeduper(client redis.UniversalClient, ttl time.Duration, log logger.Logger) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{client: client, ttl: ttl, logger: logger.ForComponent(log, "webhook_dedup")}
}

func (d *RedisDeduper) FirstDelivery(ctx context.Context, key string) bool {
	if d == nil || d.client == nil || key == "" {
		return true
	}
	ok, err := d.client.SetNX(ctx, dedupPrefix+key, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("webhook dedup unavailable", map[string]interface{}{"error": err.Error()})
		return true
	}
	return ok
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) {
	if d == nil || d.client == nil || key == "" {
		return
	}
	if err := d.client.Del(ctx, dedupPrefix+key).Err(); err != nil {
		d.logger.Warn("failed to clear webhook dedup key", map[string]interface{}{"error": err.Error()})
	}
}

type noDedup struct{}

func (noDedup) FirstDelivery(context.Context, string) bool { return true }
func (noDedup) Forget(context.Context, string)             {}
