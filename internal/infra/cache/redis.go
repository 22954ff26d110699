package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	repo "storefront/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "payment_session:"
	sessionResultTTL = 24 * time.Hour
)

// 決済callbackの重複に即答するためのキャッシュ。正はDB側なので消えても困らない。
type RedisPaymentSessionCache struct {
	client *redis.Client
}

func NewRedisPaymentSessionCache(client *redis.Client) *RedisPaymentSessionCache {
	return &RedisPaymentSessionCache{client: client}
}

func (c *RedisPaymentSessionCache) Get(ctx context.Context, sessionID string) (repo.ReconcileResult, bool, error) {
	raw, err := c.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return repo.ReconcileResult{}, false, nil
	}
	if err != nil {
		return repo.ReconcileResult{}, false, err
	}

	var result repo.ReconcileResult
	if err := json.Unmarshal(raw, &result); err != nil {
		//壊れたエントリは無視してDBに任せる
		return repo.ReconcileResult{}, false, nil
	}
	return result, true, nil
}

func (c *RedisPaymentSessionCache) Set(ctx context.Context, sessionID string, result repo.ReconcileResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKeyPrefix+sessionID, raw, sessionResultTTL).Err()
}
