package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/HeadlineHub/internal/collector"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	listCacheTTL = 5 * time.Minute
	cycleLockTTL = 30 * time.Minute
)

// 只有持有者才能删除锁，避免过期后误删别人的锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache 提供两个可选能力：/api/news 的列表缓存与跨进程的聚合互斥锁
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}
	return &RedisCache{client: rdb}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func listCacheKey(version int64, q string) string {
	return fmt.Sprintf("headlines:list:%d:%s", version, q)
}

// GetList 以快照版本 + 查询词为 key；快照一旦替换，旧 key 自然失效
func (r *RedisCache) GetList(ctx context.Context, version int64, q string) ([]collector.Headline, bool) {
	bs, err := r.client.Get(ctx, listCacheKey(version, q)).Bytes()
	if err != nil {
		return nil, false
	}
	var cached []collector.Headline
	if err := json.Unmarshal(bs, &cached); err != nil {
		return nil, false
	}
	return cached, true
}

func (r *RedisCache) SetList(ctx context.Context, version int64, q string, items []collector.Headline) {
	bs, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, listCacheKey(version, q), bs, listCacheTTL).Err(); err != nil {
		log.Printf("warn: redis set list cache: %v", err)
	}
}

// TryLock 尝试获取聚合锁；已被其它进程持有时 ok 为 false
func (r *RedisCache) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	fullKey := "headlines:lock:" + key
	ok, err := r.client.SetNX(ctx, fullKey, token, cycleLockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, r.client, []string{fullKey}, token).Err(); err != nil {
			log.Printf("warn: redis unlock %s: %v", key, err)
		}
	}
	return release, true, nil
}
