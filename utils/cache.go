package utils

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL = time.Hour
	cacheOpTimeout  = 2 * time.Second
	// scanBatch and scanRounds bound one prefix invalidation to 10k keys.
	scanBatch  = 1000
	scanRounds = 10

	// PostDetailKeyPrefix prefixes cached post detail payloads.
	PostDetailKeyPrefix = "cache:post:detail:"
	// PostListKeyPrefix prefixes cached post listings.
	PostListKeyPrefix = "cache:posts:list:"
)

// PostDetailKey is the cache key of one post's detail payload.
func PostDetailKey(postID uint) string {
	return PostDetailKeyPrefix + strconv.FormatUint(uint64(postID), 10)
}

// CacheGetBytes returns the cached payload for key. A missing redis client,
// a miss and a lookup error all report false.
func CacheGetBytes(key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return b, true
	case errors.Is(err, redis.Nil):
		if Sugar != nil {
			Sugar.Debugf("cache miss key=%s", key)
		}
	default:
		if Sugar != nil {
			Sugar.Warnf("cache get failed key=%s err=%v", key, err)
		}
	}
	return nil, false
}

// CacheSetBytes stores b under key for ttl, falling back to an hour.
func CacheSetBytes(key string, b []byte, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil && Sugar != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// CacheSetJSON stores the JSON encoding of v.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		if Sugar != nil {
			Sugar.Warnf("cache encode failed key=%s err=%v", key, err)
		}
		return
	}
	CacheSetBytes(key, b, ttl)
}

// InvalidateByPrefix drops every key starting with prefix. SCAN keeps redis
// responsive; the sweep is capped and anything left expires with its TTL.
func InvalidateByPrefix(prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var cursor uint64
	for round := 0; round < scanRounds; round++ {
		keys, next, err := rc.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			if Sugar != nil {
				Sugar.Warnf("cache invalidate failed prefix=%s err=%v", prefix, err)
			}
			return
		}
		if len(keys) > 0 {
			if err := rc.Del(ctx, keys...).Err(); err != nil && Sugar != nil {
				Sugar.Warnf("cache delete failed prefix=%s keys=%d err=%v", prefix, len(keys), err)
			}
		}
		if cursor = next; cursor == 0 {
			return
		}
	}
}
