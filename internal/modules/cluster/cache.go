// README: Redis read-through cache in front of a cluster Reader.
package cluster

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "clusters:q:"
	defaultCacheTTL = time.Minute
	scanBatch       = 200
)

// CachedReader caches candidate query results in Redis. Redis failures never
// fail a query; the underlying reader is used instead.
type CachedReader struct {
	next  Reader
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedReader(next Reader, rdb *redis.Client, ttl time.Duration) *CachedReader {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedReader{next: next, redis: rdb, ttl: ttl}
}

func (c *CachedReader) Query(ctx context.Context, q Query) ([]RouteCluster, error) {
	key := cacheKey(q)
	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []RouteCluster
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Printf("[cluster] cache get %s: %v", key, err)
	}

	rows, err := c.next.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(rows); err == nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			log.Printf("[cluster] cache set %s: %v", key, err)
		}
	}
	return rows, nil
}

// Invalidate drops every cached query, called after a refresh run.
func (c *CachedReader) Invalidate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, cacheKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.redis.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// cacheKey is a digest of every field that changes the query's result set.
func cacheKey(q Query) string {
	var b strings.Builder
	b.WriteString(strings.Join(q.StartBuckets, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(q.EndBuckets, ","))
	b.WriteByte('|')
	if q.TimeBucket != nil {
		b.WriteString(strconv.Itoa(*q.TimeBucket))
	}
	b.WriteByte('|')
	if q.DayOfWeek != nil {
		b.WriteString(strconv.Itoa(*q.DayOfWeek))
	}
	b.WriteByte('|')
	if q.VehicleType != nil {
		b.WriteString("v=" + *q.VehicleType)
	}
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(q.limit()))
	sum := sha1.Sum([]byte(b.String()))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
