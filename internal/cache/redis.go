// Package cache keeps active narrations per (deck, language) in Redis so the
// playback page does not hit the database on every load.
//
// Entries are keyed by a per-deck generation that every invalidation bumps.
// A reader that loaded rows before a write and stores them after the
// write's invalidation files them under the old generation, where no later
// reader looks.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// DefaultTTL bounds staleness if an invalidation is lost.
const DefaultTTL = 10 * time.Minute

const scanCount = 100

// Options configures a Redis client.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient builds a go-redis client and verifies it with PING.
func NewClient(ctx context.Context, o Options) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NarrationCache stores JSON-encoded active narration lists.
type NarrationCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewNarrationCache wraps rdb. A non-positive ttl uses DefaultTTL.
func NewNarrationCache(rdb redis.UniversalClient, ttl time.Duration) *NarrationCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &NarrationCache{rdb: rdb, ttl: ttl}
}

// Key returns the cache key for deckID at generation gen and language; ""
// means all languages.
func Key(deckID string, gen int64, language string) string {
	if language == "" {
		language = "*"
	}
	return "narr:" + deckID + ":" + strconv.FormatInt(gen, 10) + ":" + language
}

// GenerationKey holds the current generation of deckID.
func GenerationKey(deckID string) string {
	return "narrgen:" + deckID
}

// deckPattern matches every key of deckID. Glob metacharacters in the id
// are escaped.
func deckPattern(deckID string) string {
	var b []byte
	for i := 0; i < len(deckID); i++ {
		switch c := deckID[i]; c {
		case '*', '?', '[', ']', '\\':
			b = append(b, '\\', c)
		default:
			b = append(b, c)
		}
	}
	return "narr:" + string(b) + ":*"
}

// Generation returns the current generation of deckID, 0 before the first
// invalidation.
func (c *NarrationCache) Generation(ctx context.Context, deckID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, GenerationKey(deckID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// GetActive returns the rows cached at gen and whether the key was present.
func (c *NarrationCache) GetActive(ctx context.Context, deckID, language string, gen int64) ([]domain.Narration, bool, error) {
	raw, err := c.rdb.Get(ctx, Key(deckID, gen, language)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rows []domain.Narration
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false, fmt.Errorf("decode cached narrations: %w", err)
	}
	if rows == nil {
		rows = []domain.Narration{}
	}
	return rows, true, nil
}

// SetActive stores rows under (deckID, gen, language). gen must be the
// generation read before the rows were loaded.
func (c *NarrationCache) SetActive(ctx context.Context, deckID, language string, gen int64, rows []domain.Narration) error {
	if rows == nil {
		rows = []domain.Narration{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, Key(deckID, gen, language), raw, c.ttl).Err()
}

// InvalidateDeck bumps the generation of deckID and drops its cached
// entries. The generation outlives every entry written under it by one TTL,
// so it cannot fall back to a generation with live entries.
func (c *NarrationCache) InvalidateDeck(ctx context.Context, deckID string) error {
	gk := GenerationKey(deckID)
	if _, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, gk)
		p.Expire(ctx, gk, 2*c.ttl)
		return nil
	}); err != nil {
		return err
	}

	var keys []string
	iter := c.rdb.Scan(ctx, 0, deckPattern(deckID), scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Ping reports whether Redis is reachable.
func (c *NarrationCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
