// Package resultcache stores ranked related-products answers so repeated
// queries skip sampling and scoring. Entries are keyed by a fingerprint of
// the inputs that produced them, so a store shared between processes never
// serves a ranking computed from different data.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"armory/internal/intel/models"
	id "armory/pkg/domain"
	"armory/pkg/platform/sentinel"
)

// DefaultTTL bounds how long an entry survives without a rebuild.
const DefaultTTL = 10 * time.Minute

// Key identifies one cached answer.
type Key struct {
	Fingerprint string
	Target      id.ProductID
	Limit       int
}

func (k Key) String() string {
	return fmt.Sprintf("armory:related:%s:t%d:l%d", k.Fingerprint, k.Target, k.Limit)
}

// Fingerprint digests parts into a short key component. Parts are
// separated so ("ab", "c") and ("a", "bc") differ.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:12])
}

// Item is one ranked product ID with its score.
type Item struct {
	ID    id.ProductID `json:"id"`
	Score models.Score `json:"score"`
}

// Entry is a cached ranking. Records are resolved again on every hit so
// catalog edits between rebuilds are still reflected.
type Entry struct {
	Items   []Item `json:"items"`
	Sampled int    `json:"sampled"`
	Scored  int    `json:"scored"`
}

// Store persists entries. Get returns sentinel.ErrNotFound on a miss.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, error)
	Set(ctx context.Context, key Key, entry *Entry) error
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, Key) (*Entry, error) { return nil, sentinel.ErrNotFound }

func (Noop) Set(context.Context, Key, *Entry) error { return nil }

// RedisStore keeps entries in Redis as JSON.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed store. A non-positive ttl uses DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	raw, err := s.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached result: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached result: %w", err)
	}
	if err := s.client.Set(ctx, key.String(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set cached result: %w", err)
	}
	return nil
}
