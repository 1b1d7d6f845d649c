package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store keeps search results between requests.
type Store interface {
	Get(ctx context.Context, key string) ([]Result, bool, error)
	Set(ctx context.Context, key string, results []Result, ttl time.Duration) error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// RedisStore keeps results in Redis as JSON under a key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]Result, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false, fmt.Errorf("decode cached results: %w", err)
	}
	return results, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, results []Result, ttl time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// MemoryStore is a bounded in-process LRU with per-entry expiry.
type MemoryStore struct {
	cache *lru.Cache
	now   func() time.Time
}

type memoryEntry struct {
	results   []Result
	expiresAt time.Time
}

func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &MemoryStore{cache: c, now: time.Now}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]Result, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	entry := v.(memoryEntry)
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.cache.Remove(key)
		return nil, false, nil
	}
	return append([]Result(nil), entry.results...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, results []Result, ttl time.Duration) error {
	entry := memoryEntry{results: append([]Result(nil), results...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.cache.Add(key, entry)
	return nil
}

// CachedSearcher serves repeated searches from a Store. Cache failures are
// logged and fall through to the backend.
type CachedSearcher struct {
	next   Searcher
	store  Store
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	hits   int
	misses int
}

func NewCachedSearcher(next Searcher, store Store, ttl time.Duration, logger *zap.Logger) *CachedSearcher {
	return &CachedSearcher{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.Named("search-cache"),
	}
}

func (s *CachedSearcher) Name() string { return s.next.Name() }

func (s *CachedSearcher) Search(ctx context.Context, term string, n int) ([]Result, error) {
	key := cacheKey(s.next.Name(), term, n)

	cached, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Search cache read failed", zap.Error(err))
	}
	if ok {
		s.count(true)
		return cached, nil
	}
	s.count(false)

	results, err := s.next.Search(ctx, term, n)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, key, results, s.ttl); err != nil {
		s.logger.Warn("Search cache write failed", zap.Error(err))
	}
	return results, nil
}

// Stats returns the number of cache hits and misses so far.
func (s *CachedSearcher) Stats() (hits, misses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

func (s *CachedSearcher) count(hit bool) {
	s.mu.Lock()
	if hit {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()
}

func cacheKey(backend, term string, n int) string {
	norm := strings.ToLower(strings.Join(strings.Fields(term), " "))
	sum := sha256.Sum256([]byte(backend + "\x00" + norm + "\x00" + strconv.Itoa(n)))
	return hex.EncodeToString(sum[:16])
}
