package search

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/config"
)

const redisKeyPrefix = "grantgraph:search:"

// New picks the first configured backend: Google Custom Search, then SerpAPI,
// then DuckDuckGo. With none configured it returns a NoopSearcher, which is a
// valid setup. Results are cached in Redis when rdb is non-nil, otherwise in
// process.
func New(cfg *config.SearchConfig, rdb *redis.Client, logger *zap.Logger) (Searcher, error) {
	var backend Searcher
	switch {
	case cfg.GoogleAPIKey != "" && cfg.GoogleCSEID != "":
		backend = NewGoogleSearcher(cfg.GoogleAPIKey, cfg.GoogleCSEID, cfg.Timeout)
	case cfg.SerpAPIKey != "":
		backend = NewSerpAPISearcher(cfg.SerpAPIKey, cfg.Timeout)
	case cfg.EnableDuckDuckGo:
		backend = NewDuckDuckGoSearcher(cfg.Timeout)
	default:
		logger.Info("No web search backend configured; enrichment disabled")
		return NoopSearcher{}, nil
	}

	var store Store
	if rdb != nil {
		store = NewRedisStore(rdb, redisKeyPrefix)
	} else {
		mem, err := NewMemoryStore(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		store = mem
	}

	logger.Info("Web search configured",
		zap.String("backend", backend.Name()),
		zap.Bool("redis_cache", rdb != nil),
		zap.Duration("cache_ttl", cfg.CacheTTL))
	return NewCachedSearcher(backend, store, cfg.CacheTTL, logger), nil
}
