package schema

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/metrics"
)

// refreshTimeout bounds a shared refresh so one caller's cancellation does not
// fail the others waiting on it.
const refreshTimeout = 30 * time.Second

// Cache holds the current descriptor and refreshes it from a Provider when it
// is older than the TTL. Concurrent refreshes collapse into one provider call.
// When a refresh fails and a previous descriptor exists, the stale copy is
// served.
type Cache struct {
	provider Provider
	ttl      time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.RWMutex
	current   *Descriptor
	fetchedAt time.Time
	stale     bool

	group singleflight.Group
}

// NewCache creates a cache. A non-positive ttl never expires the descriptor
// on its own; Invalidate still forces a refresh.
func NewCache(provider Provider, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *Cache {
	return &Cache{
		provider: provider,
		ttl:      ttl,
		metrics:  m,
		logger:   logger.Named("schema-cache"),
		now:      time.Now,
	}
}

// Get returns a fresh descriptor, refreshing if needed.
func (c *Cache) Get(ctx context.Context) (*Descriptor, error) {
	if d, ok := c.fresh(); ok {
		return d, nil
	}

	d, err := c.refresh(ctx)
	if err == nil {
		return d, nil
	}

	c.mu.RLock()
	stale := c.current
	c.mu.RUnlock()
	if stale != nil && ctx.Err() == nil {
		c.logger.Warn("Schema refresh failed, serving stale descriptor",
			zap.String("version", stale.Version()),
			zap.Error(err))
		return stale, nil
	}
	return nil, err
}

// Refresh reloads the descriptor now and reports provider failures even when
// a stale copy exists.
func (c *Cache) Refresh(ctx context.Context) (*Descriptor, error) {
	c.Invalidate()
	return c.refresh(ctx)
}

// Invalidate marks the current descriptor stale. It is still served if the
// next refresh fails.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// Current returns the cached descriptor without refreshing, or nil.
func (c *Cache) Current() *Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Cache) fresh() (*Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil || c.stale {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.current, true
}

func (c *Cache) refresh(ctx context.Context) (*Descriptor, error) {
	ch := c.group.DoChan("describe", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		start := c.now()
		d, err := c.provider.Describe(loadCtx)
		c.metrics.ObserveSchemaRefresh(err)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		prev := c.current
		c.current = d
		c.fetchedAt = c.now()
		c.stale = false
		c.mu.Unlock()

		if prev == nil || prev.Version() != d.Version() {
			c.logger.Info("Schema loaded",
				zap.String("version", d.Version()),
				zap.String("source", d.Source()),
				zap.Int("labels", len(d.Labels())),
				zap.Int("relationship_types", len(d.RelationshipTypes())),
				zap.Duration("elapsed", c.now().Sub(start)))
		}
		return d, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			if apperrors.KindOf(res.Err) == "" {
				return nil, apperrors.New(apperrors.KindSchemaUnavailable, "schema could not be loaded", res.Err)
			}
			return nil, res.Err
		}
		return res.Val.(*Descriptor), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
