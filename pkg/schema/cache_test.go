package schema

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
)

type fakeProvider struct {
	calls   atomic.Int32
	err     atomic.Value // errBox
	release chan struct{}
	desc    *Descriptor
}

type errBox struct{ err error }

func (p *fakeProvider) setErr(err error) { p.err.Store(errBox{err}) }

func (p *fakeProvider) Describe(ctx context.Context) (*Descriptor, error) {
	p.calls.Add(1)
	if p.release != nil {
		<-p.release
	}
	if v, ok := p.err.Load().(errBox); ok && v.err != nil {
		return nil, v.err
	}
	return p.desc, nil
}

func newTestCache(p Provider, ttl time.Duration) (*Cache, *time.Time) {
	c := NewCache(p, ttl, nil, zap.NewNop())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_GetCachesWithinTTL(t *testing.T) {
	p := &fakeProvider{desc: Default()}
	c, now := newTestCache(p, time.Minute)

	d1, err := c.Get(context.Background())
	require.NoError(t, err)
	d2, err := c.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, d1, d2)
	assert.Equal(t, int32(1), p.calls.Load())

	*now = now.Add(2 * time.Minute)
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestCache_ServesStaleOnFailure(t *testing.T) {
	p := &fakeProvider{desc: Default()}
	c, now := newTestCache(p, time.Minute)

	first, err := c.Get(context.Background())
	require.NoError(t, err)

	p.setErr(errors.New("connection refused"))
	*now = now.Add(2 * time.Minute)

	d, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, d)

	_, err = c.Refresh(context.Background())
	assert.Error(t, err)
	assert.Same(t, first, c.Current())
}

func TestCache_NoDescriptorIsSchemaUnavailable(t *testing.T) {
	p := &fakeProvider{}
	p.setErr(errors.New("boom"))
	c, _ := newTestCache(p, time.Minute)

	_, err := c.Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSchemaUnavailable)
}

func TestCache_Invalidate(t *testing.T) {
	p := &fakeProvider{desc: Default()}
	c, _ := newTestCache(p, 0)

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.calls.Load())

	c.Invalidate()
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestCache_ConcurrentGetsShareOneRefresh(t *testing.T) {
	p := &fakeProvider{desc: Default(), release: make(chan struct{})}
	c, _ := newTestCache(p, time.Minute)

	var wg sync.WaitGroup
	results := make([]*Descriptor, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := c.Get(context.Background())
			assert.NoError(t, err)
			results[i] = d
		}(i)
	}

	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(p.release)
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	for _, d := range results {
		assert.Same(t, p.desc, d)
	}
}

func TestCache_CallerCancellationDoesNotAbortRefresh(t *testing.T) {
	p := &fakeProvider{desc: Default(), release: make(chan struct{})}
	c, _ := newTestCache(p, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(p.release)
	require.Eventually(t, func() bool { return c.Current() != nil }, time.Second, time.Millisecond)
}
