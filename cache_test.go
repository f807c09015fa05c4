package jpostcode

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves the fixture rows and counts calls.
type fakeSource struct {
	calls   atomic.Int32
	release chan struct{} // when non-nil, Records blocks until it is closed
	err     error
}

func (s *fakeSource) Records(ctx context.Context, region Region) ([]Record, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return fixtureRecords(), nil
}

func TestIndexCache_BuildsOnceForConcurrentCallers(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	cache := NewIndexCache(nil, src)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Index, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx, err := cache.GetOrBuild(context.Background(), RegionTest)
			assert.NoError(t, err)
			results[i] = idx
		}()
	}

	// Let every caller join the in-flight build before releasing it.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, idx := range results {
		assert.Same(t, results[0], idx)
	}
}

func TestIndexCache_PersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{}

	first := NewIndexCache(NewStore(WithCacheDir(dir)), src)
	built, err := first.GetOrBuild(context.Background(), RegionTest)
	require.NoError(t, err)
	require.Equal(t, int32(1), src.calls.Load())

	// A fresh cache over the same directory loads the blob instead of building.
	second := NewIndexCache(NewStore(WithCacheDir(dir)), src)
	loaded, err := second.GetOrBuild(context.Background(), RegionTest)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, built.Lookup("150", LookupOptions{NoLimit: true}), loaded.Lookup("150", LookupOptions{NoLimit: true}))
}

func TestIndexCache_RegionsAreIndependent(t *testing.T) {
	src := &fakeSource{}
	cache := NewIndexCache(nil, src)

	test, err := cache.GetOrBuild(context.Background(), RegionTest)
	require.NoError(t, err)
	national, err := cache.GetOrBuild(context.Background(), RegionNational)
	require.NoError(t, err)

	assert.Equal(t, int32(2), src.calls.Load())
	assert.Empty(t, test.Lookup("16305"))
	assert.Len(t, national.Lookup("16305"), 3)
}

func TestIndexCache_Lookup(t *testing.T) {
	cache := NewIndexCache(nil, &fakeSource{})

	got, err := cache.Lookup(context.Background(), RegionTest, "150-0031")
	require.NoError(t, err)
	assert.Equal(t, []Address{{Code: "1500031", Prefecture: "東京都", City: "渋谷区", Area: "桜丘町"}}, got)

	got, err = cache.Lookup(context.Background(), RegionTest, "150")
	require.NoError(t, err)
	assert.Len(t, got, MaxResults)

	got, err = cache.Lookup(context.Background(), RegionTest, "150", LookupOptions{NoLimit: true})
	require.NoError(t, err)
	assert.Len(t, got, len(shibuyaAreas))

	got, err = cache.Lookup(context.Background(), RegionTest, "9999999")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestIndexCache_InvalidRegion(t *testing.T) {
	src := &fakeSource{}
	cache := NewIndexCache(nil, src)

	_, err := cache.GetOrBuild(context.Background(), Region("hokkaido"))
	assert.ErrorIs(t, err, ErrInvalidRegion)
	_, err = cache.Rebuild(context.Background(), Region(""))
	assert.ErrorIs(t, err, ErrInvalidRegion)
	_, err = cache.Lookup(context.Background(), Region("Tokyo "), "150")
	assert.ErrorIs(t, err, ErrInvalidRegion)
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestIndexCache_NoSourceNoBlob(t *testing.T) {
	cache := NewIndexCache(NewStore(WithCacheDir(t.TempDir())), nil)

	_, err := cache.GetOrBuild(context.Background(), RegionTest)
	assert.ErrorIs(t, err, ErrIndexNotFound)
	_, err = cache.Rebuild(context.Background(), RegionTest)
	assert.Error(t, err)
}

func TestIndexCache_BuildErrorIsNotCached(t *testing.T) {
	src := &fakeSource{err: errors.New("archive unavailable")}
	cache := NewIndexCache(nil, src)

	_, err := cache.GetOrBuild(context.Background(), RegionTest)
	require.Error(t, err)
	_, ok := cache.Get(RegionTest)
	assert.False(t, ok)

	src.err = nil
	_, err = cache.GetOrBuild(context.Background(), RegionTest)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestIndexCache_InvalidateAndRebuild(t *testing.T) {
	src := &fakeSource{}
	cache := NewIndexCache(nil, src)

	first, err := cache.GetOrBuild(context.Background(), RegionTest)
	require.NoError(t, err)

	cache.Invalidate(RegionTest)
	_, ok := cache.Get(RegionTest)
	assert.False(t, ok)

	second, err := cache.GetOrBuild(context.Background(), RegionTest)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	rebuilt, err := cache.Rebuild(context.Background(), RegionTest)
	require.NoError(t, err)
	assert.NotSame(t, second, rebuilt)
	current, ok := cache.Get(RegionTest)
	require.True(t, ok)
	assert.Same(t, rebuilt, current)
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestIndexCache_Put(t *testing.T) {
	cache := NewIndexCache(nil, nil)
	idx, _ := buildFixture(t)

	cache.Put(RegionTokyo, idx)
	got, err := cache.GetOrBuild(context.Background(), RegionTokyo)
	require.NoError(t, err)
	assert.Same(t, idx, got)
}

func TestIndexCache_CallerCancellation(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	cache := NewIndexCache(nil, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.GetOrBuild(ctx, RegionTest)
		done <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// The shared build keeps running and serves later callers.
	close(src.release)
	idx, err := cache.GetOrBuild(context.Background(), RegionTest)
	require.NoError(t, err)
	assert.NotNil(t, idx)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestDefaultCache(t *testing.T) {
	cache := DefaultCache()
	require.NotNil(t, cache)
	assert.Same(t, cache, DefaultCache())

	idx, _ := buildFixture(t)
	cache.Put(DefaultRegion, idx)
	t.Cleanup(func() { cache.Invalidate(DefaultRegion) })

	got, err := Find(context.Background(), "１５０－００３１")
	require.NoError(t, err)
	assert.Equal(t, []Address{{Code: "1500031", Prefecture: "東京都", City: "渋谷区", Area: "桜丘町"}}, got)
}

// firstCallBlocks holds its first Records call until gate is closed; later
// calls return at once.
type firstCallBlocks struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (s *firstCallBlocks) Records(ctx context.Context, region Region) ([]Record, error) {
	if s.calls.Add(1) == 1 {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return fixtureRecords(), nil
}

func TestIndexCache_RebuildWinsOverSlowerFirstLoad(t *testing.T) {
	src := &firstCallBlocks{gate: make(chan struct{})}
	cache := NewIndexCache(nil, src)

	loaded := make(chan *Index, 1)
	go func() {
		idx, err := cache.GetOrBuild(context.Background(), RegionTest)
		assert.NoError(t, err)
		loaded <- idx
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	rebuilt, err := cache.Rebuild(context.Background(), RegionTest)
	require.NoError(t, err)

	close(src.gate)
	got := <-loaded

	current, ok := cache.Get(RegionTest)
	require.True(t, ok)
	assert.Same(t, rebuilt, current, "an older in-flight load replaced the rebuilt index")
	assert.Same(t, rebuilt, got)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestIndexCache_InvalidateDuringLoadDoesNotResurrect(t *testing.T) {
	src := &firstCallBlocks{gate: make(chan struct{})}
	cache := NewIndexCache(nil, src)

	loaded := make(chan *Index, 1)
	go func() {
		idx, err := cache.GetOrBuild(context.Background(), RegionTest)
		assert.NoError(t, err)
		loaded <- idx
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	cache.Invalidate(RegionTest)
	close(src.gate)
	assert.NotNil(t, <-loaded)

	_, ok := cache.Get(RegionTest)
	assert.False(t, ok)
}
