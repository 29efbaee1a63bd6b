package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/prize-competition/internal/clock"
	"github.com/iliyamo/prize-competition/internal/store"
)

func newTestLimiter(t *testing.T, buckets map[string]Bucket) (*Limiter, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st := store.NewMemory(clk)
	t.Cleanup(func() { _ = st.Close() })
	return NewLimiter(st, clk, buckets), clk
}

func TestAllowUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(t, map[string]Bucket{
		"test": {Limit: 3, Window: time.Minute},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "test", "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d should pass", i+1)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "test", "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed, "the fourth call exceeds the limit")
	assert.Equal(t, 0, res.Remaining)
}

func TestRejectedCallDoesNotConsume(t *testing.T) {
	l, clk := newTestLimiter(t, map[string]Bucket{
		"test": {Limit: 2, Window: time.Minute},
	})
	ctx := context.Background()

	start := clk.Now()
	_, err := l.Allow(ctx, "test", "u")
	require.NoError(t, err)
	clk.Advance(10 * time.Second)
	_, err = l.Allow(ctx, "test", "u")
	require.NoError(t, err)

	// Hammering the full window must not push the reset time out.
	for i := 0; i < 5; i++ {
		clk.Advance(time.Second)
		res, err := l.Allow(ctx, "test", "u")
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.True(t, res.ResetAt.Equal(start.Add(time.Minute)),
			"reset stays anchored at the oldest surviving entry")
	}
}

func TestWindowSlides(t *testing.T) {
	l, clk := newTestLimiter(t, map[string]Bucket{
		"test": {Limit: 2, Window: time.Minute},
	})
	ctx := context.Background()

	_, err := l.Allow(ctx, "test", "u")
	require.NoError(t, err)
	clk.Advance(30 * time.Second)
	_, err = l.Allow(ctx, "test", "u")
	require.NoError(t, err)

	res, err := l.Allow(ctx, "test", "u")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	// Once the first entry falls out of the window a slot frees up,
	// while the second entry still counts.
	clk.Advance(31 * time.Second)
	res, err = l.Allow(ctx, "test", "u")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = l.Allow(ctx, "test", "u")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestIdentifiersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, map[string]Bucket{
		"test": {Limit: 1, Window: time.Minute},
	})
	ctx := context.Background()

	res, err := l.Allow(ctx, "test", "ip:1.1.1.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "test", "ip:1.1.1.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = l.Allow(ctx, "test", "ip:2.2.2.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "another identifier has its own window")
}

func TestBucketsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, map[string]Bucket{
		"a": {Limit: 1, Window: time.Minute},
		"b": {Limit: 1, Window: time.Minute},
	})
	ctx := context.Background()

	res, err := l.Allow(ctx, "a", "u")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "b", "u")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "exhausting bucket a leaves bucket b untouched")
}

func TestUnknownBucket(t *testing.T) {
	l, _ := newTestLimiter(t, nil)
	_, err := l.Allow(context.Background(), "no-such-bucket", "u")
	assert.Error(t, err)
}

func TestDefaultBuckets(t *testing.T) {
	l, _ := newTestLimiter(t, nil)

	b, ok := l.Bucket(BucketLogin)
	require.True(t, ok)
	assert.Equal(t, 5, b.Limit)
	assert.Equal(t, 15*time.Minute, b.Window)

	_, ok = l.Bucket("bogus")
	assert.False(t, ok)
}

func TestFullWindowExpiryReadmits(t *testing.T) {
	l, clk := newTestLimiter(t, map[string]Bucket{
		"test": {Limit: 2, Window: time.Minute},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := l.Allow(ctx, "test", "u")
		require.NoError(t, err)
	}

	clk.Advance(time.Minute + time.Second)

	res, err := l.Allow(ctx, "test", "u")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining, "the old entries all fell out of the window")
}
