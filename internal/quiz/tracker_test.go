package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/prize-competition/internal/clock"
	"github.com/iliyamo/prize-competition/internal/store"
)

func newTestTracker(t *testing.T) (*Tracker, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st := store.NewMemory(clk)
	t.Cleanup(func() { _ = st.Close() })
	return NewTracker(st, clk, 3, 15*time.Minute, time.Hour), clk
}

func TestRecordAttemptBlocksAtLimit(t *testing.T) {
	tr, clk := newTestTracker(t)
	ctx := context.Background()

	res, err := tr.RecordAttempt(ctx, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Blocked)

	res, err = tr.RecordAttempt(ctx, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.False(t, res.Blocked)

	res, err = tr.RecordAttempt(ctx, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.True(t, res.Blocked, "the third wrong answer raises the block")
	assert.Equal(t, clk.Now().Add(15*time.Minute), res.BlockUntil)
}

func TestBlockedAttemptsDoNotExtendLockout(t *testing.T) {
	tr, clk := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := tr.RecordAttempt(ctx, 1, 42)
		require.NoError(t, err)
	}

	clk.Advance(10 * time.Minute)

	// Further attempts while blocked report the block without moving
	// the counter or the deadline.
	res, err := tr.RecordAttempt(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, res.Blocked)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, clk.Now().Add(5*time.Minute), res.BlockUntil)
}

func TestBlockExpires(t *testing.T) {
	tr, clk := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := tr.RecordAttempt(ctx, 1, 42)
		require.NoError(t, err)
	}

	clk.Advance(16 * time.Minute)

	st, err := tr.CheckBlocked(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, st.Blocked)
	assert.Equal(t, 0, st.Attempts, "the attempt counter expired with the block")

	// And the user gets a fresh set of attempts.
	res, err := tr.RecordAttempt(ctx, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Blocked)
}

func TestCheckBlocked(t *testing.T) {
	tr, clk := newTestTracker(t)
	ctx := context.Background()

	st, err := tr.CheckBlocked(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, st.Blocked)
	assert.Equal(t, 0, st.Attempts)

	_, err = tr.RecordAttempt(ctx, 1, 42)
	require.NoError(t, err)

	st, err = tr.CheckBlocked(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, st.Blocked)
	assert.Equal(t, 1, st.Attempts)

	for i := 0; i < 2; i++ {
		_, err = tr.RecordAttempt(ctx, 1, 42)
		require.NoError(t, err)
	}
	clk.Advance(5 * time.Minute)

	st, err = tr.CheckBlocked(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, st.Blocked)
	assert.Equal(t, 10*time.Minute, st.Remaining)
}

func TestMarkPassed(t *testing.T) {
	tr, clk := newTestTracker(t)
	ctx := context.Background()

	passed, err := tr.HasPassed(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, passed)

	require.NoError(t, tr.MarkPassed(ctx, 1, 42))

	passed, err = tr.HasPassed(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, passed)

	// The pass is scoped per competition and user.
	passed, err = tr.HasPassed(ctx, 2, 42)
	require.NoError(t, err)
	assert.False(t, passed)
	passed, err = tr.HasPassed(ctx, 1, 7)
	require.NoError(t, err)
	assert.False(t, passed)

	clk.Advance(time.Hour + time.Minute)
	passed, err = tr.HasPassed(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, passed, "the pass decays after its TTL")
}

func TestPassIndependentOfAttempts(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.RecordAttempt(ctx, 1, 42)
	require.NoError(t, err)
	_, err = tr.RecordAttempt(ctx, 1, 42)
	require.NoError(t, err)

	// A correct answer on the last allowed attempt still passes.
	require.NoError(t, tr.MarkPassed(ctx, 1, 42))
	passed, err := tr.HasPassed(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, passed)
}

func TestTrackerIsolation(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := tr.RecordAttempt(ctx, 1, 42)
		require.NoError(t, err)
	}

	// Another user, and the same user elsewhere, are unaffected.
	res, err := tr.RecordAttempt(ctx, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Blocked)

	res, err = tr.RecordAttempt(ctx, 2, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Blocked)
}

func TestTrackerDefaults(t *testing.T) {
	clk := clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st := store.NewMemory(clk)
	t.Cleanup(func() { _ = st.Close() })

	tr := NewTracker(st, clk, 0, 0, 0)
	assert.Equal(t, DefaultMaxAttempts, tr.MaxAttempts())
}
