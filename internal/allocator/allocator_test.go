package allocator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSold map[int]struct{}

func (f fakeSold) SoldTicketNumbers(context.Context, uint64) (map[int]struct{}, error) {
	return f, nil
}

type fakeLocked map[int]struct{}

func (f fakeLocked) ListLockedTicketNumbers(context.Context, uint64) (map[int]struct{}, error) {
	return f, nil
}

type failingSold struct{ err error }

func (f failingSold) SoldTicketNumbers(context.Context, uint64) (map[int]struct{}, error) {
	return nil, f.err
}

func TestPickExcludesSoldAndLocked(t *testing.T) {
	a := New(
		fakeSold{1: {}, 2: {}, 3: {}},
		fakeLocked{4: {}, 5: {}},
	)

	picked, err := a.Pick(context.Background(), 1, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 7, 8, 9, 10}, picked, "only the free numbers remain")
}

func TestPickIsSortedAndInRange(t *testing.T) {
	a := New(fakeSold{}, fakeLocked{})

	picked, err := a.Pick(context.Background(), 1, 100, 10)
	require.NoError(t, err)
	require.Len(t, picked, 10)

	seen := make(map[int]struct{})
	for i, n := range picked {
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 100)
		if i > 0 {
			assert.Greater(t, n, picked[i-1], "results are strictly ascending")
		}
		_, dup := seen[n]
		assert.False(t, dup)
		seen[n] = struct{}{}
	}
}

func TestPickNotEnoughTickets(t *testing.T) {
	a := New(fakeSold{1: {}, 2: {}}, fakeLocked{3: {}})

	_, err := a.Pick(context.Background(), 1, 4, 2)
	var notEnough *NotEnoughTicketsError
	require.ErrorAs(t, err, &notEnough)
	assert.Equal(t, 2, notEnough.Requested)
	assert.Equal(t, 1, notEnough.Available)
}

func TestPickInvalidQuantity(t *testing.T) {
	a := New(fakeSold{}, fakeLocked{})

	_, err := a.Pick(context.Background(), 1, 10, 0)
	var notEnough *NotEnoughTicketsError
	assert.ErrorAs(t, err, &notEnough)

	_, err = a.Pick(context.Background(), 1, 0, 1)
	assert.ErrorAs(t, err, &notEnough)
}

func TestPickPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("db down")
	a := New(failingSold{err: boom}, fakeLocked{})

	_, err := a.Pick(context.Background(), 1, 10, 1)
	assert.ErrorIs(t, err, boom)
}
