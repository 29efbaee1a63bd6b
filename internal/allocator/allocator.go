// Package allocator computes which ticket numbers to offer a buyer: the
// competition's full range minus numbers already sold (durable side)
// and numbers currently locked by in-flight reservations (store side).
// The result is advisory; the lock manager's Reserve performs the
// authoritative conflict check when the numbers are actually locked.
package allocator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
)

// SoldSource reports permanently sold ticket numbers for a competition.
type SoldSource interface {
	SoldTicketNumbers(ctx context.Context, competitionID uint64) (map[int]struct{}, error)
}

// LockedSource reports ticket numbers held by live reservations.
type LockedSource interface {
	ListLockedTicketNumbers(ctx context.Context, competitionID uint64) (map[int]struct{}, error)
}

// NotEnoughTicketsError is returned when the free pool cannot cover the
// requested quantity.
type NotEnoughTicketsError struct {
	Requested int
	Available int
}

func (e *NotEnoughTicketsError) Error() string {
	return fmt.Sprintf("allocator: %d tickets requested, %d available", e.Requested, e.Available)
}

type Allocator struct {
	sold   SoldSource
	locked LockedSource
}

func New(sold SoldSource, locked LockedSource) *Allocator {
	return &Allocator{sold: sold, locked: locked}
}

// Pick selects quantity random free numbers in [1, totalTickets],
// returned in ascending order.  Randomness spreads concurrent buyers
// across the pool so they rarely collide on the same numbers.
func (a *Allocator) Pick(ctx context.Context, competitionID uint64, totalTickets, quantity int) ([]int, error) {
	if quantity <= 0 || totalTickets <= 0 {
		return nil, &NotEnoughTicketsError{Requested: quantity, Available: 0}
	}
	sold, err := a.sold.SoldTicketNumbers(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	locked, err := a.locked.ListLockedTicketNumbers(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	free := make([]int, 0, totalTickets)
	for n := 1; n <= totalTickets; n++ {
		if _, taken := sold[n]; taken {
			continue
		}
		if _, held := locked[n]; held {
			continue
		}
		free = append(free, n)
	}
	if len(free) < quantity {
		return nil, &NotEnoughTicketsError{Requested: quantity, Available: len(free)}
	}

	rand.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	picked := free[:quantity]
	sort.Ints(picked)
	return picked, nil
}
