// Package lock implements the distributed ticket reservation core: a
// short-lived, race-safe allocation of unique ticket numbers to a user
// during checkout.  Mutual exclusion comes entirely from the store's
// atomic SetNX; no in-process locking is involved, so any number of
// application instances can call into this package against the same
// shared store.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/prize-competition/internal/clock"
	"github.com/iliyamo/prize-competition/internal/store"
)

// DefaultTTL is the reservation window applied when no explicit TTL is
// configured.
const DefaultTTL = 10 * time.Minute

// ErrInvalidTicketSet is returned when Reserve is called with no ticket
// numbers or with a non-positive number.  Handlers should translate
// this into an HTTP 400 response.
var ErrInvalidTicketSet = errors.New("invalid ticket set")

// ConflictError reports which requested ticket numbers were already
// locked by another user.  It is an expected outcome under contention:
// the caller retries with different numbers.
type ConflictError struct {
	TicketNumbers []int
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.TicketNumbers))
	for i, n := range e.TicketNumbers {
		parts[i] = strconv.Itoa(n)
	}
	return "tickets already locked: " + strings.Join(parts, ",")
}

// Reservation is the record of all tickets one user currently holds for
// one competition.  It is stored as JSON under the same TTL as the
// per-ticket locks it references, so the two expire together.
type Reservation struct {
	CompetitionID uint64    `json:"competition_id"`
	UserID        uint64    `json:"user_id"`
	TicketNumbers []int     `json:"ticket_numbers"`
	ReservedAt    time.Time `json:"reserved_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Manager owns the reservation/lock key space for all competitions.
type Manager struct {
	store store.Store
	clk   clock.Clock
	ttl   time.Duration
}

// NewManager builds a Manager on top of the given store.  ttl bounds
// every lock and reservation; zero selects DefaultTTL.
func NewManager(st store.Store, clk clock.Clock, ttl time.Duration) *Manager {
	if clk == nil {
		clk = clock.NewReal()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: st, clk: clk, ttl: ttl}
}

// TTL returns the configured reservation window.
func (m *Manager) TTL() time.Duration { return m.ttl }

func reservationKey(competitionID, userID uint64) string {
	return fmt.Sprintf("reservation:%d:%d", competitionID, userID)
}

func lockKey(competitionID uint64, ticketNumber int) string {
	return fmt.Sprintf("ticket-lock:%d:%d", competitionID, ticketNumber)
}

// Reserve atomically locks every requested ticket number for userID and
// writes the reservation record, or locks nothing at all.
//
// Per ticket the sequence is: read the current owner (purely an
// optimization to skip a redundant SetNX and to refresh our own locks
// cheaply -- correctness rests solely on the SetNX below), then claim
// the free ticket with an atomic SetNX carrying the TTL.  Losing the
// SetNX race triggers one re-read: if the winner was a concurrent retry
// by the same user the lock counts as ours, otherwise the number is
// conflicting.
//
// Any conflict, or any store error, rolls back every lock this call
// created (never locks already held from a prior call) before
// returning.  The rollback is awaited so the next caller observes a
// clean key space.
func (m *Manager) Reserve(ctx context.Context, competitionID, userID uint64, ticketNumbers []int) (Reservation, error) {
	if len(ticketNumbers) == 0 {
		return Reservation{}, ErrInvalidTicketSet
	}
	for _, n := range ticketNumbers {
		if n <= 0 {
			return Reservation{}, ErrInvalidTicketSet
		}
	}

	owner := strconv.FormatUint(userID, 10)
	acquired := make([]int, 0, len(ticketNumbers))
	var conflicts []int

	for _, n := range ticketNumbers {
		key := lockKey(competitionID, n)

		current, exists, err := m.store.Get(ctx, key)
		if err != nil {
			m.rollback(competitionID, acquired)
			return Reservation{}, err
		}
		if exists {
			if current == owner {
				// Re-acquisition by the same owner: refresh the TTL so a
				// retried request does not shorten the window.
				if err := m.store.Expire(ctx, key, m.ttl); err != nil {
					m.rollback(competitionID, acquired)
					return Reservation{}, err
				}
				continue
			}
			conflicts = append(conflicts, n)
			continue
		}

		created, err := m.store.SetNX(ctx, key, owner, m.ttl)
		if err != nil {
			m.rollback(competitionID, acquired)
			return Reservation{}, err
		}
		if created {
			acquired = append(acquired, n)
			continue
		}

		// Lost the race between the read and the SetNX.  Re-read: the
		// winner may have been our own concurrent retry.
		current, exists, err = m.store.Get(ctx, key)
		if err != nil {
			m.rollback(competitionID, acquired)
			return Reservation{}, err
		}
		if exists && current == owner {
			continue
		}
		conflicts = append(conflicts, n)
	}

	if len(conflicts) > 0 {
		m.rollback(competitionID, acquired)
		sort.Ints(conflicts)
		return Reservation{}, &ConflictError{TicketNumbers: conflicts}
	}

	now := m.clk.Now()
	res := Reservation{
		CompetitionID: competitionID,
		UserID:        userID,
		TicketNumbers: ticketNumbers,
		ReservedAt:    now,
		ExpiresAt:     now.Add(m.ttl),
	}
	payload, err := json.Marshal(res)
	if err != nil {
		m.rollback(competitionID, acquired)
		return Reservation{}, err
	}
	if err := m.store.Set(ctx, reservationKey(competitionID, userID), string(payload), m.ttl); err != nil {
		m.rollback(competitionID, acquired)
		return Reservation{}, err
	}
	return res, nil
}

// rollback deletes the locks created by the current Reserve call.  It
// runs on a fresh context so cleanup still happens when the request
// context is already cancelled.  A failed rollback is only logged: the
// stray locks self-heal through their own TTL.
func (m *Manager) rollback(competitionID uint64, acquired []int) {
	if len(acquired) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pipe := m.store.Pipeline()
	for _, n := range acquired {
		pipe.Delete(lockKey(competitionID, n))
	}
	if err := pipe.Exec(ctx); err != nil {
		log.Printf("lock: rollback of %d ticket locks failed (competition=%d): %v", len(acquired), competitionID, err)
	}
}

// Release drops the user's reservation and every lock it references in
// one pipeline.  Calling it without an active reservation, or twice in
// a row, is a no-op.
func (m *Manager) Release(ctx context.Context, competitionID, userID uint64) error {
	res, err := m.GetReservation(ctx, competitionID, userID)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	pipe := m.store.Pipeline()
	pipe.Delete(reservationKey(competitionID, userID))
	for _, n := range res.TicketNumbers {
		pipe.Delete(lockKey(competitionID, n))
	}
	return pipe.Exec(ctx)
}

// GetReservation returns the user's active reservation, or nil when
// none exists.
func (m *Manager) GetReservation(ctx context.Context, competitionID, userID uint64) (*Reservation, error) {
	raw, ok, err := m.store.Get(ctx, reservationKey(competitionID, userID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var res Reservation
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("lock: corrupt reservation record: %w", err)
	}
	return &res, nil
}

// IsLocked reports whether a ticket number is currently locked.  When
// excludingUserID is non-zero and matches the lock's owner, the ticket
// is reported free ("is this taken by someone else").
func (m *Manager) IsLocked(ctx context.Context, competitionID uint64, ticketNumber int, excludingUserID uint64) (bool, error) {
	owner, ok, err := m.store.Get(ctx, lockKey(competitionID, ticketNumber))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if excludingUserID != 0 && owner == strconv.FormatUint(excludingUserID, 10) {
		return false, nil
	}
	return true, nil
}

// ListLockedTicketNumbers walks the lock key space of one competition
// and returns the set of locked numbers.  The result is an
// eventually-consistent snapshot: locks may appear or expire while the
// scan is paging.  It is advisory input for the free-pool allocator;
// Reserve remains the authority on conflicts.
func (m *Manager) ListLockedTicketNumbers(ctx context.Context, competitionID uint64) (map[int]struct{}, error) {
	pattern := fmt.Sprintf("ticket-lock:%d:*", competitionID)
	prefix := fmt.Sprintf("ticket-lock:%d:", competitionID)
	locked := make(map[int]struct{})
	var cursor uint64
	for {
		keys, next, err := m.store.Scan(ctx, cursor, pattern, 100)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			n, err := strconv.Atoi(strings.TrimPrefix(k, prefix))
			if err != nil {
				continue
			}
			locked[n] = struct{}{}
		}
		if next == 0 {
			return locked, nil
		}
		cursor = next
	}
}
