// Package quiz throttles skill-question attempts.  UK-style prize
// competitions gate ticket purchase behind a question of skill; this
// package counts wrong answers per competition and user, locks the user
// out after too many, and records a pass that admits them to checkout.
// All state lives in the shared key-value store under its own TTLs, so
// lockouts and passes expire without any in-process timers.
package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/prize-competition/internal/clock"
	"github.com/iliyamo/prize-competition/internal/store"
)

// Defaults applied when the corresponding Tracker field is zero.
const (
	DefaultMaxAttempts   = 3
	DefaultLockoutWindow = 15 * time.Minute
	DefaultPassedTTL     = time.Hour
)

// AttemptResult reports the outcome of one recorded attempt.
type AttemptResult struct {
	Attempts    int
	MaxAttempts int
	Blocked     bool
	BlockUntil  time.Time
}

// BlockStatus is the read-only view used by the status endpoint.
type BlockStatus struct {
	Blocked   bool
	Remaining time.Duration
	Attempts  int
}

// Tracker implements the per-(competition,user) attempt state machine:
// Unanswered -> Passed on a correct answer, Unanswered -> Blocked after
// maxAttempts wrong ones, and both terminal states decay back to
// Unanswered through TTL expiry.
type Tracker struct {
	store       store.Store
	clk         clock.Clock
	maxAttempts int
	lockout     time.Duration
	passedTTL   time.Duration
}

func NewTracker(st store.Store, clk clock.Clock, maxAttempts int, lockout, passedTTL time.Duration) *Tracker {
	if clk == nil {
		clk = clock.NewReal()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockoutWindow
	}
	if passedTTL <= 0 {
		passedTTL = DefaultPassedTTL
	}
	return &Tracker{store: st, clk: clk, maxAttempts: maxAttempts, lockout: lockout, passedTTL: passedTTL}
}

// MaxAttempts returns the configured attempt limit.
func (t *Tracker) MaxAttempts() int { return t.maxAttempts }

func attemptsKey(competitionID, userID uint64) string {
	return fmt.Sprintf("qcm-attempts:%d:%d", competitionID, userID)
}

func blockKey(competitionID, userID uint64) string {
	return fmt.Sprintf("qcm-block:%d:%d", competitionID, userID)
}

func passedKey(competitionID, userID uint64) string {
	return fmt.Sprintf("qcm-passed:%d:%d", competitionID, userID)
}

// RecordAttempt registers one wrong answer.  A user who is already
// blocked gets blocked=true back immediately without the counter
// moving, so hammering the endpoint does not extend the lockout.  The
// attempt counter's TTL is set on its first increment; reaching the
// limit raises the block flag for the full lockout window.
func (t *Tracker) RecordAttempt(ctx context.Context, competitionID, userID uint64) (AttemptResult, error) {
	res := AttemptResult{MaxAttempts: t.maxAttempts}

	blocked, err := t.store.Exists(ctx, blockKey(competitionID, userID))
	if err != nil {
		return res, err
	}
	if blocked {
		res.Blocked = true
		res.BlockUntil = t.clk.Now().Add(t.remainingBlock(ctx, competitionID, userID))
		if n, err := t.currentAttempts(ctx, competitionID, userID); err == nil {
			res.Attempts = n
		}
		return res, nil
	}

	n, err := t.store.Incr(ctx, attemptsKey(competitionID, userID))
	if err != nil {
		return res, err
	}
	if n == 1 {
		if err := t.store.Expire(ctx, attemptsKey(competitionID, userID), t.lockout); err != nil {
			return res, err
		}
	}
	res.Attempts = int(n)

	if int(n) >= t.maxAttempts {
		if err := t.store.Set(ctx, blockKey(competitionID, userID), "1", t.lockout); err != nil {
			return res, err
		}
		res.Blocked = true
		res.BlockUntil = t.clk.Now().Add(t.lockout)
	}
	return res, nil
}

// CheckBlocked is a pure read of the block flag and attempt counter.
// Remaining time comes from the backend's TTL when it reports one and
// falls back to the full lockout window otherwise.
func (t *Tracker) CheckBlocked(ctx context.Context, competitionID, userID uint64) (BlockStatus, error) {
	var st BlockStatus
	blocked, err := t.store.Exists(ctx, blockKey(competitionID, userID))
	if err != nil {
		return st, err
	}
	st.Blocked = blocked
	if blocked {
		st.Remaining = t.remainingBlock(ctx, competitionID, userID)
	}
	if n, err := t.currentAttempts(ctx, competitionID, userID); err == nil {
		st.Attempts = n
	} else {
		return st, err
	}
	return st, nil
}

// MarkPassed flags the user as having answered correctly.  The flag is
// independent of the attempt/block lifecycle: a user can pass fresh
// after an earlier lockout has expired.
func (t *Tracker) MarkPassed(ctx context.Context, competitionID, userID uint64) error {
	return t.store.Set(ctx, passedKey(competitionID, userID), "1", t.passedTTL)
}

// HasPassed reports whether the user may proceed to checkout.
func (t *Tracker) HasPassed(ctx context.Context, competitionID, userID uint64) (bool, error) {
	return t.store.Exists(ctx, passedKey(competitionID, userID))
}

func (t *Tracker) remainingBlock(ctx context.Context, competitionID, userID uint64) time.Duration {
	ttl, err := t.store.TTL(ctx, blockKey(competitionID, userID))
	if err != nil || ttl <= 0 {
		return t.lockout
	}
	return ttl
}

func (t *Tracker) currentAttempts(ctx context.Context, competitionID, userID uint64) (int, error) {
	raw, ok, err := t.store.Get(ctx, attemptsKey(competitionID, userID))
	if err != nil || !ok {
		return 0, err
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return 0, nil
	}
	return n, nil
}
