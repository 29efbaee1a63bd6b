// Package ratelimit caps request frequency on sensitive endpoints with
// per-bucket sliding windows stored in the shared key-value store, so
// the limits hold across all application instances.
package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/prize-competition/internal/clock"
	"github.com/iliyamo/prize-competition/internal/store"
)

// Bucket names used across the platform's routes.
const (
	BucketLogin         = "login"
	BucketSignup        = "signup"
	BucketPasswordReset = "password-reset"
	BucketTicketReserve = "ticket-reserve"
	BucketCheckout      = "checkout"
	BucketContact       = "contact"
	BucketGlobalAuth    = "global-authenticated"
	BucketGlobalAnon    = "global-anonymous"
)

// Bucket pairs a request limit with its window.
type Bucket struct {
	Limit  int
	Window time.Duration
}

// DefaultBuckets returns the platform's stock limits.  Individual
// buckets can be overridden through configuration before the limiter is
// built.
func DefaultBuckets() map[string]Bucket {
	return map[string]Bucket{
		BucketLogin:         {Limit: 5, Window: 15 * time.Minute},
		BucketSignup:        {Limit: 3, Window: time.Hour},
		BucketPasswordReset: {Limit: 3, Window: time.Hour},
		BucketTicketReserve: {Limit: 10, Window: time.Minute},
		BucketCheckout:      {Limit: 5, Window: 5 * time.Minute},
		BucketContact:       {Limit: 3, Window: time.Hour},
		BucketGlobalAuth:    {Limit: 100, Window: time.Minute},
		BucketGlobalAnon:    {Limit: 30, Window: time.Minute},
	}
}

// Result tells the caller whether the request may proceed and, when it
// may not, when the window opens again.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter evaluates sliding windows against the store.  The window for
// one (bucket, identifier) pair is a JSON array of "unixMillis:nonce"
// entries living at ratelimit:{bucket}:{identifier}; the nonce keeps
// two entries from the same millisecond distinguishable.  Prune-and-
// append is a read-modify-write, not an atomic operation: two racing
// calls can each slip in, which is an accepted imprecision for request
// throttling (unlike ticket locks, which ride on SetNX).
type Limiter struct {
	store   store.Store
	clk     clock.Clock
	buckets map[string]Bucket
}

func NewLimiter(st store.Store, clk clock.Clock, buckets map[string]Bucket) *Limiter {
	if clk == nil {
		clk = clock.NewReal()
	}
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	return &Limiter{store: st, clk: clk, buckets: buckets}
}

// Bucket returns the configuration for a named bucket.
func (l *Limiter) Bucket(name string) (Bucket, bool) {
	b, ok := l.buckets[name]
	return b, ok
}

// Allow consumes one slot from the bucket's window for the identifier,
// or rejects without consuming anything when the window is full.
func (l *Limiter) Allow(ctx context.Context, bucket, identifier string) (Result, error) {
	b, ok := l.buckets[bucket]
	if !ok {
		return Result{}, fmt.Errorf("ratelimit: unknown bucket %q", bucket)
	}

	key := "ratelimit:" + bucket + ":" + identifier
	now := l.clk.Now()

	raw, exists, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	var entries []string
	if exists {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			entries = nil // corrupt window, start fresh
		}
	}

	cutoff := now.Add(-b.Window)
	surviving := entries[:0]
	for _, e := range entries {
		if ts, ok := entryTime(e); ok && ts.After(cutoff) {
			surviving = append(surviving, e)
		}
	}

	if len(surviving) >= b.Limit {
		resetAt := now.Add(b.Window)
		if oldest, ok := entryTime(surviving[0]); ok {
			resetAt = oldest.Add(b.Window)
		}
		// A rejected call must not consume a slot, so the pruned window
		// is not written back either.
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	surviving = append(surviving, newEntry(now))
	payload, err := json.Marshal(surviving)
	if err != nil {
		return Result{}, err
	}
	if err := l.store.Set(ctx, key, string(payload), b.Window); err != nil {
		return Result{}, err
	}

	resetAt := now.Add(b.Window)
	if oldest, ok := entryTime(surviving[0]); ok {
		resetAt = oldest.Add(b.Window)
	}
	return Result{
		Allowed:   true,
		Remaining: b.Limit - len(surviving),
		ResetAt:   resetAt,
	}, nil
}

func newEntry(now time.Time) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return strconv.FormatInt(now.UnixMilli(), 10) + ":" + hex.EncodeToString(buf)
}

func entryTime(entry string) (time.Time, bool) {
	msPart, _, ok := strings.Cut(entry, ":")
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
