// Package store provides a uniform key-value interface over the two
// backends the platform can run against: a managed Redis instance in
// production and an in-process store for tests and local development.
// Nothing above this package knows which backend is active.
//
// SetNX is the only primitive upper layers rely on for mutual
// exclusion; it must be a single atomic server-side operation, never a
// client-side check-then-set.  Every other operation is best-effort
// with respect to concurrent writers.
package store

import (
	"context"
	"fmt"
	"time"
)

// Store is the adapter contract shared by both backends.  Implementations
// must be safe for concurrent use.  A ttl of zero means "no expiry".
type Store interface {
	// Get returns the value at key.  ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes value at key, replacing any previous value, with the
	// given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX atomically creates key with value and TTL.  It returns true
	// iff this call created the key.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes the given keys.  Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Incr atomically increments the integer at key and returns the new
	// value.  A missing key is treated as zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets or refreshes the TTL of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining lifetime of key, or zero when the key is
	// absent or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Scan walks keys matching the glob pattern, one page per call.
	// Iteration starts at cursor 0 and is complete when the returned
	// cursor is 0 again.
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) (keys []string, next uint64, err error)

	// Pipeline returns a batch of queued writes submitted in one round
	// trip on Exec.  The batch is not transactional across keys.
	Pipeline() Pipeline

	// Close releases backend resources.
	Close() error
}

// Pipeline queues write operations until Exec.
type Pipeline interface {
	Set(key, value string, ttl time.Duration)
	SetNX(key, value string, ttl time.Duration)
	Delete(keys ...string)
	Exec(ctx context.Context) error
}

// Error wraps any backend failure so that callers can distinguish "the
// store said no" from "the store is unreachable".  Callers must treat a
// returned *Error as fatal for the current request and never interpret
// it as success.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
