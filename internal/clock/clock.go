// Package clock abstracts the current time so that TTL behaviour can be
// driven deterministically in tests.  Production code always uses Real.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// Real reads the system clock.
type Real struct{}

func NewReal() Clock { return &Real{} }

func (c *Real) Now() time.Time { return time.Now().UTC() }

// Mock is a manually-advanced clock for tests.
type Mock struct {
	current time.Time
}

func NewMock(t time.Time) *Mock { return &Mock{current: t} }

func (c *Mock) Now() time.Time { return c.current }

func (c *Mock) Set(t time.Time) { c.current = t }

func (c *Mock) Advance(d time.Duration) { c.current = c.current.Add(d) }
