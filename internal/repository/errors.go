// Package repository defines data access to the durable MySQL side of
// the platform.  Sentinel errors let handlers distinguish failure
// scenarios without leaking SQL details: ErrNotFound becomes 404,
// ErrConflict 409.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with existing state,
// such as recording a ticket number that is already sold.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by user creation on a duplicate email.
var ErrEmailExists = errors.New("email already exists")
