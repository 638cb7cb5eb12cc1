// Package repository provides data access to the circulation tables.
// Sentinel errors defined here let the service layer distinguish failure
// modes without inspecting SQL details.
package repository

import "errors"

// ErrNotFound is returned when a row does not exist. Repositories map
// sql.ErrNoRows to this so callers never import database/sql for checks.
var ErrNotFound = errors.New("not found")

// ErrNoAvailableCopy is returned by a claim when the book has no copy in
// AVAILABLE status. Recoverable: the caller may leave a reservation
// pending or queue the request.
var ErrNoAvailableCopy = errors.New("no available copy")

// ErrInvalidTransition is returned when a status change is attempted
// from a state that does not permit it, e.g. releasing a copy that is
// not currently held.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrConcurrencyConflict is returned when a conditional update affected
// no rows because a concurrent transaction got there first. Always safe
// to retry.
var ErrConcurrencyConflict = errors.New("concurrency conflict")
