package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for business-rule rejections. Storage-level outcomes
// (not found, no available copy, invalid transition, concurrency
// conflict) surface as the repository sentinels; callers match both
// families with errors.Is.
var (
	// ErrNoActiveLoan rejects a damage report for a copy the patron does
	// not currently hold.
	ErrNoActiveLoan = errors.New("no active loan for this copy and patron")

	// ErrAlreadyReturned rejects a second return of the same loan. The
	// frozen fees are never recomputed.
	ErrAlreadyReturned = errors.New("loan already returned")

	// ErrAlreadyResolved rejects a second resolution of the same report.
	ErrAlreadyResolved = errors.New("report already resolved")

	// ErrOpenReportExists rejects a second open report for the same copy.
	ErrOpenReportExists = errors.New("an open report already exists for this copy")

	// ErrForbidden rejects an operation on a resource the actor does not
	// own and has no staff privilege over.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports a rejected input field. It maps to a 400 at
// the HTTP layer.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
