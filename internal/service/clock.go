package service

import "time"

// Clock supplies the current time so date-sensitive logic (due dates,
// overdue pricing, expiry sweeps) can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by the wall clock in UTC.
func SystemClock() Clock { return realClock{} }
