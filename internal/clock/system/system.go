// Package system provides the wall clock used for run and row timestamps.
package system

import "time"

// Clock implements crawler.Clock. Readings are UTC and truncated to
// microseconds, the resolution Postgres keeps for TIMESTAMPTZ.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
