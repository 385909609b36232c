// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock implements crawler.Clock on the wall clock. The zero value is ready
// to use.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
