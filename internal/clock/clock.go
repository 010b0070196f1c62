// Package clock lets the address monitor and restart controller wait on
// time without calling the time package directly, so tests can drive
// sample intervals and cooldowns deterministically.
package clock

import "time"

// Clock is the subset of the time package used by clipbridge.
type Clock interface {
	Now() time.Time
	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
