package stream

import "time"

// Clock schedules the reconnect timer. Production code uses RealClock;
// tests inject a manual clock to drive reconnects deterministically.
type Clock interface {
	// AfterFunc waits for d, then calls f in its own goroutine.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the Timer from firing. It reports whether the call
	// stopped the timer.
	Stop() bool
}

// RealClock returns a Clock backed by the standard time package.
func RealClock() Clock { return realClock{} }

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
