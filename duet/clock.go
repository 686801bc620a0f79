package duet

import "time"

// Timer is an outstanding deferred action. Stop reports whether the
// action was prevented from running.
type Timer interface {
	Stop() bool
}

// Clock schedules deferred actions. Production uses real timers; tests
// drive a virtual clock so timing properties check deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// NewClock returns the wall-clock backed Clock.
func NewClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
