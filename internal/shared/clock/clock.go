// Package clock provides an injectable time source so polling and delayed
// loads can be driven deterministically in tests.
//
// Production code uses Real(); tests use NewManual() and fire ticks and
// delayed callbacks explicitly.
//
// Example Usage:
//
//	c := clock.NewManual(time.Unix(0, 0))
//	ticker := c.NewTicker(15 * time.Second)
//	c.Tick() // delivers one tick to every live ticker
package clock

import "time"

// Clock abstracts the time operations used by the adapter.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
	AfterFunc(d time.Duration, f func()) Timer
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer is a pending one-shot callback.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
