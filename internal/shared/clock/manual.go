package clock

import (
	"sync"
	"time"
)

// Manual is a Clock whose ticks and timers fire only when the test asks.
// Tick delivers to every live ticker; Fire runs every pending timer.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
	timers  []*manualTimer
}

// NewManual returns a Manual clock starting at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// NewTicker registers a ticker. The interval is recorded but ignored.
func (m *Manual) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTicker{c: make(chan time.Time, 1), interval: d}
	m.tickers = append(m.tickers, t)
	return t
}

// AfterFunc registers f to run on the next Fire.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTimer{f: f}
	m.timers = append(m.timers, t)
	return t
}

// Tick advances time by the ticker interval and delivers one tick to each
// live ticker. A tick is dropped if the previous one was not consumed,
// matching time.Ticker.
func (m *Manual) Tick() {
	m.mu.Lock()
	live := m.tickers[:0]
	for _, t := range m.tickers {
		if !t.stopped() {
			live = append(live, t)
		}
	}
	m.tickers = live
	tickers := append([]*manualTicker(nil), live...)
	m.mu.Unlock()

	for _, t := range tickers {
		m.mu.Lock()
		m.now = m.now.Add(t.interval)
		now := m.now
		m.mu.Unlock()

		select {
		case t.c <- now:
		default:
		}
	}
}

// Fire runs every pending timer callback in registration order.
func (m *Manual) Fire() {
	m.mu.Lock()
	timers := m.timers
	m.timers = nil
	m.mu.Unlock()

	for _, t := range timers {
		if t.claim() {
			t.f()
		}
	}
}

// ActiveTickers reports how many tickers have not been stopped.
func (m *Manual) ActiveTickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tickers {
		if !t.stopped() {
			n++
		}
	}
	return n
}

type manualTicker struct {
	c        chan time.Time
	interval time.Duration

	mu   sync.Mutex
	done bool
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

func (t *manualTicker) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

type manualTimer struct {
	f func()

	mu   sync.Mutex
	done bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (t *manualTimer) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}
