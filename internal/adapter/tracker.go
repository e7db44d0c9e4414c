package adapter

import (
	"sync"

	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
)

// Tracker is a Controller that keeps the latest progress and viewer state
// for the HTTP surface.
type Tracker struct {
	mu       sync.RWMutex
	init     *types.AdapterInit
	progress types.Progress
	state    map[string]interface{}
	counts   map[types.Msg]int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		state:  make(map[string]interface{}),
		counts: make(map[types.Msg]int),
	}
}

// Notify records msg.
func (t *Tracker) Notify(msg types.Msg, args interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[msg]++
	switch v := args.(type) {
	case types.Progress:
		t.progress = v
	case types.StateUpdate:
		t.state[v.ID] = v.Val
	case types.AdapterInit:
		// later inits only switch the session to card mode
		if t.init == nil {
			init := v
			t.init = &init
		} else if v.IsCard {
			t.init.IsCard = true
		}
	}
}

// TrackerSnapshot is the tracked state.
type TrackerSnapshot struct {
	Init     *types.AdapterInit     `json:"init,omitempty"`
	Progress types.Progress         `json:"progress"`
	State    map[string]interface{} `json:"state"`
	Messages map[string]int         `json:"messages"`
}

// Snapshot copies the tracked state.
func (t *Tracker) Snapshot() TrackerSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := TrackerSnapshot{
		Progress: t.progress,
		State:    make(map[string]interface{}, len(t.state)),
		Messages: make(map[string]int, len(t.counts)),
	}
	if t.init != nil {
		init := *t.init
		snap.Init = &init
	}
	for k, v := range t.state {
		snap.State[k] = v
	}
	for k, v := range t.counts {
		snap.Messages[k] = v
	}
	return snap
}
