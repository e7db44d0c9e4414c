// Package viewer tracks the state of the embedded map viewer and reports
// its lifecycle and property changes to the adapter.
package viewer

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
)

// Map namespace operations forwarded to the viewer and advertised.
var Requests = []string{
	"setZoom",
	"setCenter",
	"setMapType",
	"setFollow",
	"showRoute",
}

// Map namespace operations forwarded to the viewer but kept local.
var LocalRequests = []string{
	"addInvites",
	"removeInvites",
}

const valueInvites = "invites"

// Host receives viewer notifications.
type Host interface {
	Notify(msg types.Msg, args interface{})
	InfoUpdate(id string, val interface{})
}

// Monitor owns the viewer state.
type Monitor struct {
	host   Host
	logger *zap.Logger

	mu      sync.Mutex
	element string
	running bool
	cfg     map[string]interface{}
	values  map[string]interface{}
	invites []string
}

// NewMonitor creates a monitor reporting to host.
func NewMonitor(host Host, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		host:   host,
		logger: logger.Named("viewer"),
		cfg:    make(map[string]interface{}),
		values: make(map[string]interface{}),
	}
}

// Attach records the element the viewer renders into.
func (m *Monitor) Attach(element string) {
	m.mu.Lock()
	m.element = element
	m.mu.Unlock()
}

// Run starts monitoring and announces ViewerInit once.
func (m *Monitor) Run() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	element := m.element
	m.mu.Unlock()

	m.host.Notify(types.MsgViewerInit, map[string]interface{}{"viewer": element})
}

// Load merges cfg into the viewer configuration and announces ViewerReady.
func (m *Monitor) Load(cfg map[string]interface{}) {
	m.mu.Lock()
	for k, v := range cfg {
		m.cfg[k] = v
	}
	if t, ok := cfg["t"].(string); ok && t != "" {
		m.invites = mergeInvites(m.invites, strings.Split(t, ";"))
		m.values[valueInvites] = append([]string(nil), m.invites...)
	}
	ready := make(map[string]interface{}, len(m.cfg))
	for k, v := range m.cfg {
		ready[k] = v
	}
	m.mu.Unlock()

	m.host.Notify(types.MsgViewerReady, ready)
}

// Running reports whether Run has been called.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Cmd applies a map command. Property commands update the current value
// and are echoed as state updates.
func (m *Monitor) Cmd(id string, args interface{}) interface{} {
	switch id {
	case "addInvites", "removeInvites":
		list := inviteArgs(args)
		m.mu.Lock()
		if id == "addInvites" {
			m.invites = mergeInvites(m.invites, list)
		} else {
			m.invites = dropInvites(m.invites, list)
		}
		invites := append([]string(nil), m.invites...)
		m.values[valueInvites] = invites
		m.mu.Unlock()

		m.host.InfoUpdate(valueInvites, invites)
		return nil
	}

	if !known(id) {
		m.logger.Debug("Unknown cmd", zap.String("cmd", id), zap.Any("args", args))
		return nil
	}

	m.mu.Lock()
	m.values[id] = args
	m.mu.Unlock()

	m.host.InfoUpdate(id, args)
	return nil
}

// GetCurrentValue returns the current value of id, or NOT_INITIALIZED
// before the viewer runs.
func (m *Monitor) GetCurrentValue(id string) interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return types.NotInitialized
	}
	return m.values[id]
}

// Values returns the ids that currently hold a value.
func (m *Monitor) Values() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.values))
	for id := range m.values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func known(id string) bool {
	for _, r := range Requests {
		if r == id {
			return true
		}
	}
	return false
}

func inviteArgs(args interface{}) []string {
	switch v := args.(type) {
	case string:
		return strings.Split(v, ";")
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case json.RawMessage:
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			return list
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return inviteArgs(s)
		}
	}
	return nil
}

func mergeInvites(have, add []string) []string {
	for _, inv := range add {
		if inv == "" || contains(have, inv) {
			continue
		}
		have = append(have, inv)
	}
	return have
}

func dropInvites(have, drop []string) []string {
	out := have[:0]
	for _, inv := range have {
		if !contains(drop, inv) {
			out = append(out, inv)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
