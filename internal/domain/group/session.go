package group

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Step tells the caller what to do after Begin.
type Step int

const (
	// StepFetch means the caller must perform the returned Request.
	StepFetch Step = iota
	// StepFixture means the session resolves from a local fixture without
	// network I/O and must not be polled.
	StepFixture
	// StepSkip means there is nothing to do this tick.
	StepSkip
)

// Request describes one remote fetch for a session.
type Request struct {
	URL     string
	Params  map[string]string
	Initial bool
}

// Outcome is what a resolved fetch produced.
type Outcome struct {
	Delta Delta
	// Status is nil when the delta is empty.
	Status *Status
	// Loaded is set for initial loads.
	Loaded *Loaded
}

// Session tracks the membership of one remote group.
type Session struct {
	name    string
	escaped string
	base    string
	demo    *Snapshot

	loaded     bool
	inFlight   bool
	next       int64
	lastUpdate int64
	members    *members
	addedAt    time.Time

	logger *zap.Logger
}

// NewSession creates an unloaded session for name. base is the group
// service root URL. demoDrivers sizes the demoshuttle fixture.
func NewSession(name, base string, demoDrivers int, now time.Time, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		name:    name,
		escaped: escapeComponent(name),
		base:    base,
		members: newMembers(),
		addedAt: now,
		logger:  logger.With(zap.String("group", name)),
	}

	if snap, ok := demoGroupSnapshot(name, demoDrivers); ok {
		s.demo = &snap
	}

	return s
}

// Name returns the URL-escaped group name.
func (s *Session) Name() string { return s.escaped }

// RawName returns the group name as supplied by the caller.
func (s *Session) RawName() string { return s.name }

// Loaded reports whether the initial fetch has resolved.
func (s *Session) Loaded() bool { return s.loaded }

// InFlight reports whether a fetch is outstanding.
func (s *Session) InFlight() bool { return s.inFlight }

// Next returns the pagination cursor for the next events fetch.
func (s *Session) Next() int64 { return s.next }

// LastUpdate returns the server time of the last successful fetch.
func (s *Session) LastUpdate() int64 { return s.lastUpdate }

// IsDemo reports whether the session resolves from a fixture.
func (s *Session) IsDemo() bool { return s.demo != nil }

// Users returns a copy of the tracked members.
func (s *Session) Users() []Member { return s.members.snapshot() }

// Invites returns the tracked invite codes, newest member first.
func (s *Session) Invites() []string { return s.members.invites() }

// MarshalJSON renders {name, users, invites}.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string   `json:"name"`
		Users   []Member `json:"users"`
		Invites []string `json:"invites"`
	}{s.escaped, s.Users(), s.Invites()})
}

// Begin decides the next fetch. A session with a fetch in flight is
// skipped so the cursor is never advanced by overlapping responses.
func (s *Session) Begin() (Request, Step) {
	if s.inFlight {
		return Request{}, StepSkip
	}

	if s.demo != nil {
		if s.loaded {
			return Request{}, StepSkip
		}
		s.inFlight = true
		return Request{Initial: true}, StepFixture
	}

	s.inFlight = true

	if !s.loaded {
		return Request{
			URL:     s.base + "groups/" + s.escaped,
			Params:  map[string]string{"branding": "true"},
			Initial: true,
		}, StepFetch
	}

	return Request{
		URL:    s.base + "groups/" + s.escaped + "/events",
		Params: map[string]string{"next": strconv.FormatInt(s.next, 10)},
	}, StepFetch
}

// Fixture returns the demo result for a StepFixture request.
func (s *Session) Fixture(now time.Time) Result {
	if s.demo == nil {
		return Result{Status: false, Error: "no fixture", Time: now.UnixMilli()}
	}
	return Result{Status: true, Response: mustJSON(s.demo), Time: now.UnixMilli()}
}

// SetData seeds the session from a group header fetched elsewhere.
func (s *Session) SetData(header json.RawMessage, now time.Time) Outcome {
	return s.Complete(Request{Initial: true}, Result{Status: true, Response: header, Time: now.UnixMilli()})
}

// Complete applies a resolved fetch. The session counts as loaded even if
// the fetch failed; the next poll retries naturally.
func (s *Session) Complete(req Request, res Result) Outcome {
	s.inFlight = false
	s.loaded = true

	var delta Delta
	if res.Status {
		delta = s.apply(req.Initial, res)
	}

	out := Outcome{Delta: delta}
	if !delta.Empty() {
		out.Status = &Status{
			Result:         res,
			Group:          s.name,
			InvitesAdded:   nonNil(delta.Added),
			InvitesRemoved: nonNil(delta.Removed),
			InvitesSwapped: nonNilSwaps(delta.Swapped),
		}
	}
	if req.Initial {
		out.Loaded = &Loaded{Result: res, Group: s.name}
	}
	return out
}

func (s *Session) apply(initial bool, res Result) Delta {
	var snap Snapshot
	if err := json.Unmarshal(res.Response, &snap); err != nil {
		s.logger.Warn("Undecodable group response", zap.Error(err))
		return Delta{}
	}

	if initial || snap.Type == SnapshotGroup {
		s.next = snap.Events + 1
		s.lastUpdate = res.Time
		if len(snap.Branding) > 0 {
			s.logger.Debug("group branding present")
		}
		if snap.Members == nil {
			return Delta{}
		}
		return diffFull(s.members, snap.Members, s.logger)
	}

	if snap.Events > 0 {
		s.next = snap.Events + 1
	} else {
		s.next = 0
	}
	s.lastUpdate = res.Time

	return diffEvents(s.members, snap.Items, s.logger)
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilSwaps(v []Swap) []Swap {
	if v == nil {
		return []Swap{}
	}
	return v
}

var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent escapes a group name for use as one URL path segment.
// Only letters, digits and -_.!~*'() are left as is.
func escapeComponent(name string) string {
	return componentUnescaper.Replace(url.QueryEscape(name))
}
