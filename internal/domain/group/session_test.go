package group

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const base = "https://api.test/v2/"

var epoch = time.Unix(1700000000, 0)

func newTestSession(name string) *Session {
	return NewSession(name, base, 0, epoch, zap.NewNop())
}

func groupResponse(t *testing.T, events int64, members ...Member) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(Snapshot{Type: SnapshotGroup, Events: events, Members: members})
	require.NoError(t, err)
	return data
}

func eventsResponse(t *testing.T, events int64, items ...Event) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(Snapshot{Type: SnapshotEvents, Events: events, Items: items})
	require.NoError(t, err)
	return data
}

func TestSessionInitialRequest(t *testing.T) {
	s := newTestSession("my group")

	req, step := s.Begin()
	require.Equal(t, StepFetch, step)
	assert.True(t, req.Initial)
	assert.Equal(t, base+"groups/my%20group", req.URL)
	assert.Equal(t, map[string]string{"branding": "true"}, req.Params)
	assert.True(t, s.InFlight())

	_, step = s.Begin()
	assert.Equal(t, StepSkip, step, "no overlapping fetches")
}

func TestEscapeComponent(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"g1", "g1"},
		{"my group", "my%20group"},
		{"a&b", "a%26b"},
		{"a/b", "a%2Fb"},
		{"x=1+2,3;4:5@6$7", "x%3D1%2B2%2C3%3B4%3A5%406%247"},
		{"it's-(ok)_!~*.", "it's-(ok)_!~*."},
		{"a%b", "a%25b"},
		{"a%21", "a%2521"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeComponent(tt.name))
		})
	}

	s := newTestSession("a&b")
	req, _ := s.Begin()
	assert.Equal(t, "a%26b", s.Name())
	assert.Equal(t, base+"groups/a%26b", req.URL)
}

func TestSessionCompleteInitial(t *testing.T) {
	s := newTestSession("g1")
	req, _ := s.Begin()

	out := s.Complete(req, Result{
		Status:   true,
		Response: groupResponse(t, 41, Member{"1", "AAA"}, Member{"2", "BBB"}),
		Time:     1234,
	})

	assert.True(t, s.Loaded())
	assert.False(t, s.InFlight())
	assert.Equal(t, int64(42), s.Next())
	assert.Equal(t, int64(1234), s.LastUpdate())

	require.NotNil(t, out.Status)
	assert.Equal(t, "g1", out.Status.Group)
	assert.Equal(t, []string{"BBB", "AAA"}, out.Status.InvitesAdded)
	assert.Equal(t, []string{"AAA", "BBB"}, s.Invites())
	assert.Equal(t, []string{}, out.Status.InvitesRemoved)
	assert.Equal(t, []Swap{}, out.Status.InvitesSwapped)

	require.NotNil(t, out.Loaded)
	assert.Equal(t, "g1", out.Loaded.Group)
	assert.True(t, out.Loaded.Status)

	req, step := s.Begin()
	require.Equal(t, StepFetch, step)
	assert.False(t, req.Initial)
	assert.Equal(t, base+"groups/g1/events", req.URL)
	assert.Equal(t, map[string]string{"next": "42"}, req.Params)
}

func TestSessionFailedFetchStillLoads(t *testing.T) {
	s := newTestSession("g1")
	req, _ := s.Begin()

	out := s.Complete(req, Result{Status: false, Error: "boom"})

	assert.True(t, s.Loaded())
	assert.Equal(t, int64(0), s.Next())
	assert.Nil(t, out.Status)
	require.NotNil(t, out.Loaded)
	assert.False(t, out.Loaded.Status)

	req, _ = s.Begin()
	assert.Equal(t, base+"groups/g1/events", req.URL)
	assert.Equal(t, "0", req.Params["next"])
}

func TestSessionEmptyDeltaSuppressesStatus(t *testing.T) {
	s := newTestSession("g1")
	req, _ := s.Begin()
	s.Complete(req, Result{Status: true, Response: groupResponse(t, 1, Member{"1", "AAA"})})

	req, _ = s.Begin()
	out := s.Complete(req, Result{Status: true, Response: eventsResponse(t, 2,
		Event{Type: EventInvite, Member: "1", Invite: "AAA"},
		Event{Type: EventLeave, Member: "ghost"},
	), Time: 99})

	assert.Nil(t, out.Status)
	assert.Nil(t, out.Loaded, "updates do not emit GroupLoaded")
	assert.Equal(t, int64(3), s.Next())
	assert.Equal(t, int64(99), s.LastUpdate())
}

func TestSessionEventsUpdate(t *testing.T) {
	s := newTestSession("g1")
	req, _ := s.Begin()
	s.Complete(req, Result{Status: true, Response: groupResponse(t, 5, Member{"1", "AAA"}, Member{"2", "BBB"})})

	req, _ = s.Begin()
	out := s.Complete(req, Result{Status: true, Response: eventsResponse(t, 8,
		Event{Type: EventLeave, Member: "1"},
		Event{Type: EventSwap, Member: "2", Invite: "CCC"},
		Event{Type: EventInvite, Member: "3", Invite: "DDD"},
	)})

	require.NotNil(t, out.Status)
	assert.Equal(t, []string{"DDD"}, out.Status.InvitesAdded)
	assert.Equal(t, []string{"AAA"}, out.Status.InvitesRemoved)
	assert.Equal(t, []Swap{{User: "2", InvOld: "BBB", InvNew: "CCC"}}, out.Status.InvitesSwapped)
	assert.Equal(t, int64(9), s.Next())
	assert.Equal(t, []string{"DDD", "CCC"}, s.Invites())
}

func TestSessionEventsWithoutCounterResetsCursor(t *testing.T) {
	s := newTestSession("g1")
	req, _ := s.Begin()
	s.Complete(req, Result{Status: true, Response: groupResponse(t, 5)})

	req, _ = s.Begin()
	s.Complete(req, Result{Status: true, Response: eventsResponse(t, 0)})
	assert.Equal(t, int64(0), s.Next())
}

func TestSessionFullListDuringUpdate(t *testing.T) {
	s := newTestSession("g1")
	req, _ := s.Begin()
	s.Complete(req, Result{Status: true, Response: groupResponse(t, 1, Member{"1", "AAA"})})

	req, _ = s.Begin()
	out := s.Complete(req, Result{Status: true, Response: groupResponse(t, 10, Member{"2", "BBB"})})

	require.NotNil(t, out.Status)
	assert.Equal(t, []string{"BBB"}, out.Status.InvitesAdded)
	assert.Equal(t, []string{"AAA"}, out.Status.InvitesRemoved)
	assert.Equal(t, int64(11), s.Next())
}

func TestSessionSetData(t *testing.T) {
	s := newTestSession("g1")
	out := s.SetData(groupResponse(t, 3, Member{"1", "AAA"}), epoch)

	assert.True(t, s.Loaded())
	assert.Equal(t, int64(4), s.Next())
	assert.Equal(t, epoch.UnixMilli(), s.LastUpdate())
	require.NotNil(t, out.Status)
	require.NotNil(t, out.Loaded)
}

func TestSessionUndecodableResponse(t *testing.T) {
	s := newTestSession("g1")
	req, _ := s.Begin()
	out := s.Complete(req, Result{Status: true, Response: json.RawMessage(`[1,2`)})

	assert.True(t, s.Loaded())
	assert.Nil(t, out.Status)
}

func TestSessionDemoFixture(t *testing.T) {
	s := NewSession("SeattleTeam", base, 0, epoch, zap.NewNop())
	require.True(t, s.IsDemo())

	req, step := s.Begin()
	require.Equal(t, StepFixture, step)

	out := s.Complete(req, s.Fixture(epoch))
	require.NotNil(t, out.Status)
	assert.Len(t, out.Status.InvitesAdded, 8)

	_, step = s.Begin()
	assert.Equal(t, StepSkip, step, "demo groups are not polled")
}

func TestSessionDemoDrivers(t *testing.T) {
	tests := []struct {
		drivers int
		want    int
	}{
		{drivers: 0, want: 0},
		{drivers: 3, want: 3},
		{drivers: 20, want: MaxDemoDrivers},
		{drivers: -4, want: 0},
	}

	for _, tt := range tests {
		s := NewSession("demoshuttle", base, tt.drivers, epoch, zap.NewNop())
		req, _ := s.Begin()
		s.Complete(req, s.Fixture(epoch))
		assert.Len(t, s.Users(), tt.want, "drivers=%d", tt.drivers)
	}
}

func TestSessionMarshalJSON(t *testing.T) {
	s := newTestSession("a/b")
	s.SetData(groupResponse(t, 1, Member{"1", "AAA"}, Member{"2", "BBB"}), epoch)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "a%2Fb",
		"users": [{"id":"2","invite":"BBB"},{"id":"1","invite":"AAA"}],
		"invites": ["AAA","BBB"]
	}`, string(data))
}

func TestStatusPayloadShape(t *testing.T) {
	st := Status{
		Result:         Result{Status: true, Response: json.RawMessage(`{}`), Time: 7},
		Group:          "g",
		InvitesAdded:   []string{"A"},
		InvitesRemoved: []string{},
		InvitesSwapped: []Swap{{User: "u", InvOld: "o", InvNew: "n"}},
	}
	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": true, "response": {}, "time": 7, "group": "g",
		"invitesAdded": ["A"], "invitesRemoved": [],
		"invitesSwapped": [{"user":"u","invOld":"o","invNew":"n"}]
	}`, string(data))
}
