package group

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/trackbridge/internal/shared/clock"
	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
)

const waitFor = 2 * time.Second

type fetchCall struct {
	URL     string
	Params  map[string]string
	Account *types.Account
}

type fakeFetcher struct {
	calls chan fetchCall

	mu      sync.Mutex
	respond func(fetchCall) Result
}

func newFakeFetcher(respond func(fetchCall) Result) *fakeFetcher {
	return &fakeFetcher{calls: make(chan fetchCall, 32), respond: respond}
}

func (f *fakeFetcher) Get(ctx context.Context, url string, params map[string]string, account *types.Account) Result {
	call := fetchCall{URL: url, Params: params, Account: account}
	f.calls <- call

	f.mu.Lock()
	respond := f.respond
	f.mu.Unlock()
	return respond(call)
}

type note struct {
	Msg  types.Msg
	Args interface{}
}

type recorder struct {
	notes chan note
}

func newRecorder() *recorder {
	return &recorder{notes: make(chan note, 32)}
}

func (r *recorder) Notify(msg types.Msg, args interface{}) {
	r.notes <- note{Msg: msg, Args: args}
}

func nextCall(t *testing.T, f *fakeFetcher) fetchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for fetch")
		return fetchCall{}
	}
}

func noCall(t *testing.T, f *fakeFetcher) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected fetch %s", c.URL)
	case <-time.After(50 * time.Millisecond):
	}
}

func nextNote(t *testing.T, r *recorder) note {
	t.Helper()
	select {
	case n := <-r.notes:
		return n
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for notification")
		return note{}
	}
}

type harness struct {
	reg      *Registry
	fetcher  *fakeFetcher
	notes    *recorder
	clock    *clock.Manual
	metrics  *monitoring.Metrics
	snapshot func() types.RegistryStats
}

func newHarness(t *testing.T, account *types.Account, respond func(fetchCall) Result) *harness {
	t.Helper()

	h := &harness{
		fetcher: newFakeFetcher(respond),
		notes:   newRecorder(),
		clock:   clock.NewManual(epoch),
		metrics: monitoring.NewMetrics(),
	}
	h.reg = NewRegistry(h.fetcher, h.notes, Config{
		SvcGlympse: "https://glympse.test/v2/",
		SvcEnRoute: "https://enroute.test/",
		Account:    account,
	}).WithClock(h.clock).WithLogger(zap.NewNop()).WithMetrics(h.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.reg.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h.snapshot = func() types.RegistryStats {
		stats, err := h.reg.Stats(context.Background())
		require.NoError(t, err)
		return stats
	}
	return h
}

func okGroup(t *testing.T, events int64, members ...Member) func(fetchCall) Result {
	return func(fetchCall) Result {
		return Result{Status: true, Response: groupResponse(t, events, members...), Time: 1}
	}
}

var testAccount = &types.Account{Token: "tok"}

func TestRegistryDefersAddUntilAccount(t *testing.T) {
	h := newHarness(t, nil, okGroup(t, 0, Member{"1", "AAA"}))

	h.reg.AddGroup(AddRequest{Name: "g1"})
	h.reg.AddGroup(AddRequest{Name: "g2"})

	stats := h.snapshot()
	assert.Equal(t, 2, stats.Pending)
	assert.False(t, stats.Authenticated)
	assert.Empty(t, stats.Groups)
	noCall(t, h.fetcher)

	h.reg.Notify(types.MsgAccountLoginStatus, LoginStatus{Account: testAccount})

	first := nextCall(t, h.fetcher)
	second := nextCall(t, h.fetcher)
	assert.ElementsMatch(t,
		[]string{"https://glympse.test/v2/groups/g1", "https://glympse.test/v2/groups/g2"},
		[]string{first.URL, second.URL})
	assert.Equal(t, testAccount, first.Account)
	noCall(t, h.fetcher)

	stats = h.snapshot()
	assert.Equal(t, 0, stats.Pending)
	assert.True(t, stats.Authenticated)
	require.Len(t, stats.Groups, 2)
	assert.Equal(t, "g1", stats.Groups[0].Name)
}

func TestRegistryInitialLoadNotifiesStatusThenLoaded(t *testing.T) {
	h := newHarness(t, testAccount, okGroup(t, 4, Member{"1", "AAA"}))

	h.reg.AddGroup(AddRequest{Name: "g1"})

	call := nextCall(t, h.fetcher)
	assert.Equal(t, map[string]string{"branding": "true"}, call.Params)

	n := nextNote(t, h.notes)
	require.Equal(t, types.MsgGroupStatus, n.Msg)
	status := n.Args.(*Status)
	assert.Equal(t, "g1", status.Group)
	assert.Equal(t, []string{"AAA"}, status.InvitesAdded)

	n = nextNote(t, h.notes)
	require.Equal(t, types.MsgGroupLoaded, n.Msg)
	assert.Equal(t, "g1", n.Args.(*Loaded).Group)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.GroupFetches.WithLabelValues("initial", "success")) == 1
	}, waitFor, 10*time.Millisecond)
}

func TestRegistryDuplicateAddIsIgnored(t *testing.T) {
	h := newHarness(t, testAccount, okGroup(t, 0))

	h.reg.AddGroup(AddRequest{Name: "g1"})
	nextCall(t, h.fetcher)

	h.reg.AddGroup(AddRequest{Name: "g1"})
	stats := h.snapshot()
	assert.Len(t, stats.Groups, 1)
	noCall(t, h.fetcher)
}

func TestRegistryPollsEventsWithCursor(t *testing.T) {
	h := newHarness(t, testAccount, okGroup(t, 9, Member{"1", "AAA"}))

	h.reg.AddGroup(AddRequest{Name: "g1"})
	nextCall(t, h.fetcher)
	nextNote(t, h.notes)
	nextNote(t, h.notes)

	stats := h.snapshot()
	assert.True(t, stats.Polling)
	require.Len(t, stats.Groups, 1)
	assert.True(t, stats.Groups[0].Polled)
	assert.Equal(t, int64(10), stats.Groups[0].Next)

	h.fetcher.mu.Lock()
	h.fetcher.respond = func(fetchCall) Result {
		data, _ := json.Marshal(Snapshot{Type: SnapshotEvents, Events: 12, Items: []Event{
			{Type: EventSwap, Member: "1", Invite: "BBB"},
		}})
		return Result{Status: true, Response: data, Time: 2}
	}
	h.fetcher.mu.Unlock()

	h.clock.Tick()

	call := nextCall(t, h.fetcher)
	assert.Equal(t, "https://glympse.test/v2/groups/g1/events", call.URL)
	assert.Equal(t, map[string]string{"next": "10"}, call.Params)

	n := nextNote(t, h.notes)
	require.Equal(t, types.MsgGroupStatus, n.Msg)
	assert.Equal(t, []Swap{{User: "1", InvOld: "AAA", InvNew: "BBB"}}, n.Args.(*Status).InvitesSwapped)

	stats = h.snapshot()
	assert.Equal(t, int64(13), stats.Groups[0].Next)
}

func TestRegistrySkipsTickWhileFetchInFlight(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, testAccount, okGroup(t, 0))

	h.reg.AddGroup(AddRequest{Name: "g1"})
	nextCall(t, h.fetcher)
	nextNote(t, h.notes)
	h.snapshot()

	h.fetcher.mu.Lock()
	h.fetcher.respond = func(fetchCall) Result {
		<-gate
		return Result{Status: true, Response: eventsResponse(t, 0), Time: 3}
	}
	h.fetcher.mu.Unlock()

	h.clock.Tick()
	nextCall(t, h.fetcher)

	h.clock.Tick()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.PollSkips) == 1
	}, waitFor, 10*time.Millisecond)
	noCall(t, h.fetcher)

	close(gate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.GroupFetches.WithLabelValues("events", "success")) == 1
	}, waitFor, 10*time.Millisecond)

	h.clock.Tick()
	nextCall(t, h.fetcher)
}

func TestRegistryAddWithHeaderSkipsFetch(t *testing.T) {
	h := newHarness(t, testAccount, okGroup(t, 0))

	header, err := json.Marshal(Snapshot{Type: SnapshotGroup, Name: "g1", Events: 2, Members: []Member{{"1", "AAA"}}})
	require.NoError(t, err)

	req, err := ParseAddRequest(json.RawMessage(header))
	require.NoError(t, err)
	h.reg.AddGroup(req)

	n := nextNote(t, h.notes)
	assert.Equal(t, types.MsgGroupStatus, n.Msg)
	n = nextNote(t, h.notes)
	assert.Equal(t, types.MsgGroupLoaded, n.Msg)

	stats := h.snapshot()
	assert.True(t, stats.Polling)
	assert.Equal(t, int64(3), stats.Groups[0].Next)
	noCall(t, h.fetcher)
}

func TestRegistryLogoutDiscardsGroups(t *testing.T) {
	h := newHarness(t, testAccount, okGroup(t, 0, Member{"1", "AAA"}))

	h.reg.AddGroup(AddRequest{Name: "g1"})
	nextCall(t, h.fetcher)
	nextNote(t, h.notes)
	nextNote(t, h.notes)
	require.True(t, h.snapshot().Polling)

	h.reg.Notify(types.MsgAccountDeleteStatus, nil)

	stats := h.snapshot()
	assert.False(t, stats.Polling)
	assert.False(t, stats.Authenticated)
	assert.Empty(t, stats.Groups)
	assert.Equal(t, 0, h.clock.ActiveTickers())

	h.clock.Tick()
	noCall(t, h.fetcher)

	h.reg.AddGroup(AddRequest{Name: "g1"})
	assert.Equal(t, 1, h.snapshot().Pending)
}

func TestRegistryDemoGroupResolvesFromFixture(t *testing.T) {
	h := newHarness(t, testAccount, okGroup(t, 0))

	h.reg.AddGroup(AddRequest{Name: "bryanaroundseattle"})
	stats := h.snapshot()
	require.Len(t, stats.Groups, 1)
	assert.False(t, stats.Polling)

	h.clock.Fire()

	n := nextNote(t, h.notes)
	require.Equal(t, types.MsgGroupStatus, n.Msg)
	assert.Equal(t, []string{"demobot0"}, n.Args.(*Status).InvitesAdded)
	assert.Equal(t, types.MsgGroupLoaded, nextNote(t, h.notes).Msg)
	noCall(t, h.fetcher)
}

func TestRegistryOrgObjects(t *testing.T) {
	t.Run("missing org id", func(t *testing.T) {
		h := newHarness(t, testAccount, okGroup(t, 0))
		h.reg.Cmd(types.ReqGetOrgObjects, json.RawMessage(`{}`))

		n := nextNote(t, h.notes)
		require.Equal(t, types.MsgOrgObjects, n.Msg)
		res := n.Args.(Result)
		assert.False(t, res.Status)
		assert.Equal(t, ErrMissingOrgID.Error(), res.Error)
		noCall(t, h.fetcher)
	})

	t.Run("zero org id counts as missing", func(t *testing.T) {
		h := newHarness(t, testAccount, okGroup(t, 0))
		h.reg.GetOrgObjects(OrgObjectsRequest{OrgID: "0"})

		res := nextNote(t, h.notes).Args.(Result)
		assert.False(t, res.Status)
	})

	t.Run("demo org served from fixture", func(t *testing.T) {
		h := newHarness(t, testAccount, okGroup(t, 0))
		h.reg.Cmd(types.ReqGetOrgObjects, map[string]interface{}{"orgId": -999})

		res := nextNote(t, h.notes).Args.(Result)
		require.True(t, res.Status)
		assert.Contains(t, string(res.Response), "LAX Terminal #1")
		noCall(t, h.fetcher)
	})

	t.Run("remote org fetched", func(t *testing.T) {
		h := newHarness(t, testAccount, func(fetchCall) Result {
			return Result{Status: true, Response: json.RawMessage(`[]`), Time: 5}
		})
		h.reg.GetOrgObjects(OrgObjectsRequest{OrgID: "42", ObjType: "route"})

		call := nextCall(t, h.fetcher)
		assert.Equal(t, "https://enroute.test/org/42/objects", call.URL)
		assert.Equal(t, map[string]string{"type": "route"}, call.Params)

		res := nextNote(t, h.notes).Args.(Result)
		assert.True(t, res.Status)
		assert.JSONEq(t, `[]`, string(res.Response))
	})
}

func TestParseAddRequest(t *testing.T) {
	tests := []struct {
		name    string
		args    interface{}
		want    string
		header  bool
		wantErr bool
	}{
		{name: "plain name", args: "g1", want: "g1"},
		{name: "json string", args: json.RawMessage(`"g1"`), want: "g1"},
		{name: "header object", args: json.RawMessage(`{"name":"g1","events":3}`), want: "g1", header: true},
		{name: "decoded map", args: map[string]interface{}{"name": "g1"}, want: "g1", header: true},
		{name: "struct", args: AddRequest{Name: "g1"}, want: "g1"},
		{name: "empty name", args: "", wantErr: true},
		{name: "header without name", args: json.RawMessage(`{"events":3}`), wantErr: true},
		{name: "unsupported", args: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseAddRequest(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Name)
			assert.Equal(t, tt.header, len(req.Header) > 0)
		})
	}
}

func TestParseOrgObjectsRequest(t *testing.T) {
	req, err := ParseOrgObjectsRequest(json.RawMessage(`{"orgId":"17","objType":"route"}`))
	require.NoError(t, err)
	assert.Equal(t, "17", req.OrgID.String())
	assert.Equal(t, "route", req.ObjType)

	req, err = ParseOrgObjectsRequest(nil)
	require.NoError(t, err)
	assert.Empty(t, req.OrgID.String())

	_, err = ParseOrgObjectsRequest(json.RawMessage(`[`))
	assert.Error(t, err)
}
