package group

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/trackbridge/internal/shared/clock"
	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
)

const (
	// DefaultPollInterval is the shared poll cadence for all groups.
	DefaultPollInterval = 15 * time.Second
	// DemoLoadDelay is how long a demo group takes to "load".
	DemoLoadDelay = 200 * time.Millisecond
)

var (
	ErrMissingOrgID   = errors.New(`"orgId" request param must be specified`)
	ErrInvalidAddArgs = errors.New("addGroup expects a group name or header")
)

// Config configures a Registry.
type Config struct {
	// SvcGlympse is the group service root, e.g. "https://api.example.com/v2/".
	SvcGlympse string
	// SvcEnRoute is the org service root.
	SvcEnRoute       string
	PollInterval     time.Duration
	DemoDriversCount int
	// Account is the initial authenticated context, if any.
	Account *types.Account
}

// AddRequest asks the registry to track a group. When Header is set the
// session is seeded from it and the initial fetch is skipped.
type AddRequest struct {
	Name   string
	Header json.RawMessage
}

// OrgObjectsRequest asks for the objects of an org.
type OrgObjectsRequest struct {
	OrgID   json.Number `json:"orgId"`
	ObjType string      `json:"objType,omitempty"`
}

// LoginStatus is the AccountLoginStatus payload.
type LoginStatus struct {
	Account *types.Account `json:"account"`
}

// Registry owns every group session, the deferred add queue and the
// shared poll timer. All state is confined to the Run goroutine; public
// methods post work to it.
type Registry struct {
	cfg      Config
	fetcher  Fetcher
	notifier Notifier
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	inbox chan func(ctx context.Context)
	done  chan struct{}

	account *types.Account
	groups  map[string]*Session
	order   []string
	pending []AddRequest
	polled  []*Session
	ticker  clock.Ticker
}

// NewRegistry creates a registry. Run must be called for it to do work.
func NewRegistry(fetcher Fetcher, notifier Notifier, cfg Config) *Registry {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Registry{
		cfg:      cfg,
		fetcher:  fetcher,
		notifier: notifier,
		clock:    clock.Real(),
		logger:   zap.NewNop(),
		inbox:    make(chan func(ctx context.Context), 64),
		done:     make(chan struct{}),
		account:  cfg.Account,
		groups:   make(map[string]*Session),
	}
}

// WithClock replaces the time source
func (r *Registry) WithClock(c clock.Clock) *Registry {
	r.clock = c
	return r
}

// WithLogger sets the logger
func (r *Registry) WithLogger(logger *zap.Logger) *Registry {
	r.logger = logger.Named("groups")
	return r
}

// WithMetrics adds metrics tracking to the registry
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	return r
}

// SetNotifier replaces the notification target. It must be called before Run.
func (r *Registry) SetNotifier(n Notifier) {
	r.notifier = n
}

// Run processes registry work until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.stopPolling()

	for {
		var tick <-chan time.Time
		if r.ticker != nil {
			tick = r.ticker.C()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-r.inbox:
			fn(ctx)
		case <-tick:
			r.poll(ctx)
		}
	}
}

// post queues fn for the Run goroutine. It reports false once Run exited.
func (r *Registry) post(fn func(ctx context.Context)) bool {
	select {
	case r.inbox <- fn:
		return true
	case <-r.done:
		return false
	}
}

// AddGroup tracks a group, deferring the add until an account exists.
func (r *Registry) AddGroup(req AddRequest) {
	r.post(func(ctx context.Context) {
		if r.account == nil {
			r.pending = append(r.pending, req)
			r.logger.Debug("addGroup deferred until account", zap.String("group", req.Name))
			r.updateGauges()
			return
		}
		r.load(ctx, req)
	})
}

// GetOrgObjects fetches the objects of an org and relays the result as
// an OrgObjects notification.
func (r *Registry) GetOrgObjects(req OrgObjectsRequest) {
	r.post(func(ctx context.Context) {
		r.orgObjects(ctx, req)
	})
}

// Notify handles account lifecycle messages.
func (r *Registry) Notify(msg types.Msg, args interface{}) {
	switch msg {
	case types.MsgAccountLoginStatus:
		status, _ := args.(LoginStatus)
		if p, ok := args.(*LoginStatus); ok && p != nil {
			status = *p
		}
		r.post(func(ctx context.Context) {
			r.account = status.Account
			r.accountReady(ctx)
		})

	case types.MsgAccountDeleteStatus:
		r.post(func(ctx context.Context) {
			r.accountRemoved()
		})

	default:
		r.logger.Debug("Unknown msg", zap.String("msg", msg), zap.Any("args", args))
	}
}

// Cmd is the entry point used when the registry backs the core namespace.
func (r *Registry) Cmd(id string, args interface{}) interface{} {
	switch id {
	case types.ReqAddGroup:
		req, err := ParseAddRequest(args)
		if err != nil {
			r.logger.Warn("addGroup rejected", zap.Error(err))
			return nil
		}
		r.logger.Debug("addGroup", zap.String("group", req.Name))
		r.AddGroup(req)

	case types.ReqGetOrgObjects:
		req, err := ParseOrgObjectsRequest(args)
		if err != nil {
			r.logger.Warn("getOrgObjects rejected", zap.Error(err))
		}
		r.GetOrgObjects(req)

	default:
		r.logger.Debug("Unknown cmd", zap.String("cmd", id), zap.Any("args", args))
	}
	return nil
}

// Stats returns a snapshot of registry state.
func (r *Registry) Stats(ctx context.Context) (types.RegistryStats, error) {
	reply := make(chan types.RegistryStats, 1)
	if !r.post(func(context.Context) { reply <- r.stats() }) {
		return types.RegistryStats{}, fmt.Errorf("group registry stopped")
	}

	select {
	case stats := <-reply:
		return stats, nil
	case <-ctx.Done():
		return types.RegistryStats{}, ctx.Err()
	}
}

func (r *Registry) stats() types.RegistryStats {
	polled := make(map[*Session]bool, len(r.polled))
	for _, s := range r.polled {
		polled[s] = true
	}

	out := types.RegistryStats{
		Groups:        make([]types.GroupSummary, 0, len(r.order)),
		Pending:       len(r.pending),
		Authenticated: r.account != nil,
		Polling:       r.ticker != nil,
	}
	for _, name := range r.order {
		s := r.groups[name]
		out.Groups = append(out.Groups, types.GroupSummary{
			Name:       s.Name(),
			Loaded:     s.Loaded(),
			Polled:     polled[s],
			Next:       s.Next(),
			LastUpdate: s.LastUpdate(),
			Invites:    s.Invites(),
			AddedAt:    s.addedAt,
		})
	}
	return out
}

func (r *Registry) load(ctx context.Context, req AddRequest) {
	if _, exists := r.groups[req.Name]; exists {
		r.logger.Debug("group already loaded", zap.String("group", req.Name))
		return
	}

	s := NewSession(req.Name, r.cfg.SvcGlympse, r.cfg.DemoDriversCount, r.clock.Now(), r.logger)
	r.groups[req.Name] = s
	r.order = append(r.order, req.Name)
	r.updateGauges()

	if len(req.Header) > 0 {
		r.deliver(s.SetData(req.Header, r.clock.Now()))
	} else if r.request(ctx, s) == StepFixture {
		return
	}

	r.polled = append(r.polled, s)
	if r.ticker == nil {
		r.ticker = r.clock.NewTicker(r.cfg.PollInterval)
		r.logger.Debug("poll timer started", zap.Duration("interval", r.cfg.PollInterval))
	}
}

// request starts the next fetch for s. Fetches run outside the Run
// goroutine and post their completion back to it.
func (r *Registry) request(ctx context.Context, s *Session) Step {
	req, step := s.Begin()

	switch step {
	case StepSkip:
		if s.InFlight() && r.metrics != nil {
			r.metrics.IncPollSkips()
		}

	case StepFixture:
		r.clock.AfterFunc(DemoLoadDelay, func() {
			r.post(func(context.Context) {
				r.complete(s, req, s.Fixture(r.clock.Now()))
			})
		})

	case StepFetch:
		account := r.account
		go func() {
			res := r.fetcher.Get(ctx, req.URL, req.Params, account)
			r.post(func(context.Context) {
				r.complete(s, req, res)
			})
		}()
	}

	return step
}

func (r *Registry) complete(s *Session, req Request, res Result) {
	if r.groups[s.RawName()] != s {
		r.logger.Debug("dropping result for discarded group", zap.String("group", s.RawName()))
		return
	}

	if !res.Status {
		r.logger.Warn("Group fetch failed", zap.String("group", s.RawName()), zap.String("error", res.Error))
	}
	if r.metrics != nil {
		kind := "events"
		if req.Initial {
			kind = "initial"
		}
		r.metrics.RecordGroupFetch(kind, res.Status)
	}

	r.deliver(s.Complete(req, res))
}

func (r *Registry) deliver(out Outcome) {
	if out.Status != nil {
		if r.metrics != nil {
			r.metrics.RecordGroupDelta(len(out.Delta.Added), len(out.Delta.Removed), len(out.Delta.Swapped))
		}
		r.notifier.Notify(types.MsgGroupStatus, out.Status)
	}
	if out.Loaded != nil {
		r.notifier.Notify(types.MsgGroupLoaded, out.Loaded)
	}
}

func (r *Registry) poll(ctx context.Context) {
	if r.metrics != nil {
		r.metrics.IncPollTicks()
	}
	for _, s := range r.polled {
		r.request(ctx, s)
	}
}

func (r *Registry) accountReady(ctx context.Context) {
	if r.account == nil {
		r.logger.Debug("accountInitComplete: authToken unavailable")
		return
	}

	pending := r.pending
	r.pending = nil
	for _, req := range pending {
		r.load(ctx, req)
	}
	r.updateGauges()
}

func (r *Registry) accountRemoved() {
	r.account = nil
	r.stopPolling()
	r.groups = make(map[string]*Session)
	r.order = nil
	r.polled = nil
	r.updateGauges()
}

func (r *Registry) stopPolling() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

func (r *Registry) orgObjects(ctx context.Context, req OrgObjectsRequest) {
	orgID := req.OrgID.String()
	if orgID == "" || orgID == "0" {
		r.logger.Warn("getOrgObjects", zap.Error(ErrMissingOrgID))
		r.notifier.Notify(types.MsgOrgObjects, Result{Status: false, Error: ErrMissingOrgID.Error()})
		return
	}

	if res, ok := demoOrgResult(orgID, r.clock.Now().UnixMilli()); ok {
		r.notifier.Notify(types.MsgOrgObjects, res)
		return
	}

	var params map[string]string
	if req.ObjType != "" {
		params = map[string]string{"type": req.ObjType}
	}
	url := r.cfg.SvcEnRoute + "org/" + orgID + "/objects"
	account := r.account

	go func() {
		res := r.fetcher.Get(ctx, url, params, account)
		r.post(func(context.Context) {
			r.notifier.Notify(types.MsgOrgObjects, res)
		})
	}()
}

func (r *Registry) updateGauges() {
	if r.metrics == nil {
		return
	}
	r.metrics.SetGroupsActive(len(r.groups))
	r.metrics.SetGroupsPending(len(r.pending))
}

// ParseAddRequest accepts a group name or a group header in any of the
// shapes a caller may hand over: string, AddRequest, raw JSON or a
// decoded JSON object.
func ParseAddRequest(args interface{}) (AddRequest, error) {
	switch v := args.(type) {
	case string:
		if v == "" {
			return AddRequest{}, ErrInvalidAddArgs
		}
		return AddRequest{Name: v}, nil
	case AddRequest:
		if v.Name == "" {
			return AddRequest{}, ErrInvalidAddArgs
		}
		return v, nil
	case *AddRequest:
		if v == nil {
			return AddRequest{}, ErrInvalidAddArgs
		}
		return ParseAddRequest(*v)
	case json.RawMessage:
		return parseAddJSON(v)
	case []byte:
		return parseAddJSON(v)
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return AddRequest{}, fmt.Errorf("encode group header: %w", err)
		}
		return parseAddJSON(data)
	}
	return AddRequest{}, ErrInvalidAddArgs
}

func parseAddJSON(data []byte) (AddRequest, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return AddRequest{}, fmt.Errorf("decode group name: %w", err)
		}
		return ParseAddRequest(name)
	}

	var header struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return AddRequest{}, fmt.Errorf("decode group header: %w", err)
	}
	if header.Name == "" {
		return AddRequest{}, ErrInvalidAddArgs
	}
	return AddRequest{Name: header.Name, Header: json.RawMessage(trimmed)}, nil
}

// ParseOrgObjectsRequest decodes getOrgObjects arguments. Missing or
// malformed arguments yield an empty request, which the registry reports
// as a caller error.
func ParseOrgObjectsRequest(args interface{}) (OrgObjectsRequest, error) {
	switch v := args.(type) {
	case nil:
		return OrgObjectsRequest{}, nil
	case OrgObjectsRequest:
		return v, nil
	case *OrgObjectsRequest:
		if v == nil {
			return OrgObjectsRequest{}, nil
		}
		return *v, nil
	}

	var data []byte
	switch v := args.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return OrgObjectsRequest{}, fmt.Errorf("encode org request: %w", err)
		}
		data = encoded
	}

	var req OrgObjectsRequest
	if len(data) == 0 || string(data) == "null" {
		return req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return OrgObjectsRequest{}, fmt.Errorf("decode org request: %w", err)
	}
	return req, nil
}
