package adapter

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/trackbridge/internal/bus"
	"github.com/GriffinCanCode/trackbridge/internal/cards"
	"github.com/GriffinCanCode/trackbridge/internal/domain/invite"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/trackbridge/internal/sandbox"
	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
	"github.com/GriffinCanCode/trackbridge/internal/surface"
	"github.com/GriffinCanCode/trackbridge/internal/viewer"
)

// PortName is the channel name passed to the initialize script.
const PortName = "glympse"

// Namespace ids exposed to the host.
const (
	NamespaceMap   = "map"
	NamespaceCards = "cards"
	NamespaceCore  = "core"
)

const (
	progressViewer = 3
	progressCard   = 5 + 1*2
	// a card discovered after startup adds its own steps minus the
	// viewer steps already counted
	progressCardGrowth = progressCard - 2
)

// Controller receives adapter notifications in-process.
type Controller interface {
	Notify(msg types.Msg, args interface{})
}

// ControllerFunc adapts a function to Controller.
type ControllerFunc func(msg types.Msg, args interface{})

// Notify calls f(msg, args).
func (f ControllerFunc) Notify(msg types.Msg, args interface{}) {
	f(msg, args)
}

// Viewer is the map viewer collaborator.
type Viewer interface {
	surface.Target
	Attach(element string)
	Run()
	Load(cfg map[string]interface{})
	GetCurrentValue(id string) interface{}
}

// Cards is the card controller collaborator.
type Cards interface {
	surface.Target
	Init(refs []string)
}

// Registry is the group registry collaborator backing the core namespace.
type Registry interface {
	surface.Target
	Notify(msg types.Msg, args interface{})
}

// Options configures an Adapter.
type Options struct {
	Config config.AdapterConfig
	Viewer map[string]interface{}

	// NewViewer and NewCards build the collaborators during Run. They
	// default to the in-process viewer.Monitor and cards.Controller.
	NewViewer func(host viewer.Host) Viewer
	NewCards  func(host cards.Host) Cards

	// Registry is optional; the core namespace exists only when set.
	Registry Registry
	Sandbox  sandbox.Config
	Logger   *zap.Logger
}

// Adapter orchestrates one host session.
type Adapter struct {
	controller Controller
	bus        *bus.Bus
	cfg        config.AdapterConfig
	registry   Registry
	newViewer  func(host viewer.Host) Viewer
	newCards   func(host cards.Host) Cards
	sandboxCfg sandbox.Config
	logger     *zap.Logger

	mu          sync.Mutex
	initialized bool
	viewerCfg   map[string]interface{}
	viewer      Viewer
	cards       Cards
	surface     *surface.Surface
	manifest    surface.Manifest
	runtime     *sandbox.Runtime
	ext         map[string]*sandbox.Function
	initScript  *sandbox.Function
	invitesCard []string

	progressMu      sync.Mutex
	progressCurrent int
	progressTotal   int
}

// New creates an adapter that reports to controller and talks to the
// host through b.
func New(controller Controller, b *bus.Bus, opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if controller == nil {
		controller = ControllerFunc(func(types.Msg, interface{}) {})
	}

	a := &Adapter{
		controller: controller,
		bus:        b,
		cfg:        opts.Config,
		registry:   opts.Registry,
		newViewer:  opts.NewViewer,
		newCards:   opts.NewCards,
		sandboxCfg: opts.Sandbox,
		logger:     logger.Named("adapter"),
		viewerCfg:  make(map[string]interface{}, len(opts.Viewer)),
		ext:        make(map[string]*sandbox.Function),
	}
	for k, v := range opts.Viewer {
		a.viewerCfg[k] = v
	}

	if a.newViewer == nil {
		a.newViewer = func(host viewer.Host) Viewer {
			return viewer.NewMonitor(host, logger)
		}
	}
	if a.newCards == nil {
		a.newCards = func(host cards.Host) Cards {
			return cards.NewController(host, logger)
		}
	}
	return a
}

// Run starts the adapter for viewerElement. Subsequent calls do nothing.
// The handshake runs in the background until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context, viewerElement string) {
	a.mu.Lock()
	if a.initialized {
		a.mu.Unlock()
		return
	}
	a.initialized = true

	a.viewer = a.newViewer(a)
	a.viewer.Attach(viewerElement)
	a.cards = a.newCards(a)
	a.compileInterfaces()

	s, err := surface.Build(a.namespaces(), a.extOperations())
	if err != nil {
		// namespaces are fixed at compile time
		a.mu.Unlock()
		a.logger.Error("Failed to build surface", zap.Error(err))
		return
	}
	a.surface = s
	a.manifest = s.Manifest(a.manifestInvite())
	manifest := a.manifest
	a.mu.Unlock()

	a.registerHandlers()
	a.bus.OnInit(a.onConnected)
	a.sendMessage(types.MsgConnected, manifest)

	go func() {
		if err := a.bus.Connect(ctx); err != nil {
			a.logger.Warn("Channel handshake failed", zap.Error(err))
		}
	}()

	card := a.cfg.Card
	invitesGlympse := invite.NormalizeAll(invite.SplitMulti(a.cfg.T))
	t := strings.Join(invitesGlympse, ";")

	a.mu.Lock()
	if card != "" {
		a.invitesCard = invite.NormalizeAll([]string{card})
	}
	a.mu.Unlock()

	a.progressMu.Lock()
	a.progressCurrent = 0
	if card != "" {
		a.progressTotal = progressCard
	} else {
		a.progressTotal = progressViewer
	}
	a.progressMu.Unlock()

	a.notifyController(types.MsgAdapterInit, types.AdapterInit{
		IsCard: card != "",
		T:      invitesGlympse,
		PG:     invite.SplitMulti(a.cfg.PG),
		TWT:    invite.SplitMulti(a.cfg.TWT),
		G:      invite.SplitMulti(a.cfg.G),
	}, true)
	a.updateProgress()

	switch {
	case card != "":
		a.cards.Init(a.cardInvites())
	case t != "" || a.cfg.PG != "" || a.cfg.G != "" || a.cfg.TWT != "":
		a.LoadViewer(map[string]interface{}{
			"t":   t,
			"pg":  a.cfg.PG,
			"twt": a.cfg.TWT,
			"g":   a.cfg.G,
		})
	}
}

// manifestInvite is the first invite of the viewer configuration.
// Requires a.mu.
func (a *Adapter) manifestInvite() string {
	if t, ok := a.viewerCfg["t"].(string); ok && t != "" {
		return strings.Split(t, ",")[0]
	}
	return ""
}

// namespaces declares map, cards and, with a registry, core.
// Requires a.mu.
func (a *Adapter) namespaces() []surface.Namespace {
	namespaces := []surface.Namespace{
		{
			ID:     NamespaceMap,
			Target: a.viewer,
			Local: []surface.Operation{
				{Name: "getValue", Handler: a.getValue},
			},
			Forward:  viewer.Requests,
			Internal: viewer.LocalRequests,
		},
		{
			ID:       NamespaceCards,
			Target:   a.cards,
			Forward:  cards.Requests,
			Internal: cards.LocalRequests,
		},
	}

	if a.registry != nil {
		namespaces = append(namespaces, surface.Namespace{
			ID:      NamespaceCore,
			Target:  a.registry,
			Forward: []string{types.ReqAddGroup, types.ReqGetOrgObjects},
		})
	}
	return namespaces
}

// LoadViewer merges cfg into the viewer configuration and (re)loads the
// viewer.
func (a *Adapter) LoadViewer(cfg map[string]interface{}) {
	a.mu.Lock()
	for k, v := range cfg {
		a.viewerCfg[k] = v
	}
	merged := make(map[string]interface{}, len(a.viewerCfg))
	for k, v := range a.viewerCfg {
		merged[k] = v
	}
	v := a.viewer
	a.mu.Unlock()

	if v == nil {
		a.logger.Warn("LoadViewer before Run")
		return
	}
	v.Run()
	v.Load(merged)
}

// Notify handles collaborator notifications.
func (a *Adapter) Notify(msg types.Msg, args interface{}) {
	switch msg {
	case types.MsgViewerInit,
		types.MsgViewerReady,
		types.MsgCardsInitStart,
		types.MsgCardInit,
		types.MsgCardReady,
		types.MsgCardsInitEnd:
		a.updateProgress()
		a.sendEvent(msg, args)

	case types.MsgDataUpdate:
		if ref := dataRef(args); ref != "" && a.addCard(ref) {
			a.notifyController(types.MsgAdapterInit, types.AdapterInit{IsCard: true}, false)
			a.updateProgress()
			a.cardsController().Init(a.cardInvites())
		}
		a.sendEvent(msg, args)

	case types.MsgGroupLoaded, types.MsgGroupStatus, types.MsgOrgObjects:
		a.sendEvent(msg, args)

	default:
		a.logger.Debug("notify(): unknown msg", zap.String("msg", msg), zap.Any("args", args))
	}
}

// addCard records a newly discovered card and grows the progress total.
func (a *Adapter) addCard(ref string) bool {
	a.mu.Lock()
	for _, known := range a.invitesCard {
		if known == ref {
			a.mu.Unlock()
			return false
		}
	}
	a.invitesCard = append(a.invitesCard, ref)
	a.mu.Unlock()

	a.progressMu.Lock()
	a.progressTotal += progressCardGrowth
	a.progressMu.Unlock()
	return true
}

func (a *Adapter) cardsController() Cards {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cards
}

func (a *Adapter) cardInvites() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.invitesCard...)
}

// InfoUpdate reports a viewer property change.
func (a *Adapter) InfoUpdate(id string, val interface{}) {
	update := types.StateUpdate{ID: id, Val: val}
	a.notifyController(types.MsgStateUpdate, update, false)
	a.sendMessage(types.MsgStateUpdate, update)
}

// Progress returns the current progress step and total.
func (a *Adapter) Progress() types.Progress {
	a.progressMu.Lock()
	defer a.progressMu.Unlock()
	return a.progressLocked()
}

// progressLocked caps the reported step at the total. Requires progressMu.
func (a *Adapter) progressLocked() types.Progress {
	curr := a.progressCurrent
	if curr > a.progressTotal {
		curr = a.progressTotal
	}
	return types.Progress{Current: curr, Total: a.progressTotal}
}

// Manifest returns the manifest queued for the host. It is empty before
// Run.
func (a *Adapter) Manifest() surface.Manifest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.manifest
}

// Call invokes ns.op in-process, including operations the host never
// sees.
func (a *Adapter) Call(ns, op string, args interface{}) (interface{}, error) {
	a.mu.Lock()
	s := a.surface
	a.mu.Unlock()

	if s == nil {
		return nil, surface.ErrUnknownNamespace
	}
	return s.Call(ns, op, args)
}

// Close releases the script runtime.
func (a *Adapter) Close() error {
	a.mu.Lock()
	rt := a.runtime
	a.runtime = nil
	a.mu.Unlock()

	if rt == nil {
		return nil
	}
	return rt.Close()
}

func (a *Adapter) getValue(args interface{}) interface{} {
	a.mu.Lock()
	v := a.viewer
	a.mu.Unlock()

	if v == nil {
		return types.NotInitialized
	}
	return v.GetCurrentValue(valueID(args))
}

func (a *Adapter) updateProgress() {
	a.progressMu.Lock()
	a.progressCurrent++
	p := a.progressLocked()
	a.progressMu.Unlock()

	a.sendEvent(types.MsgProgress, p)
}

func (a *Adapter) sendEvent(msg types.Msg, args interface{}) {
	a.sendMessage(msg, args)
	a.notifyController(msg, args, true)
}

// notifyController delivers to the controller unless the event or update
// channel is hidden.
func (a *Adapter) notifyController(msg types.Msg, args interface{}, event bool) {
	if (!event && a.cfg.HideUpdates) || (event && a.cfg.HideEvents) {
		return
	}
	a.controller.Notify(msg, args)
}

func (a *Adapter) sendMessage(name string, payload interface{}) {
	if err := a.bus.Send(name, payload); err != nil {
		a.logger.Warn("Send failed", zap.String("name", name), zap.Error(err))
	}
}
