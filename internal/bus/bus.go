package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/monitoring"
)

var (
	ErrNotConnected     = errors.New("bus: channel not connected")
	ErrAlreadyConnected = errors.New("bus: connect already started")
	ErrUnknownRequest   = errors.New("bus: unknown request")
)

// Channel is the transport to the host peer. Connect blocks until the peer
// has acknowledged the handshake; inbound traffic is delivered to d.
type Channel interface {
	Connect(ctx context.Context, d Dispatcher) error
	Send(name string, payload interface{}) error
}

// Dispatcher receives inbound traffic from a Channel.
type Dispatcher interface {
	Event(name string, payload json.RawMessage)
	Request(ctx context.Context, name string, payload json.RawMessage) (interface{}, error)
}

// EventHandler handles an inbound event.
type EventHandler func(payload json.RawMessage)

// RequestHandler handles an inbound request. A nil result is acknowledged
// as true.
type RequestHandler func(ctx context.Context, payload json.RawMessage) (interface{}, error)

type message struct {
	name    string
	payload interface{}
}

// Bus wraps exactly one Channel.
type Bus struct {
	channel Channel
	logger  *zap.Logger
	metrics *monitoring.Metrics
	onInit  func()

	handlersMu sync.RWMutex
	events     map[string]EventHandler
	requests   map[string]RequestHandler

	// mu guards the connection state and serialises outbound sends so a
	// flush can never interleave with a direct send.
	mu         sync.Mutex
	connecting bool
	live       bool
	pending    []message
}

// New creates a bus over ch. Handlers must be registered before Connect.
func New(ch Channel, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		channel:  ch,
		logger:   logger.Named("bus"),
		events:   make(map[string]EventHandler),
		requests: make(map[string]RequestHandler),
	}
}

// WithMetrics adds metrics tracking to the bus
func (b *Bus) WithMetrics(metrics *monitoring.Metrics) *Bus {
	b.metrics = metrics
	return b
}

// OnInit sets the callback invoked once after the handshake and flush.
func (b *Bus) OnInit(fn func()) {
	b.onInit = fn
}

// HandleEvent registers the handler for an inbound event name.
func (b *Bus) HandleEvent(name string, h EventHandler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.events[name] = h
}

// HandleRequest registers the handler for an inbound request name.
func (b *Bus) HandleRequest(name string, h RequestHandler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.requests[name] = h
}

// Requests lists the registered request names.
func (b *Bus) Requests() []string {
	b.handlersMu.RLock()
	defer b.handlersMu.RUnlock()

	names := make([]string, 0, len(b.requests))
	for name := range b.requests {
		names = append(names, name)
	}
	return names
}

// Live reports whether the handshake has completed.
func (b *Bus) Live() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// Pending returns the number of messages waiting for the handshake.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Send delivers a message to the peer, or queues it until the handshake
// completes.
func (b *Bus) Send(name string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.live {
		b.pending = append(b.pending, message{name: name, payload: payload})
		b.logger.Debug("queued until connected", zap.String("name", name), zap.Int("pending", len(b.pending)))
		if b.metrics != nil {
			b.metrics.SetBusQueueDepth(len(b.pending))
		}
		return nil
	}

	return b.send(name, payload)
}

// send requires b.mu.
func (b *Bus) send(name string, payload interface{}) error {
	if err := b.channel.Send(name, payload); err != nil {
		if b.metrics != nil {
			b.metrics.RecordBusDropped("send")
		}
		return fmt.Errorf("send %s: %w", name, err)
	}
	if b.metrics != nil {
		b.metrics.RecordBusMessage("out", name)
	}
	return nil
}

// Connect performs the handshake. On success the bus goes live, the
// pending queue is flushed in insertion order and the init callback runs.
// Connect may only be started once.
func (b *Bus) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.connecting || b.live {
		b.mu.Unlock()
		return ErrAlreadyConnected
	}
	b.connecting = true
	b.mu.Unlock()

	if err := b.channel.Connect(ctx, b); err != nil {
		b.mu.Lock()
		b.connecting = false
		b.mu.Unlock()
		return fmt.Errorf("bus connect: %w", err)
	}

	b.mu.Lock()
	b.live = true
	b.connecting = false
	pending := b.pending
	b.pending = nil
	for _, m := range pending {
		if err := b.send(m.name, m.payload); err != nil {
			b.logger.Warn("Flush failed", zap.String("name", m.name), zap.Error(err))
		}
	}
	if b.metrics != nil {
		b.metrics.SetBusQueueDepth(0)
	}
	b.mu.Unlock()

	b.logger.Info("Channel connected", zap.Int("flushed", len(pending)))

	if b.onInit != nil {
		b.onInit()
	}
	return nil
}

// Event dispatches an inbound event. Unknown names are logged and dropped.
func (b *Bus) Event(name string, payload json.RawMessage) {
	b.handlersMu.RLock()
	h, ok := b.events[name]
	b.handlersMu.RUnlock()

	if !ok {
		b.logger.Warn("Unknown event dropped", zap.String("name", name))
		if b.metrics != nil {
			b.metrics.RecordBusDropped("event")
		}
		return
	}

	if b.metrics != nil {
		b.metrics.RecordBusMessage("in", name)
	}
	h(payload)
}

// Request dispatches an inbound request and returns its acknowledgment.
func (b *Bus) Request(ctx context.Context, name string, payload json.RawMessage) (interface{}, error) {
	b.handlersMu.RLock()
	h, ok := b.requests[name]
	b.handlersMu.RUnlock()

	if !ok {
		b.logger.Warn("Unknown request dropped", zap.String("name", name))
		if b.metrics != nil {
			b.metrics.RecordBusDropped("request")
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, name)
	}

	if b.metrics != nil {
		b.metrics.RecordBusMessage("in", name)
	}

	result, err := h(ctx, payload)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return true, nil
	}
	return result, nil
}
