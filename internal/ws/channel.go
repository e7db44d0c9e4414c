package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/trackbridge/internal/bus"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/trackbridge/internal/shared/id"
	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
)

var (
	ErrPeerClosed        = errors.New("ws: peer closed")
	ErrDispatcherMissing = errors.New("ws: connect has not been called")
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	maxFrameSize            = 1 << 20
)

// Options configures a Channel.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// CheckOrigin decides which pages may attach. Nil allows all origins.
	CheckOrigin func(r *http.Request) bool
}

// peer is one attached host connection.
type peer struct {
	id   id.ConnectionID
	conn *websocket.Conn

	writeMu      sync.Mutex
	writeTimeout time.Duration
	closed       chan struct{}
	closeOnce    sync.Once
}

func (p *peer) write(frame types.Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	select {
	case <-p.closed:
		return ErrPeerClosed
	default:
	}

	data, err := sonic.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.conn.Close()
	})
}

// Channel is a bus.Channel backed by a WebSocket peer.
type Channel struct {
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu         sync.Mutex
	dispatcher bus.Dispatcher
	peer       *peer
	attached   bool
	greeting   func() (string, interface{})
	ready      chan struct{}
	readyOnce  sync.Once
}

// NewChannel creates an unattached channel.
func NewChannel(logger *zap.Logger, opts Options) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}

	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Channel{
		opts:     opts,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   logger.Named("ws"),
		ready:    make(chan struct{}),
	}
}

// WithMetrics adds metrics tracking to the channel
func (c *Channel) WithMetrics(metrics *monitoring.Metrics) *Channel {
	c.metrics = metrics
	return c
}

// SetGreeting sets the message written to every host that attaches after
// the first one. The first host is greeted by the bus flush.
func (c *Channel) SetGreeting(fn func() (name string, payload interface{})) {
	c.mu.Lock()
	c.greeting = fn
	c.mu.Unlock()
}

// Connect registers d for inbound traffic and blocks until a host peer
// completes the handshake.
func (c *Channel) Connect(ctx context.Context, d bus.Dispatcher) error {
	c.mu.Lock()
	c.dispatcher = d
	c.mu.Unlock()

	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes a named message to the attached peer.
func (c *Channel) Send(name string, payload interface{}) error {
	c.mu.Lock()
	p := c.peer
	c.mu.Unlock()

	if p == nil {
		return bus.ErrNotConnected
	}

	frame, err := messageFrame(name, payload)
	if err != nil {
		return err
	}
	return p.write(frame)
}

func messageFrame(name string, payload interface{}) (types.Frame, error) {
	data, err := encode(payload)
	if err != nil {
		return types.Frame{}, fmt.Errorf("encode %s: %w", name, err)
	}
	return types.Frame{
		Type:    types.FrameMessage,
		ID:      id.NewMessageID().String(),
		Name:    name,
		Payload: data,
	}, nil
}

// Attached reports whether a peer is currently attached.
func (c *Channel) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer != nil
}

// HandleConnection upgrades the request and serves the host peer until it
// disconnects.
func (c *Channel) HandleConnection(ctx *gin.Context) {
	c.mu.Lock()
	dispatcher := c.dispatcher
	busy := c.peer != nil
	c.mu.Unlock()

	if dispatcher == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrDispatcherMissing.Error()})
		return
	}
	if busy {
		ctx.JSON(http.StatusConflict, gin.H{"error": "a host is already attached"})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxFrameSize)

	p := &peer{
		id:           id.NewConnectionID(),
		conn:         conn,
		writeTimeout: c.opts.WriteTimeout,
		closed:       make(chan struct{}),
	}
	defer p.close()

	logger := c.logger.With(zap.String("conn", p.id.String()))

	if err := c.handshake(p); err != nil {
		logger.Warn("Handshake failed", zap.Error(err))
		return
	}
	if !c.attach(p, logger) {
		logger.Warn("Another host attached first")
		return
	}
	defer c.detach(p)

	logger.Info("Host attached")
	c.serve(ctx.Request.Context(), p, dispatcher, logger)
	logger.Info("Host detached")
}

func (c *Channel) handshake(p *peer) error {
	if err := p.conn.SetReadDeadline(time.Now().Add(c.opts.HandshakeTimeout)); err != nil {
		return err
	}

	var frame types.Frame
	if err := p.conn.ReadJSON(&frame); err != nil {
		return fmt.Errorf("read connect frame: %w", err)
	}
	if frame.Type != types.FrameConnect {
		return fmt.Errorf("expected %s frame, got %q", types.FrameConnect, frame.Type)
	}

	if err := p.conn.SetReadDeadline(time.Time{}); err != nil {
		return err
	}
	return p.write(types.Frame{Type: types.FrameConnected, ID: p.id.String()})
}

// attach makes p the current peer. A host replacing a detached one gets
// the greeting before any other message, since Send cannot see p until
// it is written.
func (c *Channel) attach(p *peer, logger *zap.Logger) bool {
	c.mu.Lock()
	greeting := c.greeting
	if !c.attached {
		greeting = nil
	}
	c.mu.Unlock()

	var hello *types.Frame
	if greeting != nil {
		name, payload := greeting()
		frame, err := messageFrame(name, payload)
		if err != nil {
			logger.Warn("Greeting dropped", zap.Error(err))
		} else {
			hello = &frame
		}
	}

	c.mu.Lock()
	if c.peer != nil {
		c.mu.Unlock()
		return false
	}
	if hello != nil {
		if err := p.write(*hello); err != nil {
			c.mu.Unlock()
			logger.Warn("Greeting write failed", zap.Error(err))
			return false
		}
	}
	c.peer = p
	c.attached = true
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncChannelConnections()
	}
	c.readyOnce.Do(func() { close(c.ready) })
	return true
}

func (c *Channel) detach(p *peer) {
	c.mu.Lock()
	if c.peer == p {
		c.peer = nil
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.DecChannelConnections()
	}
}

func (c *Channel) serve(ctx context.Context, p *peer, d bus.Dispatcher, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var frame types.Frame
		if err := sonic.Unmarshal(data, &frame); err != nil {
			logger.Warn("Malformed frame dropped", zap.Error(err))
			continue
		}

		switch frame.Type {
		case types.FrameEvent:
			d.Event(frame.Name, frame.Payload)

		case types.FrameRequest:
			wg.Add(1)
			go func(frame types.Frame) {
				defer wg.Done()
				c.respond(ctx, p, d, frame, logger)
			}(frame)

		default:
			logger.Debug("Unexpected frame", zap.String("type", string(frame.Type)), zap.String("name", frame.Name))
		}
	}
}

func (c *Channel) respond(ctx context.Context, p *peer, d bus.Dispatcher, frame types.Frame, logger *zap.Logger) {
	reply := types.Frame{Type: types.FrameResponse, ID: frame.ID, Name: frame.Name}

	result, err := d.Request(ctx, frame.Name, frame.Payload)
	if err != nil {
		reply.Error = err.Error()
	} else if reply.Payload, err = encode(result); err != nil {
		reply.Error = err.Error()
	}

	if err := p.write(reply); err != nil && !errors.Is(err, ErrPeerClosed) {
		logger.Warn("Response write failed", zap.String("name", frame.Name), zap.Error(err))
	}
}

func encode(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return data, nil
}
