package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/trackbridge/internal/adapter"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/trackbridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
	"github.com/GriffinCanCode/trackbridge/internal/surface"
)

const statsTimeout = 2 * time.Second

// GroupStats reports registry state.
type GroupStats interface {
	Stats(ctx context.Context) (types.RegistryStats, error)
}

// AdapterState reports adapter state.
type AdapterState interface {
	Manifest() surface.Manifest
	Progress() types.Progress
}

// ChannelState reports whether a host peer is attached.
type ChannelState interface {
	Attached() bool
}

// BusState reports the connection state of the bus.
type BusState interface {
	Live() bool
	Pending() int
}

// BreakerState reports the fetch circuit breaker.
type BreakerState interface {
	BreakerState() resilience.State
	BreakerCounts() resilience.Counts
}

// Deps are the collaborators the handlers read from. Any may be nil.
type Deps struct {
	Groups  GroupStats
	Adapter AdapterState
	Tracker *adapter.Tracker
	Channel ChannelState
	Bus     BusState
	Breaker BreakerState
	Metrics *monitoring.Metrics
	Version string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	return &Handlers{deps: deps}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "trackbridge",
		"version": h.deps.Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{"status": "healthy"}

	if h.deps.Channel != nil {
		resp["channel"] = gin.H{"attached": h.deps.Channel.Attached()}
	}
	if h.deps.Bus != nil {
		resp["bus"] = gin.H{"live": h.deps.Bus.Live(), "pending": h.deps.Bus.Pending()}
	}
	if h.deps.Adapter != nil {
		resp["progress"] = h.deps.Adapter.Progress()
	}
	if h.deps.Breaker != nil {
		state := h.deps.Breaker.BreakerState()
		resp["fetch"] = gin.H{"breaker": state.String()}
		if state == resilience.StateOpen {
			resp["status"] = "degraded"
		}
	}
	if h.deps.Metrics != nil {
		resp["uptime_seconds"] = int64(h.deps.Metrics.UptimeDuration().Seconds())
	}

	c.JSON(http.StatusOK, resp)
}

// ListGroups lists the tracked groups
func (h *Handlers) ListGroups(c *gin.Context) {
	if h.deps.Groups == nil {
		c.JSON(http.StatusOK, types.RegistryStats{Groups: []types.GroupSummary{}})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	stats, err := h.deps.Groups.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetManifest returns the capability manifest advertised to the host
func (h *Handlers) GetManifest(c *gin.Context) {
	if h.deps.Adapter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "adapter not configured"})
		return
	}

	m := h.deps.Adapter.Manifest()
	if m.Invite == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "adapter not running"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// GetState returns the state seen by the in-process controller
func (h *Handlers) GetState(c *gin.Context) {
	if h.deps.Tracker == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, h.deps.Tracker.Snapshot())
}

// Metrics serves Prometheus metrics
func (h *Handlers) Metrics(c *gin.Context) {
	if h.deps.Metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.deps.Metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// MetricsJSON returns a metrics snapshot with breaker statistics
func (h *Handlers) MetricsJSON(c *gin.Context) {
	resp := gin.H{"timestamp": time.Now()}
	if h.deps.Metrics != nil {
		resp["backend"] = h.deps.Metrics.Snapshot()
		resp["uptime_seconds"] = h.deps.Metrics.UptimeDuration().Seconds()
	}
	if h.deps.Breaker != nil {
		counts := h.deps.Breaker.BreakerCounts()
		resp["breaker"] = gin.H{
			"state":                 h.deps.Breaker.BreakerState().String(),
			"requests":              counts.Requests,
			"total_failures":        counts.TotalFailures,
			"consecutive_failures":  counts.ConsecutiveFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
		}
	}
	c.JSON(http.StatusOK, resp)
}
