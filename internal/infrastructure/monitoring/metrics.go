package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Group metrics
	GroupsActive  prometheus.Gauge
	GroupsPending prometheus.Gauge
	GroupFetches  *prometheus.CounterVec
	GroupDeltas   *prometheus.CounterVec
	PollTicks     prometheus.Counter
	PollSkips     prometheus.Counter

	// Message bus metrics
	BusMessages   *prometheus.CounterVec
	BusQueueDepth prometheus.Gauge
	BusDropped    *prometheus.CounterVec

	// Channel metrics
	ChannelConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	ActiveGroups  int64   `json:"active_groups"`
	GroupFetches  int64   `json:"group_fetches"`
	FailedFetches int64   `json:"failed_fetches"`
	BusMessages   int64   `json:"bus_messages"`
	QueueDepth    int64   `json:"queue_depth"`
	TotalDuration float64 `json:"total_duration"`
	RequestCount  int64   `json:"request_count"`
}

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adapter_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adapter_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adapter_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Group metrics
		GroupsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "adapter_groups_active",
				Help: "Number of tracked groups",
			},
		),
		GroupsPending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "adapter_groups_pending",
				Help: "Number of group adds waiting for an account",
			},
		),
		GroupFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_group_fetches_total",
				Help: "Total number of resolved group fetches",
			},
			[]string{"kind", "status"},
		),
		GroupDeltas: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_group_delta_invites_total",
				Help: "Invites reported in group deltas",
			},
			[]string{"kind"},
		),
		PollTicks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "adapter_poll_ticks_total",
				Help: "Total number of shared poll ticks",
			},
		),
		PollSkips: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "adapter_poll_skips_total",
				Help: "Session polls skipped because a fetch was in flight",
			},
		),

		// Message bus metrics
		BusMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_bus_messages_total",
				Help: "Total number of sandbox bus messages",
			},
			[]string{"direction", "name"},
		),
		BusQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "adapter_bus_queue_depth",
				Help: "Messages buffered before the channel handshake",
			},
		),
		BusDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adapter_bus_dropped_total",
				Help: "Inbound messages dropped for an unknown name",
			},
			[]string{"kind"},
		),

		// Channel metrics
		ChannelConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "adapter_channel_connections",
				Help: "Number of connected host channels",
			},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "adapter_uptime_seconds",
				Help: "Adapter uptime in seconds",
			},
		),
	}

	return m
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the metrics in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetGroupsActive sets the number of tracked groups
func (m *Metrics) SetGroupsActive(count int) {
	m.GroupsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveGroups = int64(count)
	m.mu.Unlock()
}

// SetGroupsPending sets the number of deferred group adds
func (m *Metrics) SetGroupsPending(count int) {
	m.GroupsPending.Set(float64(count))
}

// RecordGroupFetch records a resolved group fetch
func (m *Metrics) RecordGroupFetch(kind string, ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	m.GroupFetches.WithLabelValues(kind, status).Inc()

	m.mu.Lock()
	m.snapshot.GroupFetches++
	if !ok {
		m.snapshot.FailedFetches++
	}
	m.mu.Unlock()
}

// RecordGroupDelta records the size of a delta
func (m *Metrics) RecordGroupDelta(added, removed, swapped int) {
	m.GroupDeltas.WithLabelValues("added").Add(float64(added))
	m.GroupDeltas.WithLabelValues("removed").Add(float64(removed))
	m.GroupDeltas.WithLabelValues("swapped").Add(float64(swapped))
}

// IncPollTicks increments the poll tick counter
func (m *Metrics) IncPollTicks() {
	m.PollTicks.Inc()
}

// IncPollSkips increments the skipped poll counter
func (m *Metrics) IncPollSkips() {
	m.PollSkips.Inc()
}

// RecordBusMessage records a bus message
func (m *Metrics) RecordBusMessage(direction, name string) {
	m.BusMessages.WithLabelValues(direction, name).Inc()
	m.mu.Lock()
	m.snapshot.BusMessages++
	m.mu.Unlock()
}

// RecordBusDropped records a dropped inbound message
func (m *Metrics) RecordBusDropped(kind string) {
	m.BusDropped.WithLabelValues(kind).Inc()
}

// SetBusQueueDepth sets the pending connect queue depth
func (m *Metrics) SetBusQueueDepth(depth int) {
	m.BusQueueDepth.Set(float64(depth))
	m.mu.Lock()
	m.snapshot.QueueDepth = int64(depth)
	m.mu.Unlock()
}

// IncChannelConnections increments connected channels
func (m *Metrics) IncChannelConnections() {
	m.ChannelConnections.Inc()
}

// DecChannelConnections decrements connected channels
func (m *Metrics) DecChannelConnections() {
	m.ChannelConnections.Dec()
}

// Snapshot returns current metric values
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// UptimeDuration returns time since the collector was created
func (m *Metrics) UptimeDuration() time.Duration {
	return time.Since(m.startTime)
}
