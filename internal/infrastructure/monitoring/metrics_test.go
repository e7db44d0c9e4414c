package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.SetGroupsActive(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(a.GroupsActive))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.GroupsActive))
}

func TestRecordGroupFetch(t *testing.T) {
	m := NewMetrics()

	m.RecordGroupFetch("initial", true)
	m.RecordGroupFetch("events", false)
	m.RecordGroupFetch("events", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.GroupFetches.WithLabelValues("initial", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.GroupFetches.WithLabelValues("events", "failure")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.GroupFetches)
	assert.Equal(t, int64(2), snap.FailedFetches)
}

func TestBusMetrics(t *testing.T) {
	m := NewMetrics()

	m.RecordBusMessage("out", "Progress")
	m.SetBusQueueDepth(4)
	m.RecordBusDropped("event")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.BusMessages.WithLabelValues("out", "Progress")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.BusQueueDepth))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BusDropped.WithLabelValues("event")))
	assert.Equal(t, int64(4), m.Snapshot().QueueDepth)
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/ping", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "adapter_http_requests_total"))
	assert.Greater(t, m.UptimeDuration(), time.Duration(0))
}
