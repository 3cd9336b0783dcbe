package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.ObserveBackend("fetch hierarchy", "ok", 10*time.Millisecond)
	c.ObserveRefresh("ready", 20*time.Millisecond)
	c.RefreshJoined()
	c.RefreshJoined()
	c.Mutation("delete", errors.New("boom"))
	c.SetPushState("connected", "disconnected", "connecting", "connected")

	assert.InDelta(t, 1, testutil.ToFloat64(c.BackendRequests.WithLabelValues("fetch hierarchy", "ok")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.RefreshJoins), 0)
	assert.InDelta(t, 0.02, testutil.ToFloat64(c.RefreshDuration), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(c.Mutations.WithLabelValues("delete", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.PushState.WithLabelValues("connected")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(c.PushState.WithLabelValues("connecting")), 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "asset_console_hierarchy_refresh_joins_total 2")
}

func TestNilCollectorIsSafe(t *testing.T) {
	t.Parallel()

	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveHTTP("GET", "/", 200, time.Millisecond)
		c.ObserveRefresh("errored", time.Millisecond)
		c.PushEvent("stats")
		c.EventDropped("toast")
	})
}
