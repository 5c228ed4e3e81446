package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRoutePath(t *testing.T) {
	assert.Equal(t, "/api/v1/report/{id}", normalizeRoutePath("/api/v1/report/608cafe595eb9dc05379b7f4"))
	assert.Equal(t, "/api/v1/report/{id}/assign", normalizeRoutePath("/api/v1/report/608cafe595eb9dc05379b7f4/assign"))
	assert.Equal(t, "/api/v1/reports", normalizeRoutePath("/api/v1/reports"))
	// Short hex segments are not ObjectIDs and stay as-is.
	assert.Equal(t, "/api/v1/report/abc123", normalizeRoutePath("/api/v1/report/abc123"))
}

func TestMetricsCollectorAggregates(t *testing.T) {
	mc := &MetricsCollector{
		routeMetrics: make(map[string]*RouteMetrics),
		windowStart:  time.Now(),
		traceChan:    make(chan RequestTrace, 10),
		stopChan:     make(chan struct{}),
	}

	mc.processTrace(RequestTrace{Method: "GET", Path: "/api/v1/reports", Status: 200, TotalDuration: 10 * time.Millisecond})
	mc.processTrace(RequestTrace{Method: "GET", Path: "/api/v1/reports", Status: 500, TotalDuration: 30 * time.Millisecond})
	mc.processTrace(RequestTrace{Method: "GET", Path: "/api/v1/report/608cafe595eb9dc05379b7f4", Status: 200, TotalDuration: 5 * time.Millisecond})

	routes := mc.GetRouteMetrics()
	list := routes["GET /api/v1/reports"]
	if assert.NotNil(t, list) {
		assert.Equal(t, int64(2), list.Count)
		assert.Equal(t, int64(1), list.ErrorCount)
		assert.Equal(t, 10*time.Millisecond, list.MinTime)
		assert.Equal(t, 30*time.Millisecond, list.MaxTime)
		assert.Equal(t, 20*time.Millisecond, list.AvgTime)
	}
	assert.NotNil(t, routes["GET /api/v1/report/{id}"])

	summary := mc.GetSummary()
	assert.Equal(t, int64(3), summary["totalRequests"])
	assert.Equal(t, int64(1), summary["totalErrors"])
	assert.Equal(t, 2, summary["routeCount"])
}

func TestRecordTraceDropsWhenFull(t *testing.T) {
	mc := &MetricsCollector{
		routeMetrics: make(map[string]*RouteMetrics),
		traceChan:    make(chan RequestTrace, 1),
		stopChan:     make(chan struct{}),
	}

	// No consumer running; the second trace must be dropped, not block.
	mc.RecordTrace(RequestTrace{Method: "GET", Path: "/a"})
	mc.RecordTrace(RequestTrace{Method: "GET", Path: "/b"})

	assert.Len(t, mc.traceChan, 1)
}
