package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDashboardContainsSixCards(t *testing.T) {
	html, err := RenderDashboard(Snapshot{Timestamp: time.Now()})
	require.NoError(t, err)

	for _, label := range []string{"Total Requests", "Active Requests", "Avg Latency", "Uptime", "Heap Used", "Event Loop Lag"} {
		assert.Contains(t, html, label)
	}
}

func TestRenderDashboardEmptyStateMessages(t *testing.T) {
	html, err := RenderDashboard(Snapshot{})
	require.NoError(t, err)

	assert.Contains(t, html, "No requests recorded yet.")
	assert.NotContains(t, html, "Cardinality")
	assert.NotContains(t, html, "Custom Metrics")
}

func TestRenderDashboardCardinalitySectionShownWhenConfigured(t *testing.T) {
	snap := Snapshot{Meta: SnapshotMeta{Cardinality: 90, MaxCardinality: 100, CardinalityUsagePercent: 90}}
	html, err := RenderDashboard(snap)
	require.NoError(t, err)

	assert.Contains(t, html, "Cardinality")
	assert.Contains(t, html, "90 / 100 (90%)")
	assert.Contains(t, html, "fill red")
}

func TestRenderDashboardCustomMetricsSectionShownWhenPresent(t *testing.T) {
	snap := Snapshot{
		Custom: CustomMetrics{
			Counters: map[string]float64{"widgets_total": 5},
		},
	}
	html, err := RenderDashboard(snap)
	require.NoError(t, err)

	assert.Contains(t, html, "Custom Metrics")
	assert.Contains(t, html, "widgets_total: 5")
}

func TestRenderDashboardEscapesUntrustedRouteNames(t *testing.T) {
	snap := Snapshot{
		HTTP: HTTPMetrics{
			ByRoute: map[string]routeAggregateJSON{
				"/x<script>alert(1)</script>": {Count: 1, AvgLatency: 2},
			},
		},
	}
	html, err := RenderDashboard(snap)
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestBadgeClassMapping(t *testing.T) {
	assert.Equal(t, "success", badgeClass("200"))
	assert.Equal(t, "success", badgeClass("204"))
	assert.Equal(t, "warning", badgeClass("404"))
	assert.Equal(t, "error", badgeClass("500"))
	assert.Equal(t, "info", badgeClass("301"))
	assert.Equal(t, "info", badgeClass("not-a-code"))
}

func TestCardinalityColorThresholds(t *testing.T) {
	assert.Equal(t, "green", cardinalityColor(50))
	assert.Equal(t, "yellow", cardinalityColor(80))
	assert.Equal(t, "red", cardinalityColor(95))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5s", formatUptime(5))
	assert.Equal(t, "2m 5s", formatUptime(125))
	assert.Equal(t, "1h 1m", formatUptime(3660))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512.0 B", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(1024*1024*3/2))
}

func TestTopRoutesSortedByCountThenRouteAndLimited(t *testing.T) {
	byRoute := map[string]routeAggregateJSON{
		"/a": {Count: 1},
		"/b": {Count: 5},
		"/c": {Count: 5},
	}
	routes := topRoutes(byRoute, 2)
	require.Len(t, routes, 2)
	assert.Equal(t, "/b", routes[0].Route)
	assert.Equal(t, "/c", routes[1].Route)
}
