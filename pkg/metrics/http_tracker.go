package metrics

import (
	"strconv"
	"sync"
	"time"
)

// RouteAggregate is the count/latency rollup kept per HTTP method or per route.
type RouteAggregate struct {
	Count         int64   `json:"count"`
	TotalDuration float64 `json:"-"`
}

// AvgLatency returns TotalDuration/Count, or 0 for an aggregate with no samples.
func (a RouteAggregate) AvgLatency() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.TotalDuration / float64(a.Count)
}

// asJSON projects the aggregate to its {count, avgLatency} wire form per
// spec.md §3 ("Route/Method Aggregate").
func (a RouteAggregate) asJSON() routeAggregateJSON {
	return routeAggregateJSON{Count: a.Count, AvgLatency: a.AvgLatency()}
}

type routeAggregateJSON struct {
	Count      int64   `json:"count"`
	AvgLatency float64 `json:"avgLatency"`
}

// HTTPMetrics is the materialised, point-in-time view of the HTTPTracker.
type HTTPMetrics struct {
	TotalRequests     int64                         `json:"totalRequests"`
	ActiveRequests    int64                          `json:"activeRequests"`
	RequestsPerSecond float64                        `json:"requestsPerSecond"`
	StatusCodes       map[string]int64               `json:"statusCodes"`
	Latency           WindowStats                     `json:"latency"`
	ByMethod          map[string]routeAggregateJSON   `json:"byMethod"`
	ByRoute           map[string]routeAggregateJSON   `json:"byRoute"`
}

// HTTPTracker accumulates counters and a latency Window across requests. All
// mutating methods take tracker.mu; getMetrics takes a read lock for the
// duration of the copy.
type HTTPTracker struct {
	mu sync.RWMutex

	totalRequests  int64
	activeRequests int64
	statusCodes    map[string]int64
	latency        *Window
	byMethod       map[string]*RouteAggregate
	byRoute        map[string]*RouteAggregate

	windowCapacity int
	trackerStart   time.Time
	now            func() time.Time
}

// NewHTTPTracker creates a tracker whose latency Window has the given
// capacity (spec.md's histogramLimit).
func NewHTTPTracker(windowCapacity int) *HTTPTracker {
	return newHTTPTrackerWithClock(windowCapacity, time.Now)
}

func newHTTPTrackerWithClock(windowCapacity int, now func() time.Time) *HTTPTracker {
	return &HTTPTracker{
		statusCodes:    make(map[string]int64),
		latency:        NewWindow(windowCapacity),
		byMethod:       make(map[string]*RouteAggregate),
		byRoute:        make(map[string]*RouteAggregate),
		windowCapacity: windowCapacity,
		trackerStart:   now(),
		now:            now,
	}
}

// StartRequest increments activeRequests. Callers are responsible for pairing
// with RecordRequest; no bound is enforced here.
func (t *HTTPTracker) StartRequest() {
	t.mu.Lock()
	t.activeRequests++
	t.mu.Unlock()
}

// RecordRequest records one completed request. If activeRequests > 0 it is
// decremented; it never goes negative even when RecordRequest is called
// without a matching StartRequest. The sample is recorded regardless.
func (t *HTTPTracker) RecordRequest(method, path string, status int, durationMs float64) {
	statusKey := strconv.Itoa(status)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.activeRequests > 0 {
		t.activeRequests--
	}
	t.totalRequests++
	t.statusCodes[statusKey]++
	t.latency.Push(durationMs)

	m := t.byMethod[method]
	if m == nil {
		m = &RouteAggregate{}
		t.byMethod[method] = m
	}
	m.Count++
	m.TotalDuration += durationMs

	r := t.byRoute[path]
	if r == nil {
		r = &RouteAggregate{}
		t.byRoute[path] = r
	}
	r.Count++
	r.TotalDuration += durationMs
}

// GetMetrics materialises the current HTTPMetrics value.
func (t *HTTPTracker) GetMetrics() HTTPMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	elapsed := t.now().Sub(t.trackerStart).Seconds()
	var rps float64
	if elapsed > epsilon {
		rps = float64(t.totalRequests) / elapsed
	}

	statusCodes := make(map[string]int64, len(t.statusCodes))
	for k, v := range t.statusCodes {
		statusCodes[k] = v
	}

	byMethod := make(map[string]routeAggregateJSON, len(t.byMethod))
	for k, v := range t.byMethod {
		byMethod[k] = v.asJSON()
	}

	byRoute := make(map[string]routeAggregateJSON, len(t.byRoute))
	for k, v := range t.byRoute {
		byRoute[k] = v.asJSON()
	}

	return HTTPMetrics{
		TotalRequests:     t.totalRequests,
		ActiveRequests:    t.activeRequests,
		RequestsPerSecond: rps,
		StatusCodes:       statusCodes,
		Latency:           t.latency.Stats(),
		ByMethod:          byMethod,
		ByRoute:           byRoute,
	}
}

// Reset zeros every field and restarts the tracker clock.
func (t *HTTPTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalRequests = 0
	t.activeRequests = 0
	t.statusCodes = make(map[string]int64)
	t.latency = NewWindow(t.windowCapacity)
	t.byMethod = make(map[string]*RouteAggregate)
	t.byRoute = make(map[string]*RouteAggregate)
	t.trackerStart = t.now()
}

// epsilon guards requestsPerSecond against division by (near) zero when the
// tracker was started this same instant.
const epsilon = 1e-9
