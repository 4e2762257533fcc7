package metrics

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strconv"
)

// RenderDashboard produces a single self-contained HTML5 document (C7): no
// external resources, inline CSS/JS, every user-controlled string passed
// through html/template so it is escaped automatically.
func RenderDashboard(snapshot Snapshot) (string, error) {
	view := buildDashboardView(snapshot)

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type dashboardView struct {
	GeneratedAt string

	TotalRequests  int64
	ActiveRequests int64
	AvgLatencyMs   string
	Uptime         string
	HeapUsed       string
	EventLoopLagMs string

	RPS string
	P50 string
	P95 string
	P99 string

	Routes []dashboardRoute

	Badges []dashboardBadge

	HeapTotal string
	RSS       string
	CPUUser   string
	CPUSystem string

	ShowCardinality    bool
	CardinalityValue   int
	CardinalityMax     int
	CardinalityPercent int
	CardinalityColor   string

	ShowCustom bool
	Counters   []dashboardKV
	Gauges     []dashboardKV
	Histograms []dashboardHist
	Timers     []dashboardHist
}

type dashboardRoute struct {
	Route      string
	Requests   int64
	AvgLatency string
}

type dashboardBadge struct {
	Code  string
	Count int64
	Class string
}

type dashboardKV struct {
	Name  string
	Value string
}

type dashboardHist struct {
	Name  string
	Count int
	Mean  string
	P95   string
}

func buildDashboardView(s Snapshot) dashboardView {
	v := dashboardView{
		GeneratedAt:    s.Timestamp.Format("2006-01-02 15:04:05 MST"),
		TotalRequests:  s.HTTP.TotalRequests,
		ActiveRequests: s.HTTP.ActiveRequests,
		AvgLatencyMs:   fmt.Sprintf("%.1f", s.HTTP.Latency.Mean),
		Uptime:         formatUptime(s.Process.UptimeSeconds),
		HeapUsed:       formatBytes(s.Process.MemoryUsage.HeapUsed),
		EventLoopLagMs: fmt.Sprintf("%.1f", s.Process.EventLoopLagMs),

		RPS: fmt.Sprintf("%.2f", s.HTTP.RequestsPerSecond),
		P50: fmt.Sprintf("%.1f", s.HTTP.Latency.P50),
		P95: fmt.Sprintf("%.1f", s.HTTP.Latency.P95),
		P99: fmt.Sprintf("%.1f", s.HTTP.Latency.P99),

		HeapTotal: formatBytes(s.Process.MemoryUsage.HeapTotal),
		RSS:       formatBytes(s.Process.MemoryUsage.RSS),
		CPUUser:   fmt.Sprintf("%.6f", float64(s.Process.CPUUsage.User)/1_000_000),
		CPUSystem: fmt.Sprintf("%.6f", float64(s.Process.CPUUsage.System)/1_000_000),
	}

	v.Routes = topRoutes(s.HTTP.ByRoute, 10)

	codes := make([]string, 0, len(s.HTTP.StatusCodes))
	for code := range s.HTTP.StatusCodes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		v.Badges = append(v.Badges, dashboardBadge{Code: code, Count: s.HTTP.StatusCodes[code], Class: badgeClass(code)})
	}

	if s.Meta.MaxCardinality > 0 {
		v.ShowCardinality = true
		v.CardinalityValue = s.Meta.Cardinality
		v.CardinalityMax = s.Meta.MaxCardinality
		v.CardinalityPercent = s.Meta.CardinalityUsagePercent
		v.CardinalityColor = cardinalityColor(s.Meta.CardinalityUsagePercent)
	}

	v.Counters = sortedKV(s.Custom.Counters)
	v.Gauges = sortedKV(s.Custom.Gauges)
	v.Histograms = sortedHist(s.Custom.Histograms)
	v.Timers = sortedHist(s.Custom.Timers)
	v.ShowCustom = len(v.Counters) > 0 || len(v.Gauges) > 0 || len(v.Histograms) > 0 || len(v.Timers) > 0

	return v
}

func topRoutes(byRoute map[string]routeAggregateJSON, limit int) []dashboardRoute {
	routes := make([]dashboardRoute, 0, len(byRoute))
	for route, agg := range byRoute {
		routes = append(routes, dashboardRoute{Route: route, Requests: agg.Count, AvgLatency: fmt.Sprintf("%.1f", agg.AvgLatency)})
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Requests != routes[j].Requests {
			return routes[i].Requests > routes[j].Requests
		}
		return routes[i].Route < routes[j].Route
	})
	if len(routes) > limit {
		routes = routes[:limit]
	}
	return routes
}

func badgeClass(code string) string {
	n, err := strconv.Atoi(code)
	if err != nil {
		return "info"
	}
	switch {
	case n >= 200 && n < 300:
		return "success"
	case n >= 400 && n < 500:
		return "warning"
	case n >= 500:
		return "error"
	default:
		return "info"
	}
}

func cardinalityColor(percent int) string {
	switch {
	case percent >= 90:
		return "red"
	case percent >= 80:
		return "yellow"
	default:
		return "green"
	}
}

func sortedKV(m map[string]float64) []dashboardKV {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]dashboardKV, 0, len(keys))
	for _, k := range keys {
		out = append(out, dashboardKV{Name: k, Value: strconv.FormatFloat(m[k], 'f', -1, 64)})
	}
	return out
}

func sortedHist(m map[string]WindowStats) []dashboardHist {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]dashboardHist, 0, len(keys))
	for _, k := range keys {
		stats := m[k]
		out = append(out, dashboardHist{Name: k, Count: stats.Count, Mean: fmt.Sprintf("%.1f", stats.Mean), P95: fmt.Sprintf("%.1f", stats.P95)})
	}
	return out
}

// formatUptime renders seconds as "Hh Mm" (>= 1h), "Mm Ss" (>= 1m), or "Ss".
func formatUptime(seconds float64) string {
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// formatBytes renders a byte count as "X.Y {B,KB,MB,GB,TB}".
func formatBytes(v uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	f := float64(v)
	i := 0
	for f >= 1024 && i < len(units)-1 {
		f /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", f, units[i])
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Metrics Dashboard</title>
<style>
  body { font-family: -apple-system, Helvetica, Arial, sans-serif; background: #0f1115; color: #e6e6e6; margin: 0; padding: 24px; }
  h1 { font-size: 18px; font-weight: 600; }
  .updated { color: #8a8f98; font-size: 12px; margin-bottom: 20px; }
  .cards { display: grid; grid-template-columns: repeat(6, 1fr); gap: 12px; margin-bottom: 20px; }
  .card { background: #171a21; border-radius: 8px; padding: 12px; }
  .card .label { font-size: 11px; color: #8a8f98; text-transform: uppercase; }
  .card .value { font-size: 20px; font-weight: 600; margin-top: 4px; }
  table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
  th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #262b36; font-size: 13px; }
  th { cursor: pointer; color: #8a8f98; user-select: none; }
  .badge { display: inline-block; padding: 2px 8px; border-radius: 10px; font-size: 12px; margin-right: 6px; }
  .badge.success { background: #13321f; color: #4ade80; }
  .badge.warning { background: #332912; color: #facc15; }
  .badge.error { background: #331414; color: #f87171; }
  .badge.info { background: #16202e; color: #60a5fa; }
  .bar { height: 8px; border-radius: 4px; background: #262b36; overflow: hidden; }
  .bar .fill.green { background: #4ade80; }
  .bar .fill.yellow { background: #facc15; }
  .bar .fill.red { background: #f87171; }
  section { margin-bottom: 20px; }
  section h2 { font-size: 14px; color: #8a8f98; text-transform: uppercase; margin-bottom: 8px; }
</style>
</head>
<body>
<h1>Metrics Dashboard</h1>
<div class="updated">Last updated: {{.GeneratedAt}}</div>

<div class="cards">
  <div class="card"><div class="label">Total Requests</div><div class="value">{{.TotalRequests}}</div></div>
  <div class="card"><div class="label">Active Requests</div><div class="value">{{.ActiveRequests}}</div></div>
  <div class="card"><div class="label">Avg Latency</div><div class="value">{{.AvgLatencyMs}} ms</div></div>
  <div class="card"><div class="label">Uptime</div><div class="value">{{.Uptime}}</div></div>
  <div class="card"><div class="label">Heap Used</div><div class="value">{{.HeapUsed}}</div></div>
  <div class="card"><div class="label">Event Loop Lag</div><div class="value">{{.EventLoopLagMs}} ms</div></div>
</div>

<section>
  <h2>Latency Percentiles</h2>
  <div class="cards">
    <div class="card"><div class="label">RPS</div><div class="value">{{.RPS}}</div></div>
    <div class="card"><div class="label">P50</div><div class="value">{{.P50}} ms</div></div>
    <div class="card"><div class="label">P95</div><div class="value">{{.P95}} ms</div></div>
    <div class="card"><div class="label">P99</div><div class="value">{{.P99}} ms</div></div>
  </div>
</section>

<section>
  <h2>Top Routes</h2>
  <table id="routes-table">
    <thead><tr><th data-col="0">Route</th><th data-col="1">Requests</th><th data-col="2">Avg Latency</th></tr></thead>
    <tbody>
    {{range .Routes}}<tr><td>{{.Route}}</td><td>{{.Requests}}</td><td>{{.AvgLatency}} ms</td></tr>
    {{else}}<tr><td colspan="3">No requests recorded yet.</td></tr>{{end}}
    </tbody>
  </table>
</section>

<section>
  <h2>Status Codes</h2>
  {{range .Badges}}<span class="badge {{.Class}}">{{.Code}}: {{.Count}}</span>{{else}}<span>No requests recorded yet.</span>{{end}}
</section>

<section>
  <h2>Process</h2>
  <div class="cards">
    <div class="card"><div class="label">Heap Total</div><div class="value">{{.HeapTotal}}</div></div>
    <div class="card"><div class="label">RSS</div><div class="value">{{.RSS}}</div></div>
    <div class="card"><div class="label">CPU User</div><div class="value">{{.CPUUser}} s</div></div>
    <div class="card"><div class="label">CPU System</div><div class="value">{{.CPUSystem}} s</div></div>
  </div>
</section>

{{if .ShowCardinality}}
<section>
  <h2>Cardinality</h2>
  <div>{{.CardinalityValue}} / {{.CardinalityMax}} ({{.CardinalityPercent}}%)</div>
  <div class="bar"><div class="fill {{.CardinalityColor}}" style="width: {{.CardinalityPercent}}%"></div></div>
</section>
{{end}}

{{if .ShowCustom}}
<section>
  <h2>Custom Metrics</h2>
  {{if .Counters}}<h3>Counters</h3>{{range .Counters}}<div>{{.Name}}: {{.Value}}</div>{{end}}{{end}}
  {{if .Gauges}}<h3>Gauges</h3>{{range .Gauges}}<div>{{.Name}}: {{.Value}}</div>{{end}}{{end}}
  {{if .Histograms}}<h3>Histograms</h3>{{range .Histograms}}<div>{{.Name}} — Count: {{.Count}} | Mean: {{.Mean}} | P95: {{.P95}}</div>{{end}}{{end}}
  {{if .Timers}}<h3>Timers</h3>{{range .Timers}}<div>{{.Name}} — Count: {{.Count}} | Mean: {{.Mean}}ms | P95: {{.P95}}ms</div>{{end}}{{end}}
</section>
{{end}}

<script>
(function() {
  var table = document.getElementById('routes-table');
  if (!table) return;
  var headers = table.querySelectorAll('th');
  var dir = {};
  headers.forEach(function(th) {
    th.addEventListener('click', function() {
      var col = parseInt(th.getAttribute('data-col'), 10);
      var tbody = table.querySelector('tbody');
      var rows = Array.prototype.slice.call(tbody.querySelectorAll('tr'));
      dir[col] = !dir[col];
      rows.sort(function(a, b) {
        var av = a.children[col].innerText;
        var bv = b.children[col].innerText;
        var an = parseFloat(av), bn = parseFloat(bv);
        var cmp = (!isNaN(an) && !isNaN(bn)) ? (an - bn) : av.localeCompare(bv);
        return dir[col] ? cmp : -cmp;
      });
      rows.forEach(function(r) { tbody.appendChild(r); });
    });
  });
})();
</script>
</body>
</html>
`))
