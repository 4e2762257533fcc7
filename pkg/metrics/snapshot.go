package metrics

import "time"

// Snapshot is the full point-in-time read of a Registry (spec.md §3):
// HTTP-lifecycle metrics, a process-health reading, custom metrics, and
// cardinality-governor metadata. Returned by Registry.GetSnapshot and by the
// JSON exposition endpoint.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	HTTP      HTTPMetrics     `json:"http"`
	Process   ProcessSnapshot `json:"process"`
	Custom    CustomMetrics   `json:"custom"`
	Meta      SnapshotMeta    `json:"_meta"`

	// helpText carries each custom metric's registered help string through
	// to the Prometheus formatter; not part of the public JSON contract.
	helpText map[string]string
}

// CustomMetrics holds every user-defined counter, gauge, histogram and timer
// at snapshot time. Histogram and timer values are pre-aggregated
// WindowStats, not raw sample slices — the Window itself never leaves the
// Registry.
type CustomMetrics struct {
	Counters   map[string]float64     `json:"counters"`
	Gauges     map[string]float64     `json:"gauges"`
	Histograms map[string]WindowStats `json:"histograms"`
	Timers     map[string]WindowStats `json:"timers"`
}

// SnapshotMeta reports cardinality-governor state at snapshot time.
type SnapshotMeta struct {
	Cardinality             int `json:"cardinality"`
	MaxCardinality          int `json:"maxCardinality"`
	CardinalityUsagePercent int `json:"cardinalityUsagePercent"`
}
