package metrics

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// standardLatencyBuckets are the fixed bucket boundaries (seconds) used for
// http_request_duration_seconds (spec.md §4.6).
var standardLatencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var invalidNameChar = regexp.MustCompile(`[^A-Za-z0-9_:]`)
var invalidFirstChar = regexp.MustCompile(`^[A-Za-z_:]`)

// FormatPrometheus renders snapshot as a Prometheus text-exposition v0.0.4
// document (C6). labels are the global label set applied to every sample
// line alongside each metric's own labels. The result is `\n`-joined and
// ends with a trailing newline.
func FormatPrometheus(snapshot Snapshot, labels map[string]string) string {
	var b strings.Builder

	writeCounter(&b, "http_requests_total", "Total number of HTTP requests processed", labels, float64(snapshot.HTTP.TotalRequests))
	writeGauge(&b, "http_requests_active", "Number of HTTP requests currently in flight", labels, float64(snapshot.HTTP.ActiveRequests))
	writeGaugePrecision(&b, "http_requests_per_second", "Observed HTTP request rate", labels, snapshot.HTTP.RequestsPerSecond, 3)

	writeCounterFamily(&b, "http_requests_by_status_total", "Total number of HTTP requests by status code", labels,
		sortedCounterSamples(snapshot.HTTP.StatusCodes))

	writeHistogram(&b, "http_request_duration_seconds", "HTTP request duration in seconds", labels,
		standardLatencyBuckets, snapshot.HTTP.Latency.Sum/1000, snapshot.HTTP.Latency.Max/1000, int64(snapshot.HTTP.Latency.Count))

	writeCounterFamily(&b, "http_requests_by_method_total", "Total number of HTTP requests by method", labels,
		sortedAggregateSamples(snapshot.HTTP.ByMethod))
	writeCounterFamily(&b, "http_requests_by_route_total", "Total number of HTTP requests by route", labels,
		sortedAggregateSamples(snapshot.HTTP.ByRoute))

	writeGauge(&b, "process_memory_heap_used_bytes", "Process heap memory in use", labels, float64(snapshot.Process.MemoryUsage.HeapUsed))
	writeGauge(&b, "process_memory_heap_total_bytes", "Process heap memory reserved", labels, float64(snapshot.Process.MemoryUsage.HeapTotal))
	writeGauge(&b, "process_memory_external_bytes", "Process memory outside the Go heap", labels, float64(snapshot.Process.MemoryUsage.External))
	writeGauge(&b, "process_memory_rss_bytes", "Process resident set size", labels, float64(snapshot.Process.MemoryUsage.RSS))

	writeCounter(&b, "process_cpu_user_seconds_total", "Cumulative user CPU time", labels, micros(snapshot.Process.CPUUsage.User))
	writeCounter(&b, "process_cpu_system_seconds_total", "Cumulative system CPU time", labels, micros(snapshot.Process.CPUUsage.System))
	writeGaugePrecision(&b, "process_uptime_seconds", "Process uptime", labels, snapshot.Process.UptimeSeconds, 3)
	writeGaugePrecision(&b, "process_event_loop_lag_seconds", "Last measured scheduler lag", labels, snapshot.Process.EventLoopLagMs/1000, 6)

	writeCustomMetrics(&b, snapshot, labels)

	return b.String()
}

func writeCustomMetrics(b *strings.Builder, snapshot Snapshot, labels map[string]string) {
	for _, name := range sortedKeys(snapshot.Custom.Counters) {
		writeCounter(b, name, helpFromSnapshot(snapshot, name), labels, snapshot.Custom.Counters[name])
	}
	for _, name := range sortedKeys(snapshot.Custom.Gauges) {
		writeGauge(b, name, helpFromSnapshot(snapshot, name), labels, snapshot.Custom.Gauges[name])
	}
	for _, name := range sortedHistogramKeys(snapshot.Custom.Histograms) {
		stats := snapshot.Custom.Histograms[name]
		writeHistogram(b, name, helpFromSnapshot(snapshot, name), labels, customBuckets(stats.Max), stats.Sum, stats.Max, int64(stats.Count))
	}
	for _, name := range sortedHistogramKeys(snapshot.Custom.Timers) {
		stats := snapshot.Custom.Timers[name]
		seconds := name + "_seconds"
		maxS, sumS := stats.Max/1000, stats.Sum/1000
		writeHistogram(b, seconds, helpFromSnapshot(snapshot, name), labels, customBuckets(maxS), sumS, maxS, int64(stats.Count))
	}
}

func helpFromSnapshot(snapshot Snapshot, name string) string {
	if snapshot.helpText != nil {
		if h, ok := snapshot.helpText[name]; ok && h != "" {
			return h
		}
	}
	return name + " (custom metric)"
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedHistogramKeys(m map[string]WindowStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type labeledSample struct {
	labelValue string
	value      float64
}

func sortedCounterSamples(m map[string]int64) []labeledSample {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	samples := make([]labeledSample, 0, len(keys))
	for _, k := range keys {
		samples = append(samples, labeledSample{labelValue: k, value: float64(m[k])})
	}
	return samples
}

func sortedAggregateSamples(m map[string]routeAggregateJSON) []labeledSample {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	samples := make([]labeledSample, 0, len(keys))
	for _, k := range keys {
		samples = append(samples, labeledSample{labelValue: k, value: float64(m[k].Count)})
	}
	return samples
}

func micros(v int64) float64 {
	return float64(v) / 1_000_000
}

// writeCounter/writeGauge emit a single-sample metric family.
func writeCounter(b *strings.Builder, name, help string, labels map[string]string, value float64) {
	writeFamily(b, name, help, "counter", []sampleLine{{labels: labels, value: formatDefault(value)}})
}

func writeGauge(b *strings.Builder, name, help string, labels map[string]string, value float64) {
	writeFamily(b, name, help, "gauge", []sampleLine{{labels: labels, value: formatDefault(value)}})
}

func writeGaugePrecision(b *strings.Builder, name, help string, labels map[string]string, value float64, decimals int) {
	writeFamily(b, name, help, "gauge", []sampleLine{{labels: labels, value: strconv.FormatFloat(value, 'f', decimals, 64)}})
}

func writeCounterFamily(b *strings.Builder, name, help string, labels map[string]string, samples []labeledSample) {
	lines := make([]sampleLine, 0, len(samples))
	labelKey := "status"
	switch {
	case strings.Contains(name, "by_method"):
		labelKey = "method"
	case strings.Contains(name, "by_route"):
		labelKey = "route"
	}
	for _, s := range samples {
		merged := mergeLabels(labels, map[string]string{labelKey: s.labelValue})
		lines = append(lines, sampleLine{labels: merged, value: formatDefault(s.value)})
	}
	if len(lines) == 0 {
		return
	}
	writeFamily(b, name, help, "counter", lines)
}

// writeHistogram emits the standard HELP/TYPE block, one `_bucket` sample per
// boundary (+Inf last), then `_sum` and `_count`.
func writeHistogram(b *strings.Builder, name, help string, labels map[string]string, buckets []float64, sumSeconds, max float64, count int64) {
	sanitized := sanitizeMetricName(name)
	b.WriteString(fmt.Sprintf("# HELP %s %s\n", sanitized, help))
	b.WriteString(fmt.Sprintf("# TYPE %s histogram\n", sanitized))

	for _, boundary := range buckets {
		cum := estimateBucketCount(boundary, max, count)
		merged := mergeLabels(labels, map[string]string{"le": formatBucketBoundary(boundary)})
		b.WriteString(fmt.Sprintf("%s_bucket%s %d\n", sanitized, renderLabels(merged), cum))
	}
	merged := mergeLabels(labels, map[string]string{"le": "+Inf"})
	b.WriteString(fmt.Sprintf("%s_bucket%s %d\n", sanitized, renderLabels(merged), count))

	b.WriteString(fmt.Sprintf("%s_sum%s %s\n", sanitized, renderLabels(labels), strconv.FormatFloat(sumSeconds, 'f', 6, 64)))
	b.WriteString(fmt.Sprintf("%s_count%s %d\n", sanitized, renderLabels(labels), count))
	b.WriteString("\n")
}

type sampleLine struct {
	labels map[string]string
	value  string
}

func writeFamily(b *strings.Builder, name, help, kind string, samples []sampleLine) {
	sanitized := sanitizeMetricName(name)
	b.WriteString(fmt.Sprintf("# HELP %s %s\n", sanitized, help))
	b.WriteString(fmt.Sprintf("# TYPE %s %s\n", sanitized, kind))
	for _, s := range samples {
		b.WriteString(fmt.Sprintf("%s%s %s\n", sanitized, renderLabels(s.labels), s.value))
	}
	b.WriteString("\n")
}

func formatDefault(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// estimateBucketCount implements the cumulative-count estimate from
// spec.md §4.6: exact (== count) once max <= boundary, otherwise a linear
// estimate proportional to boundary/max.
func estimateBucketCount(boundary, max float64, count int64) int64 {
	if max <= boundary {
		return count
	}
	return int64(math.Floor((boundary / max) * float64(count)))
}

// customBuckets implements the non-time histogram bucket algorithm from
// spec.md §4.6: {0,1,10,100} when max==0, otherwise a geometric ×2.5 series
// seeded at 0.1·magnitude and truncated at max·1.2.
func customBuckets(max float64) []float64 {
	if max <= 0 {
		return []float64{0, 1, 10, 100}
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(max)))
	limit := max * 1.2

	var buckets []float64
	for i := 0.1; ; i *= 2.5 {
		b := magnitude * i
		if b > limit {
			break
		}
		buckets = append(buckets, b)
		if len(buckets) > 128 {
			break // guard against pathological magnitude/limit combinations
		}
	}
	return buckets
}

func formatBucketBoundary(b float64) string {
	return strconv.FormatFloat(b, 'g', -1, 64)
}

// mergeLabels combines global and metric-specific label sets; the
// metric-specific value wins on key collision.
func mergeLabels(global, specific map[string]string) map[string]string {
	merged := make(map[string]string, len(global)+len(specific))
	for k, v := range global {
		if v == "" {
			continue
		}
		merged[k] = v
	}
	for k, v := range specific {
		merged[k] = v
	}
	return merged
}

// renderLabels formats a label set as `{k="v",...}` sorted by key, or "" if
// empty.
func renderLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, k, escapeLabelValue(labels[k])))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// escapeLabelValue escapes backslash, double-quote and newline, in that
// order (spec.md §4.6).
func escapeLabelValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	return v
}

// sanitizeMetricName replaces any character outside [A-Za-z0-9_:] with `_`,
// prepends `_` if the first character isn't [A-Za-z_:], and maps an empty
// name to "_".
func sanitizeMetricName(name string) string {
	if name == "" {
		return "_"
	}
	sanitized := invalidNameChar.ReplaceAllString(name, "_")
	if !invalidFirstChar.MatchString(sanitized) {
		sanitized = "_" + sanitized
	}
	return sanitized
}
