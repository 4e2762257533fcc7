// Package metrics is a request-lifecycle observability core: it records
// counters, gauges, histograms and timers with bounded memory, observes every
// request/response through a middleware interceptor, samples periodic
// process-health data, and exposes the result as JSON, Prometheus text
// exposition, and a self-contained HTML dashboard.
package metrics

import (
	"sync"
	"time"
)

// thresholdPercents are the cardinality-usage thresholds that each emit a
// one-shot warning (spec.md §4.4). Cleared by Reset().
var thresholdPercents = []int{80, 90}

// Registry is the process-wide metrics store (C4). There is exactly one
// Registry per process; obtain it via Get() after Initialize(), never by
// constructing one directly outside of tests. Registry is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string]*Window
	timers     map[string]*Window
	help       map[string]string

	warnedThresholds map[int]bool
	dropWarned       bool

	httpTracker    *HTTPTracker
	processSampler *ProcessSampler

	lagMu   sync.RWMutex
	lastLag float64

	cfg    Config
	logger Logger

	collectMu  sync.Mutex
	collecting bool
	stopCh     chan struct{}
	doneCh     chan struct{}

	now func() time.Time
}

// NewRegistry builds a standalone Registry from cfg. Most callers should use
// Initialize/Get instead (§4.9 Lifecycle Shell); NewRegistry is exported for
// tests and for hosts that deliberately want more than one instance (e.g. to
// isolate metrics per test case).
func NewRegistry(cfg Config) *Registry {
	return newRegistryWithClock(cfg, time.Now)
}

func newRegistryWithClock(cfg Config, now func() time.Time) *Registry {
	return &Registry{
		counters:         make(map[string]float64),
		gauges:           make(map[string]float64),
		histograms:       make(map[string]*Window),
		timers:           make(map[string]*Window),
		help:             make(map[string]string),
		warnedThresholds: make(map[int]bool),
		httpTracker:      newHTTPTrackerWithClock(cfg.HistogramLimit, now),
		processSampler:   NewProcessSampler(),
		cfg:              cfg,
		logger:           loggerOrNoop(cfg.Logger),
		now:              now,
	}
}

// Describe registers a one-line help string for a custom metric name, used
// by the Prometheus `# HELP` line; the dashboard does not show it. Safe to call before or
// after the name's first Increment/Gauge/Histogram/StartTimer call; has no
// effect on cardinality admission.
func (r *Registry) Describe(name, help string) {
	r.mu.Lock()
	r.help[name] = help
	r.mu.Unlock()
}

func (r *Registry) helpFor(name string) string {
	if h, ok := r.help[name]; ok && h != "" {
		return h
	}
	return name + " (custom metric)"
}

// Increment adds delta (default 1) to counters[name], subject to cardinality
// admission.
func (r *Registry) Increment(name string, delta ...float64) error {
	d := 1.0
	if len(delta) > 0 {
		d = delta[0]
	}
	_, err := r.mutateIfAdmitted(name, func() {
		r.counters[name] += d
	})
	return err
}

// Gauge sets gauges[name] = v, subject to cardinality admission.
func (r *Registry) Gauge(name string, v float64) error {
	_, err := r.mutateIfAdmitted(name, func() {
		r.gauges[name] = v
	})
	return err
}

// Histogram pushes v into the lazily-allocated Window histograms[name],
// subject to cardinality admission.
func (r *Registry) Histogram(name string, v float64) error {
	_, err := r.mutateIfAdmitted(name, func() {
		w := r.histograms[name]
		if w == nil {
			w = NewWindow(r.cfg.HistogramLimit)
			r.histograms[name] = w
		}
		w.Push(v)
	})
	return err
}

// StartTimer captures the current time and returns a stop closure that,
// every time it is invoked, pushes (now - start) in milliseconds into
// timers[name]. If admission fails under PolicyError, err is non-nil and the
// returned stop is a no-op; under PolicyDrop/PolicyWarn, stop is a silent
// no-op and err is nil. Calling stop more than once records another sample
// each time — this is intentional (spec.md §9), not a bug.
func (r *Registry) StartTimer(name string) (func(), error) {
	start := r.now()

	admitted, err := r.mutateIfAdmitted(name, func() {
		if r.timers[name] == nil {
			r.timers[name] = NewWindow(r.cfg.HistogramLimit)
		}
	})
	if err != nil {
		return func() {}, err
	}
	if !admitted {
		return func() {}, nil
	}

	return func() {
		elapsedMs := r.now().Sub(start).Seconds() * 1000
		r.mu.Lock()
		if w := r.timers[name]; w != nil {
			w.Push(elapsedMs)
		}
		r.mu.Unlock()
	}, nil
}

// mutateIfAdmitted performs the full cardinality-governor admission check
// and, if admitted, the mutation, atomically under a single lock acquisition
// so two concurrent first-writers of the same new name can't both slip past
// the limit. Returns (admitted, err); err is non-nil only under PolicyError.
func (r *Registry) mutateIfAdmitted(name string, mutate func()) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.existsLocked(name) {
		n := r.cardinalityLocked()
		if n >= r.cfg.MaxCardinality {
			switch r.cfg.OnCardinalityLimit {
			case PolicyError:
				return false, &CardinalityExceededError{Name: name, Max: r.cfg.MaxCardinality}
			case PolicyWarn:
				r.logger.Warn("metrics: cardinality limit reached, refusing metric", "name", name, "max", r.cfg.MaxCardinality)
				return false, nil
			default: // PolicyDrop
				if !r.dropWarned {
					r.dropWarned = true
					r.logger.Warn("metrics: cardinality limit reached", "max", r.cfg.MaxCardinality)
				}
				return false, nil
			}
		}
		r.checkThresholdsLocked(n + 1)
	}

	mutate()
	return true, nil
}

func (r *Registry) existsLocked(name string) bool {
	if _, ok := r.counters[name]; ok {
		return true
	}
	if _, ok := r.gauges[name]; ok {
		return true
	}
	if _, ok := r.histograms[name]; ok {
		return true
	}
	if _, ok := r.timers[name]; ok {
		return true
	}
	return false
}

func (r *Registry) cardinalityLocked() int {
	return len(r.counters) + len(r.gauges) + len(r.histograms) + len(r.timers)
}

// checkThresholdsLocked emits a one-shot warning the first time admitting a
// new name moves total cardinality to >= 80% or >= 90% of max. Called while
// holding r.mu for write.
func (r *Registry) checkThresholdsLocked(newCardinality int) {
	if r.cfg.MaxCardinality <= 0 {
		return
	}
	for _, pct := range thresholdPercents {
		if r.warnedThresholds[pct] {
			continue
		}
		if newCardinality*100 >= pct*r.cfg.MaxCardinality {
			r.warnedThresholds[pct] = true
			r.logger.Warn("metrics: cardinality usage threshold reached",
				"threshold_percent", pct, "cardinality", newCardinality, "max", r.cfg.MaxCardinality)
		}
	}
}

// StartHTTPRequest delegates to the HTTP tracker (C2).
func (r *Registry) StartHTTPRequest() {
	r.httpTracker.StartRequest()
}

// RecordHTTPRequest delegates to the HTTP tracker (C2).
func (r *Registry) RecordHTTPRequest(method, path string, status int, durationMs float64) {
	r.httpTracker.RecordRequest(method, path, status, durationMs)
}

// GetSnapshot materialises the full Snapshot: HTTP metrics, a process
// snapshot (with the last-measured event-loop lag folded in), custom metrics,
// and cardinality metadata.
func (r *Registry) GetSnapshot() Snapshot {
	r.mu.RLock()
	counters := make(map[string]float64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}
	gauges := make(map[string]float64, len(r.gauges))
	for k, v := range r.gauges {
		gauges[k] = v
	}
	histograms := make(map[string]WindowStats, len(r.histograms))
	for k, w := range r.histograms {
		histograms[k] = w.Stats()
	}
	timers := make(map[string]WindowStats, len(r.timers))
	for k, w := range r.timers {
		timers[k] = w.Stats()
	}
	help := make(map[string]string, len(r.help))
	for k, v := range r.help {
		help[k] = v
	}
	cardinality := r.cardinalityLocked()
	maxCardinality := r.cfg.MaxCardinality
	r.mu.RUnlock()

	httpMetrics := r.httpTracker.GetMetrics()

	process := r.processSampler.Collect()
	r.lagMu.RLock()
	process.EventLoopLagMs = r.lastLag
	r.lagMu.RUnlock()

	usagePercent := 0
	if maxCardinality > 0 {
		usagePercent = (100 * cardinality) / maxCardinality
	}

	return Snapshot{
		Timestamp: r.now(),
		HTTP:      httpMetrics,
		Process:   process,
		Custom: CustomMetrics{
			Counters:   counters,
			Gauges:     gauges,
			Histograms: histograms,
			Timers:     timers,
		},
		Meta: SnapshotMeta{
			Cardinality:             cardinality,
			MaxCardinality:          maxCardinality,
			CardinalityUsagePercent: usagePercent,
		},
		helpText: help,
	}
}

// StartCollection starts the periodic sampler if it is not already running;
// idempotent. The background goroutine never keeps the process alive on its
// own beyond the normal Go runtime lifetime — it exits as soon as
// StopCollection closes its stop channel.
func (r *Registry) StartCollection() {
	r.collectMu.Lock()
	defer r.collectMu.Unlock()

	if r.collecting {
		return
	}
	r.collecting = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.collectLoop(r.stopCh, r.doneCh)
}

// StopCollection cancels the periodic sampler; idempotent, safe when not
// running.
func (r *Registry) StopCollection() {
	r.collectMu.Lock()
	defer r.collectMu.Unlock()

	if !r.collecting {
		return
	}
	close(r.stopCh)
	<-r.doneCh
	r.collecting = false
}

// IsCollecting reports whether the periodic sampler is currently running.
func (r *Registry) IsCollecting() bool {
	r.collectMu.Lock()
	defer r.collectMu.Unlock()
	return r.collecting
}

func (r *Registry) collectLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := r.cfg.CollectionInterval
	if interval <= 0 {
		interval = DefaultConfig().CollectionInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick runs one periodic-sampler pass: measure event-loop lag, invoke the
// optional reporter (errors logged, never re-raised), and emit the optional
// console status line.
func (r *Registry) tick() {
	lag := <-r.processSampler.GetEventLoopLag()
	r.lagMu.Lock()
	r.lastLag = lag
	r.lagMu.Unlock()

	snapshot := r.GetSnapshot()
	cpuPercent := r.processSampler.GetCPUPercentage()

	if r.cfg.Reporter != nil {
		r.runReporter(snapshot)
	}

	if r.cfg.LogToConsole {
		r.logger.Info("metrics tick",
			"requests_total", snapshot.HTTP.TotalRequests,
			"requests_active", snapshot.HTTP.ActiveRequests,
			"cpu_percent", cpuPercent,
			"event_loop_lag_ms", lag,
			"cardinality", snapshot.Meta.Cardinality,
		)
	}
}

func (r *Registry) runReporter(snapshot Snapshot) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("metrics: reporter panicked", "panic", p)
		}
	}()
	if err := r.cfg.Reporter(snapshot); err != nil {
		r.logger.Error("metrics: reporter failed", "error", err)
	}
}

// Reset clears all custom metrics, cardinality-warning state, the HTTP
// tracker, the process sampler's CPU baseline, and the last-measured
// event-loop lag.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.counters = make(map[string]float64)
	r.gauges = make(map[string]float64)
	r.histograms = make(map[string]*Window)
	r.timers = make(map[string]*Window)
	r.help = make(map[string]string)
	r.warnedThresholds = make(map[int]bool)
	r.dropWarned = false
	r.mu.Unlock()

	r.httpTracker.Reset()
	r.processSampler.ResetCPUBaseline()

	r.lagMu.Lock()
	r.lastLag = 0
	r.lagMu.Unlock()
}

// Config returns a copy of the Registry's configuration.
func (r *Registry) Config() Config {
	return r.cfg
}
