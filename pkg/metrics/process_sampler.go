package metrics

import (
	"runtime"
	"sync"
	"time"
)

// MemoryUsage mirrors a Node-style process.memoryUsage() snapshot, populated
// from runtime.MemStats / runtime.ReadMemStats.
type MemoryUsage struct {
	HeapUsed  uint64 `json:"heapUsed"`
	HeapTotal uint64 `json:"heapTotal"`
	External  uint64 `json:"external"`
	RSS       uint64 `json:"rss"`
}

// CPUUsage holds cumulative user/system CPU time in microseconds.
type CPUUsage struct {
	User   int64 `json:"user"`
	System int64 `json:"system"`
}

// ProcessSnapshot is the point-in-time process-health view (C3 / spec.md §3).
type ProcessSnapshot struct {
	MemoryUsage   MemoryUsage `json:"memoryUsage"`
	CPUUsage      CPUUsage    `json:"cpuUsage"`
	UptimeSeconds float64     `json:"uptime"`
	EventLoopLagMs float64    `json:"eventLoopLag"`
}

// cpuBaseline is the {user, system, wallClock} triple used to derive CPU%.
type cpuBaseline struct {
	user      int64
	system    int64
	wallClock time.Time
}

// ProcessSampler samples Go-runtime memory/CPU/scheduler-lag health data. The
// CPU baseline is guarded by its own lock, independent of any Registry lock,
// per spec.md §5.
type ProcessSampler struct {
	mu           sync.Mutex
	baseline     cpuBaseline
	firstSample  bool
	trackerStart time.Time
	now          func() time.Time
	cpuTimes     func() (userMicros, systemMicros int64)
	schedule     func(fn func())
}

// NewProcessSampler creates a sampler with its uptime clock and CPU baseline
// seeded at construction time.
func NewProcessSampler() *ProcessSampler {
	return newProcessSamplerWithHooks(time.Now, currentProcessCPUMicros, scheduleASAP)
}

func newProcessSamplerWithHooks(now func() time.Time, cpuTimes func() (int64, int64), schedule func(func())) *ProcessSampler {
	s := &ProcessSampler{
		trackerStart: now(),
		now:          now,
		cpuTimes:     cpuTimes,
		schedule:     schedule,
		firstSample:  true,
	}
	u, sys := cpuTimes()
	s.baseline = cpuBaseline{user: u, system: sys, wallClock: now()}
	return s
}

// Collect returns memory, cumulative CPU counters, and tracker-relative
// uptime. EventLoopLagMs is always 0 here; the Registry's periodic job fills
// it from GetEventLoopLag.
func (s *ProcessSampler) Collect() ProcessSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	u, sys := s.cpuTimes()

	return ProcessSnapshot{
		MemoryUsage: MemoryUsage{
			HeapUsed:  ms.HeapAlloc,
			HeapTotal: ms.HeapSys,
			External:  ms.MSpanSys + ms.MCacheSys,
			RSS:       ms.Sys,
		},
		CPUUsage: CPUUsage{
			User:   u,
			System: sys,
		},
		UptimeSeconds: s.now().Sub(s.trackerStart).Seconds(),
	}
}

// GetCPUPercentage computes max(0, 100*ΔCPU/ΔWall) since the last baseline
// and re-seeds the baseline to now. The first call always returns 0 (it only
// establishes the baseline). Returns 0 if ΔWall == 0.
func (s *ProcessSampler) GetCPUPercentage() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, sys := s.cpuTimes()
	now := s.now()

	if s.firstSample {
		s.firstSample = false
		s.baseline = cpuBaseline{user: u, system: sys, wallClock: now}
		return 0
	}

	deltaWallMicros := now.Sub(s.baseline.wallClock).Microseconds()
	deltaCPUMicros := (u - s.baseline.user) + (sys - s.baseline.system)

	s.baseline = cpuBaseline{user: u, system: sys, wallClock: now}

	if deltaWallMicros == 0 {
		return 0
	}

	pct := 100 * float64(deltaCPUMicros) / float64(deltaWallMicros)
	if pct < 0 {
		return 0
	}
	return pct
}

// ResetCPUBaseline re-seeds {user, system, wallClock} to now.
func (s *ProcessSampler) ResetCPUBaseline() {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, sys := s.cpuTimes()
	s.baseline = cpuBaseline{user: u, system: sys, wallClock: s.now()}
	s.firstSample = true
}

// GetEventLoopLag schedules an as-soon-as-possible task on the Go scheduler
// and measures the wall-clock delay until it runs, in milliseconds. It is
// non-blocking to the caller: the result is delivered on the returned
// channel, which yields exactly one value.
func (s *ProcessSampler) GetEventLoopLag() <-chan float64 {
	result := make(chan float64, 1)
	start := s.now()
	s.schedule(func() {
		lag := s.now().Sub(start).Seconds() * 1000
		result <- lag
	})
	return result
}

// scheduleASAP starts a fresh goroutine that yields once via runtime.Gosched
// and then runs fn, standing in for "schedule an immediate
// continuation on the host's scheduler" — never an OS sleep, per spec.md §9.
func scheduleASAP(fn func()) {
	go func() {
		runtime.Gosched()
		fn()
	}()
}
