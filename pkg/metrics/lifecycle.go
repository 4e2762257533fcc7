package metrics

import (
	"net/http"
	"sync"
)

// shared holds the single process-wide Registry, guarded by sharedMu
// (spec.md §4.9, §3 "Registry"). There is exactly one per process; it is
// created by Initialize and destroyed by Terminate.
var (
	sharedMu sync.Mutex
	shared   *Registry
)

// Initialize creates the process-wide Registry from cfg, publishes it
// through Get, and — if cfg.Enabled — starts the periodic sampler. Fails
// with ErrAlreadyInitialised if called twice without an intervening
// Terminate. If cfg.Enabled is false, the accessor is still published (so
// Get succeeds) but no background sampling starts and Interceptor built
// from this Registry should be treated as a pass-through by callers that
// check Config().Enabled.
func Initialize(cfg Config) (*Registry, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared != nil {
		return nil, ErrAlreadyInitialised
	}

	r := NewRegistry(cfg)
	shared = r

	if cfg.Enabled {
		r.StartCollection()
	}
	return r, nil
}

// Get returns the process-wide Registry, or ErrNotInitialised if Initialize
// has not run (or Terminate already did).
func Get() (*Registry, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		return nil, ErrNotInitialised
	}
	return shared, nil
}

// Terminate stops the periodic sampler and clears the module-level
// accessor; subsequent Get calls fail with ErrNotInitialised. Safe to call
// when not initialised (no-op).
func Terminate() {
	sharedMu.Lock()
	r := shared
	shared = nil
	sharedMu.Unlock()

	if r != nil {
		r.StopCollection()
	}
}

// Register installs the shared Registry's Interceptor into mux using
// register, typically `server.Use` or an equivalent middleware-chain
// append. If the Registry is disabled, Register is a no-op. opts configures
// excluded paths and route labeling.
func Register(register func(func(http.Handler) http.Handler), opts InterceptorOptions) error {
	r, err := Get()
	if err != nil {
		return err
	}
	if !r.Config().Enabled {
		return nil
	}
	register(r.Interceptor(opts))
	return nil
}

// OnServerStart starts the periodic sampler if it isn't already running —
// a host that calls Initialize well before accepting traffic can defer the
// actual sampling loop to this hook.
func OnServerStart() error {
	r, err := Get()
	if err != nil {
		return err
	}
	if r.Config().Enabled {
		r.StartCollection()
	}
	return nil
}

// OnServerStop stops the periodic sampler, runs the reporter one final
// time if configured, and emits a final console status line if enabled.
func OnServerStop() error {
	r, err := Get()
	if err != nil {
		return err
	}
	r.StopCollection()

	snapshot := r.GetSnapshot()
	if r.cfg.Reporter != nil {
		r.runReporter(snapshot)
	}
	if r.cfg.LogToConsole {
		r.logger.Info("metrics final tick",
			"requests_total", snapshot.HTTP.TotalRequests,
			"cardinality", snapshot.Meta.Cardinality,
		)
	}
	return nil
}
