package metrics

import (
	"strings"
	"time"
)

// Config is the recognised option set from spec.md §3. Build one with
// DefaultConfig() and Option funcs (NewConfig), or construct it directly —
// Initialize does not merge a hand-built Config with the defaults. On such a
// Config, a zero Enabled means "off" and a zero MaxCardinality admits no
// metric names at all; a zero CollectionInterval makes the sampler tick at
// the default 60s, and a zero HistogramLimit gives windows of capacity 1.
type Config struct {
	// Enabled is the master kill-switch.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ExcludePaths lists patterns skipped by the interceptor: an exact path,
	// or "prefix/*" which matches "prefix" and anything under "prefix/".
	ExcludePaths []string `mapstructure:"exclude_paths" yaml:"excludePaths"`

	// HistogramLimit is the capacity K used for every Window.
	HistogramLimit int `mapstructure:"histogram_limit" yaml:"histogramLimit"`

	// CollectionInterval is the period of the process sampler.
	CollectionInterval time.Duration `mapstructure:"collection_interval" yaml:"collectionInterval"`

	// MaxCardinality bounds the total distinct custom metric names.
	MaxCardinality int `mapstructure:"max_cardinality" yaml:"maxCardinality"`

	// OnCardinalityLimit selects admission behavior once MaxCardinality is
	// reached: drop, warn, or error.
	OnCardinalityLimit CardinalityLimitPolicy `mapstructure:"on_cardinality_limit" yaml:"onCardinalityLimit"`

	// Labels are global labels applied to every Prometheus exposition line.
	Labels map[string]string `mapstructure:"labels" yaml:"labels"`

	// Reporter, if set, is invoked with every periodic snapshot. Errors from
	// Reporter never crash the sampler (spec.md §7 "ReporterFailure").
	Reporter func(Snapshot) error `mapstructure:"-" yaml:"-"`

	// LogToConsole emits a compact periodic status line via Logger when true.
	LogToConsole bool `mapstructure:"log_to_console" yaml:"logToConsole"`

	// Logger receives diagnostics: cardinality warnings, ReporterFailure,
	// InstrumentationFailure, and the LogToConsole status line. Optional —
	// when nil, diagnostics are silently dropped.
	Logger Logger `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns the documented defaults for every option (spec.md §3).
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		HistogramLimit:     1000,
		CollectionInterval: 60 * time.Second,
		MaxCardinality:     10000,
		OnCardinalityLimit: PolicyDrop,
	}
}

// Option mutates a Config built from DefaultConfig(); see NewConfig.
type Option func(*Config)

// NewConfig applies opts over DefaultConfig() and returns the result.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithExcludePaths sets ExcludePaths.
func WithExcludePaths(patterns ...string) Option {
	return func(c *Config) { c.ExcludePaths = patterns }
}

// WithHistogramLimit sets HistogramLimit.
func WithHistogramLimit(n int) Option {
	return func(c *Config) { c.HistogramLimit = n }
}

// WithCollectionInterval sets CollectionInterval.
func WithCollectionInterval(d time.Duration) Option {
	return func(c *Config) { c.CollectionInterval = d }
}

// WithMaxCardinality sets MaxCardinality.
func WithMaxCardinality(n int) Option {
	return func(c *Config) { c.MaxCardinality = n }
}

// WithCardinalityLimitPolicy sets OnCardinalityLimit.
func WithCardinalityLimitPolicy(p CardinalityLimitPolicy) Option {
	return func(c *Config) { c.OnCardinalityLimit = p }
}

// WithLabels sets the global Prometheus labels.
func WithLabels(labels map[string]string) Option {
	return func(c *Config) { c.Labels = labels }
}

// WithReporter sets the periodic-snapshot Reporter callback.
func WithReporter(fn func(Snapshot) error) Option {
	return func(c *Config) { c.Reporter = fn }
}

// WithLogToConsole toggles the periodic status line.
func WithLogToConsole(enabled bool) Option {
	return func(c *Config) { c.LogToConsole = enabled }
}

// WithLogger sets the diagnostic Logger.
func WithLogger(l Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// matchesExcludePath reports whether path matches any exclude pattern: an
// exact match, or ("prefix/*" matches "prefix" and "prefix/...").
func matchesExcludePath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == path {
			return true
		}
		prefix, isWildcard := strings.CutSuffix(pattern, "/*")
		if !isWildcard {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
