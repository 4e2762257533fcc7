package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1000, cfg.HistogramLimit)
	assert.Equal(t, 60*time.Second, cfg.CollectionInterval)
	assert.Equal(t, 10000, cfg.MaxCardinality)
	assert.Equal(t, PolicyDrop, cfg.OnCardinalityLimit)
}

func TestNewConfigAppliesOptions(t *testing.T) {
	cfg := NewConfig(
		WithHistogramLimit(50),
		WithMaxCardinality(5),
		WithCardinalityLimitPolicy(PolicyError),
		WithExcludePaths("/health", "/api/*"),
		WithLabels(map[string]string{"service": "api"}),
		WithLogToConsole(true),
	)

	assert.Equal(t, 50, cfg.HistogramLimit)
	assert.Equal(t, 5, cfg.MaxCardinality)
	assert.Equal(t, PolicyError, cfg.OnCardinalityLimit)
	assert.Equal(t, []string{"/health", "/api/*"}, cfg.ExcludePaths)
	assert.Equal(t, "api", cfg.Labels["service"])
	assert.True(t, cfg.LogToConsole)
	assert.True(t, cfg.Enabled) // default preserved
}

func TestMatchesExcludePathExact(t *testing.T) {
	assert.True(t, matchesExcludePath("/health", []string{"/health"}))
	assert.False(t, matchesExcludePath("/healthz", []string{"/health"}))
}

func TestMatchesExcludePathWildcard(t *testing.T) {
	patterns := []string{"/api/*"}
	assert.True(t, matchesExcludePath("/api", patterns))
	assert.True(t, matchesExcludePath("/api/v1/things", patterns))
	assert.False(t, matchesExcludePath("/apiextra", patterns))
}
