package metrics

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromViperDefaults(t *testing.T) {
	v := viper.New()
	cfg, err := LoadConfigFromViper(v)
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1000, cfg.HistogramLimit)
	assert.Equal(t, 60*time.Second, cfg.CollectionInterval)
	assert.Equal(t, 10000, cfg.MaxCardinality)
	assert.Equal(t, PolicyDrop, cfg.OnCardinalityLimit)
}

func TestLoadConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	v.Set("max_cardinality", 500)
	v.Set("on_cardinality_limit", "error")
	v.Set("histogram_limit", 250)

	cfg, err := LoadConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.MaxCardinality)
	assert.Equal(t, PolicyError, cfg.OnCardinalityLimit)
	assert.Equal(t, 250, cfg.HistogramLimit)
}

func TestLoadConfigFromViperRejectsZeroHistogramLimitAndInterval(t *testing.T) {
	v := viper.New()
	v.Set("histogram_limit", 0)
	v.Set("collection_interval", 0)

	cfg, err := LoadConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.HistogramLimit)
	assert.Equal(t, 60*time.Second, cfg.CollectionInterval)
}

func TestLoadConfigFromYAMLDefaults(t *testing.T) {
	cfg, err := LoadConfigFromYAML([]byte(`{}`))
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1000, cfg.HistogramLimit)
	assert.Equal(t, 60*time.Second, cfg.CollectionInterval)
	assert.Equal(t, 10000, cfg.MaxCardinality)
	assert.Equal(t, PolicyDrop, cfg.OnCardinalityLimit)
}

func TestLoadConfigFromYAMLOverrides(t *testing.T) {
	doc := []byte(`
enabled: true
excludePaths:
  - /healthz
  - /static/*
histogramLimit: 250
collectionInterval: 30s
maxCardinality: 500
onCardinalityLimit: error
labels:
  service: checkout
  region: us-east-1
`)

	cfg, err := LoadConfigFromYAML(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"/healthz", "/static/*"}, cfg.ExcludePaths)
	assert.Equal(t, 250, cfg.HistogramLimit)
	assert.Equal(t, 30*time.Second, cfg.CollectionInterval)
	assert.Equal(t, 500, cfg.MaxCardinality)
	assert.Equal(t, PolicyError, cfg.OnCardinalityLimit)
	assert.Equal(t, map[string]string{"service": "checkout", "region": "us-east-1"}, cfg.Labels)
}

func TestLoadConfigFromYAMLRejectsZeroHistogramLimitAndInterval(t *testing.T) {
	cfg, err := LoadConfigFromYAML([]byte("histogramLimit: 0\ncollectionInterval: 0s\n"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.HistogramLimit)
	assert.Equal(t, 60*time.Second, cfg.CollectionInterval)
}

func TestLoadConfigFromYAMLRejectsMalformedDocument(t *testing.T) {
	_, err := LoadConfigFromYAML([]byte("enabled: [this is not a bool"))
	require.Error(t, err)
}
