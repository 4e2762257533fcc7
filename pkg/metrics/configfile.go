package metrics

import (
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoadConfigFromViper binds the recognised Config keys (mapstructure tags on
// Config) from v onto DefaultConfig(), for hosts that already centralize
// configuration with Viper. Unset keys keep their DefaultConfig value;
// Reporter and Logger are never bound from Viper (they're Go values, not
// config-file data) and must be set by the caller after loading.
func LoadConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	v.SetDefault("enabled", cfg.Enabled)
	v.SetDefault("histogram_limit", cfg.HistogramLimit)
	v.SetDefault("collection_interval", cfg.CollectionInterval)
	v.SetDefault("max_cardinality", cfg.MaxCardinality)
	v.SetDefault("on_cardinality_limit", string(cfg.OnCardinalityLimit))

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.CollectionInterval <= 0 {
		cfg.CollectionInterval = 60 * time.Second
	}
	if cfg.HistogramLimit <= 0 {
		cfg.HistogramLimit = 1000
	}
	return cfg, nil
}

// LoadConfigFromYAML decodes a standalone YAML document (using Config's own
// `yaml:` struct tags) onto DefaultConfig(), for hosts that keep a plain
// metrics.yaml file instead of routing everything through Viper. Same
// zero-value fallbacks as LoadConfigFromViper; Reporter and Logger are never
// YAML-representable and must be set by the caller after loading.
func LoadConfigFromYAML(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.CollectionInterval <= 0 {
		cfg.CollectionInterval = 60 * time.Second
	}
	if cfg.HistogramLimit <= 0 {
		cfg.HistogramLimit = 1000
	}
	return cfg, nil
}
