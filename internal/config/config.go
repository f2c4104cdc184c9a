package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// #region duration

// Duration wraps time.Duration so YAML accepts "30m" style strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// #endregion duration

// #region types

// Config is the engine configuration, loaded from agency.yaml with
// environment fallbacks for the paths.
type Config struct {
	DataDir      string `yaml:"data_dir"`
	DBFile       string `yaml:"db_file"`
	ResourceRoot string `yaml:"resource_root"`

	UndoWindow    Duration `yaml:"undo_window"`
	SweepInterval Duration `yaml:"sweep_interval"`
	BlobRetention Duration `yaml:"blob_retention"`

	DecayRatePerDay float64  `yaml:"decay_rate_per_day"`
	DecayInterval   Duration `yaml:"decay_interval"`

	ElasticMax     Duration `yaml:"elastic_max"`
	ElasticAmplify float64  `yaml:"elastic_amplify"`

	TierBounds []float64 `yaml:"tier_bounds"` // empty means the default ladder

	TrustOnComplete  float64 `yaml:"trust_on_complete"`
	WarmthOnComplete float64 `yaml:"warmth_on_complete"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig is the optional event stream target. An empty address
// disables publishing.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

// #endregion types

// #region defaults

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:          envOr("AGENCY_DATA_DIR", "agency_data"),
		DBFile:           envOr("AGENCY_DB", "agency.db"),
		ResourceRoot:     "resources",
		UndoWindow:       Duration(time.Hour),
		SweepInterval:    Duration(5 * time.Minute),
		BlobRetention:    Duration(24 * time.Hour),
		DecayRatePerDay:  0.15,
		DecayInterval:    Duration(time.Hour),
		ElasticMax:       Duration(2 * time.Hour),
		ElasticAmplify:   1.5,
		TrustOnComplete:  0.01,
		WarmthOnComplete: 0.005,
	}
}

// #endregion defaults

// #region load

// Load reads the config file and merges it over the defaults. A missing
// file is not an error: the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.UndoWindow.Std() <= 0 {
		return fmt.Errorf("undo_window must be positive, got %s", c.UndoWindow.Std())
	}
	if c.DecayRatePerDay < 0 || c.DecayRatePerDay >= 1 {
		return fmt.Errorf("decay_rate_per_day must be in [0, 1), got %v", c.DecayRatePerDay)
	}
	if c.ElasticAmplify < 1 {
		return fmt.Errorf("elastic_amplify must be at least 1, got %v", c.ElasticAmplify)
	}
	return nil
}

// DBPath joins the data dir and database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, c.DBFile)
}

// KeyPath is where the snapshot encryption key lives.
func (c *Config) KeyPath() string {
	return filepath.Join(c.DataDir, ".snapshot_key")
}

// ResourcePath is the root of the file resource store.
func (c *Config) ResourcePath() string {
	return filepath.Join(c.DataDir, c.ResourceRoot)
}

// #endregion load

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
