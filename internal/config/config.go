package config

import (
	"os"
	"strings"
	"time"

	"emperror.dev/errors"
	"gopkg.in/yaml.v3"
)

// Thresholds decide when reclamation runs and which processes it targets.
// They are immutable for a run.
type Thresholds struct {
	MemoryTriggerPct float64 `yaml:"memory_trigger_pct"`
	ProcessSharePct  float64 `yaml:"process_share_pct"`
}

// Config carries runtime options for resguard.
type Config struct {
	CollectDuration time.Duration `yaml:"collect_duration"`
	CollectInterval time.Duration `yaml:"collect_interval"`
	TickPeriod      time.Duration `yaml:"tick_period"`
	Thresholds      Thresholds    `yaml:"thresholds"`
	MountPoint      string        `yaml:"mount_point"`

	Seed          int64   `yaml:"seed"`
	TestFraction  float64 `yaml:"test_fraction"`
	MinSamples    int     `yaml:"min_samples"`
	Estimator     string  `yaml:"estimator"`
	MSECeiling    float64 `yaml:"mse_ceiling"`
	RetrainEvery  int     `yaml:"retrain_every"`
	RetrainWindow int     `yaml:"retrain_window"`

	Protect     []string      `yaml:"protect"`
	DryRun      bool          `yaml:"dry_run"`
	ProcTimeout time.Duration `yaml:"proc_timeout"`

	SamplesOut  string `yaml:"samples_out"`
	MetricsAddr string `yaml:"metrics_addr"`
	TUI         bool   `yaml:"tui"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`
}

var estimators = []string{"ridge", "ols", "forest"}

func Default() Config {
	return Config{
		CollectDuration: 60 * time.Second,
		CollectInterval: time.Second,
		TickPeriod:      5 * time.Second,
		Thresholds: Thresholds{
			MemoryTriggerPct: 80,
			ProcessSharePct:  1,
		},
		MountPoint:    "/",
		Seed:          42,
		TestFraction:  0.2,
		MinSamples:    10,
		Estimator:     "ridge",
		MSECeiling:    25,
		RetrainWindow: 120,
		ProcTimeout:   2 * time.Second,
		SamplesOut:    "resource_usage.csv",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load builds the effective config: defaults, then the YAML file at path (if any),
// then RESGUARD_* environment variables. Flag overrides are applied by the caller
// through ApplyFlags.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.WrapIf(err, "read config file")
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.WrapIfWithDetails(err, "parse config file", "path", path)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the core cannot run with.
func (c Config) Validate() error {
	switch {
	case c.CollectInterval <= 0:
		return errors.NewWithDetails("collect interval must be positive", "interval", c.CollectInterval)
	case c.CollectDuration < c.CollectInterval:
		return errors.NewWithDetails("collect duration must be at least one interval",
			"duration", c.CollectDuration, "interval", c.CollectInterval)
	case c.TickPeriod <= 0:
		return errors.NewWithDetails("tick period must be positive", "period", c.TickPeriod)
	case !pct(c.Thresholds.MemoryTriggerPct):
		return errors.NewWithDetails("memory trigger out of range", "value", c.Thresholds.MemoryTriggerPct)
	case !pct(c.Thresholds.ProcessSharePct):
		return errors.NewWithDetails("process share out of range", "value", c.Thresholds.ProcessSharePct)
	case c.TestFraction <= 0 || c.TestFraction >= 1:
		return errors.NewWithDetails("test fraction must be within (0, 1)", "value", c.TestFraction)
	case c.MinSamples < 2:
		return errors.NewWithDetails("min samples must be at least 2", "value", c.MinSamples)
	case c.RetrainEvery < 0:
		return errors.NewWithDetails("retrain interval cannot be negative", "value", c.RetrainEvery)
	case c.RetrainEvery > 0 && c.RetrainWindow < c.MinSamples:
		return errors.NewWithDetails("retrain window smaller than min samples",
			"window", c.RetrainWindow, "min", c.MinSamples)
	case c.ProcTimeout <= 0:
		return errors.NewWithDetails("process call timeout must be positive", "value", c.ProcTimeout)
	}
	for _, e := range estimators {
		if strings.EqualFold(c.Estimator, e) {
			return nil
		}
	}
	return errors.NewWithDetails("unknown estimator", "estimator", c.Estimator)
}

func pct(v float64) bool { return v >= 0 && v <= 100 }
