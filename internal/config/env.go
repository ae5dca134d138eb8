package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
)

const envPrefix = "RESGUARD_"

// applyEnv overlays RESGUARD_* variables on cfg. A variable that is set but
// cannot be parsed is an error rather than a silent fallback.
func applyEnv(cfg *Config) error {
	var e envReader
	cfg.CollectDuration = e.duration("COLLECT_DURATION", cfg.CollectDuration)
	cfg.CollectInterval = e.duration("COLLECT_INTERVAL", cfg.CollectInterval)
	cfg.TickPeriod = e.duration("TICK_PERIOD", cfg.TickPeriod)
	cfg.Thresholds.MemoryTriggerPct = e.float("MEMORY_TRIGGER", cfg.Thresholds.MemoryTriggerPct)
	cfg.Thresholds.ProcessSharePct = e.float("PROCESS_SHARE", cfg.Thresholds.ProcessSharePct)
	cfg.MountPoint = getString("MOUNT_POINT", cfg.MountPoint)
	cfg.Seed = e.integer("SEED", cfg.Seed)
	cfg.TestFraction = e.float("TEST_FRACTION", cfg.TestFraction)
	cfg.MinSamples = int(e.integer("MIN_SAMPLES", int64(cfg.MinSamples)))
	cfg.Estimator = getString("ESTIMATOR", cfg.Estimator)
	cfg.MSECeiling = e.float("MSE_CEILING", cfg.MSECeiling)
	cfg.RetrainEvery = int(e.integer("RETRAIN_EVERY", int64(cfg.RetrainEvery)))
	cfg.RetrainWindow = int(e.integer("RETRAIN_WINDOW", int64(cfg.RetrainWindow)))
	cfg.Protect = getList("PROTECT", cfg.Protect)
	cfg.DryRun = e.boolean("DRY_RUN", cfg.DryRun)
	cfg.ProcTimeout = e.duration("PROC_TIMEOUT", cfg.ProcTimeout)
	cfg.SamplesOut = getString("SAMPLES_OUT", cfg.SamplesOut)
	cfg.MetricsAddr = getString("METRICS_ADDR", cfg.MetricsAddr)
	cfg.TUI = e.boolean("TUI", cfg.TUI)
	cfg.LogLevel = getString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getString("LOG_FORMAT", cfg.LogFormat)
	cfg.LogFile = getString("LOG_FILE", cfg.LogFile)
	return errors.Combine(e.errs...)
}

func lookup(key string) (string, bool) {
	return os.LookupEnv(envPrefix + key)
}

func getString(key, fallback string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return fallback
}

// envReader parses typed variables and collects every parse failure.
type envReader struct {
	errs []error
}

func (e *envReader) invalid(key, value string) {
	e.errs = append(e.errs, errors.NewWithDetails("invalid environment value", "variable", envPrefix+key, "value", value))
}

// duration accepts Go durations and bare numbers of seconds.
func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok || v == "" {
		return fallback
	}
	v = strings.TrimSpace(v)
	if parsed, err := time.ParseDuration(v); err == nil {
		return parsed
	}
	if parsed, err := time.ParseDuration(v + "s"); err == nil {
		return parsed
	}
	e.invalid(key, v)
	return fallback
}

func (e *envReader) float(key string, fallback float64) float64 {
	v, ok := lookup(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
	if err != nil {
		e.invalid(key, v)
		return fallback
	}
	return f
}

func (e *envReader) integer(key string, fallback int64) int64 {
	v, ok := lookup(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		e.invalid(key, v)
		return fallback
	}
	return i
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v, ok := lookup(key)
	if !ok || v == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	e.invalid(key, v)
	return fallback
}

func getList(key string, fallback []string) []string {
	v, ok := lookup(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
