package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers every option on fs. Values land in the returned Config,
// which ApplyFlags later copies over a loaded Config for flags the user set.
func BindFlags(fs *pflag.FlagSet) *Config {
	c := new(Config)
	*c = Default()
	fs.DurationVar(&c.CollectDuration, "collect-duration", c.CollectDuration, "length of the bootstrap collection phase")
	fs.DurationVar(&c.CollectInterval, "collect-interval", c.CollectInterval, "sampling interval during collection")
	fs.DurationVar(&c.TickPeriod, "tick-period", c.TickPeriod, "control loop period")
	fs.Float64Var(&c.Thresholds.MemoryTriggerPct, "memory-trigger", c.Thresholds.MemoryTriggerPct, "memory percent above which reclamation runs")
	fs.Float64Var(&c.Thresholds.ProcessSharePct, "process-share", c.Thresholds.ProcessSharePct, "per-process memory percent above which a process is terminated")
	fs.StringVar(&c.MountPoint, "mount-point", c.MountPoint, "filesystem whose usage is sampled")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "seed for the train/held-out split")
	fs.Float64Var(&c.TestFraction, "test-fraction", c.TestFraction, "fraction of samples held out for evaluation")
	fs.IntVar(&c.MinSamples, "min-samples", c.MinSamples, "minimum samples required to train")
	fs.StringVar(&c.Estimator, "estimator", c.Estimator, "regression model: ridge|ols|forest")
	fs.Float64Var(&c.MSECeiling, "mse-ceiling", c.MSECeiling, "held-out MSE above which a retrain warning is logged")
	fs.IntVar(&c.RetrainEvery, "retrain-every", c.RetrainEvery, "retrain every N ticks (0 disables)")
	fs.IntVar(&c.RetrainWindow, "retrain-window", c.RetrainWindow, "number of recent tick samples used for retraining")
	fs.StringSliceVar(&c.Protect, "protect", c.Protect, "process names the reclaimer never terminates")
	fs.BoolVar(&c.DryRun, "dry-run", c.DryRun, "record reclamation candidates without terminating them")
	fs.DurationVar(&c.ProcTimeout, "proc-timeout", c.ProcTimeout, "timeout for each process enumeration or termination call")
	fs.StringVar(&c.SamplesOut, "samples-out", c.SamplesOut, "CSV file for bootstrap samples (.gz compresses, empty disables)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "listen address for /metrics and /status (empty disables)")
	fs.BoolVar(&c.TUI, "tui", c.TUI, "render the terminal dashboard")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text|json")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "write logs to this file instead of stderr")
	return c
}

var flagSetters = map[string]func(dst, src *Config){
	"collect-duration": func(d, s *Config) { d.CollectDuration = s.CollectDuration },
	"collect-interval": func(d, s *Config) { d.CollectInterval = s.CollectInterval },
	"tick-period":      func(d, s *Config) { d.TickPeriod = s.TickPeriod },
	"memory-trigger":   func(d, s *Config) { d.Thresholds.MemoryTriggerPct = s.Thresholds.MemoryTriggerPct },
	"process-share":    func(d, s *Config) { d.Thresholds.ProcessSharePct = s.Thresholds.ProcessSharePct },
	"mount-point":      func(d, s *Config) { d.MountPoint = s.MountPoint },
	"seed":             func(d, s *Config) { d.Seed = s.Seed },
	"test-fraction":    func(d, s *Config) { d.TestFraction = s.TestFraction },
	"min-samples":      func(d, s *Config) { d.MinSamples = s.MinSamples },
	"estimator":        func(d, s *Config) { d.Estimator = s.Estimator },
	"mse-ceiling":      func(d, s *Config) { d.MSECeiling = s.MSECeiling },
	"retrain-every":    func(d, s *Config) { d.RetrainEvery = s.RetrainEvery },
	"retrain-window":   func(d, s *Config) { d.RetrainWindow = s.RetrainWindow },
	"protect":          func(d, s *Config) { d.Protect = s.Protect },
	"dry-run":          func(d, s *Config) { d.DryRun = s.DryRun },
	"proc-timeout":     func(d, s *Config) { d.ProcTimeout = s.ProcTimeout },
	"samples-out":      func(d, s *Config) { d.SamplesOut = s.SamplesOut },
	"metrics-addr":     func(d, s *Config) { d.MetricsAddr = s.MetricsAddr },
	"tui":              func(d, s *Config) { d.TUI = s.TUI },
	"log-level":        func(d, s *Config) { d.LogLevel = s.LogLevel },
	"log-format":       func(d, s *Config) { d.LogFormat = s.LogFormat },
	"log-file":         func(d, s *Config) { d.LogFile = s.LogFile },
}

// ApplyFlags copies values of explicitly set flags from flags into cfg.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet, flags *Config) {
	fs.Visit(func(f *pflag.Flag) {
		if set, ok := flagSetters[f.Name]; ok {
			set(cfg, flags)
		}
	})
}
