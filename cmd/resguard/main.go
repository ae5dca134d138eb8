package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/Dicklesworthstone/resource_guard/internal/app"
	"github.com/Dicklesworthstone/resource_guard/internal/config"
	"github.com/Dicklesworthstone/resource_guard/internal/logging"
)

const tuiLogFile = "resguard.log"

var (
	configPath string
	flagValues *config.Config
	cfg        config.Config
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "resguard",
	Short: "Predict disk usage and reclaim memory from runaway processes",
	Long: `resguard samples CPU, memory and disk utilization, trains a regression
model that predicts disk usage from CPU and memory, and then watches the host.
When memory crosses the trigger it terminates processes holding more than the
configured share of physical memory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		config.ApplyFlags(&loaded, cmd.Flags(), flagValues)
		if err := loaded.Validate(); err != nil {
			return err
		}
		if loaded.TUI && loaded.LogFile == "" {
			loaded.LogFile = tuiLogFile
		}
		if logCloser, err = logging.Setup(loaded.LogLevel, loaded.LogFormat, loaded.LogFile); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		defer logCloser.Close()
		log.WithFields(log.Fields{
			"estimator":      cfg.Estimator,
			"memory_trigger": cfg.Thresholds.MemoryTriggerPct,
			"process_share":  cfg.Thresholds.ProcessSharePct,
			"dry_run":        cfg.DryRun,
		}).Info("starting resguard")
		return app.Run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", os.Getenv("RESGUARD_CONFIG"), "YAML config file")
	flagValues = config.BindFlags(rootCmd.Flags())
}

// signalContext is cancelled on the first SIGINT or SIGTERM. A second signal
// exits immediately.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down; send again to force exit")
		cancel()
		<-sigCh
		os.Exit(1)
	}()
	return ctx
}

func main() {
	if err := rootCmd.ExecuteContext(signalContext()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
