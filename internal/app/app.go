// Package app wires the bootstrap phase and the control loop together.
package app

import (
	"context"

	"emperror.dev/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/resource_guard/internal/config"
	"github.com/Dicklesworthstone/resource_guard/internal/metrics"
	"github.com/Dicklesworthstone/resource_guard/internal/monitor"
	"github.com/Dicklesworthstone/resource_guard/internal/predictor"
	"github.com/Dicklesworthstone/resource_guard/internal/reclaimer"
	"github.com/Dicklesworthstone/resource_guard/internal/sampler"
	"github.com/Dicklesworthstone/resource_guard/internal/server"
	"github.com/Dicklesworthstone/resource_guard/internal/store"
	"github.com/Dicklesworthstone/resource_guard/internal/ui"
)

// Deps are the host-facing collaborators. Zero fields get the live defaults.
type Deps struct {
	Sampler  sampler.Sampler
	Table    reclaimer.ProcessTable
	Registry *prometheus.Registry
}

// Run starts resguard against the local host.
func Run(ctx context.Context, cfg config.Config) error {
	return RunWith(ctx, cfg, Deps{})
}

// RunWith collects the bootstrap samples, trains the predictor and runs the
// control loop until ctx is cancelled or the dashboard quits.
func RunWith(ctx context.Context, cfg config.Config, deps Deps) error {
	if deps.Sampler == nil {
		deps.Sampler = sampler.NewHost(cfg.MountPoint)
	}
	if deps.Table == nil {
		deps.Table = reclaimer.HostTable{}
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
		deps.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	log.WithFields(log.Fields{
		"duration": cfg.CollectDuration,
		"interval": cfg.CollectInterval,
	}).Info("collecting bootstrap samples")
	st, err := store.Collect(ctx, deps.Sampler, cfg.CollectDuration, cfg.CollectInterval)
	if err != nil {
		return err
	}
	samples := st.Samples()
	log.WithField("samples", len(samples)).Info("collection finished")

	if cfg.SamplesOut != "" {
		if err := store.ExportFile(cfg.SamplesOut, samples); err != nil {
			log.WithError(err).Warn("could not export samples")
		} else {
			log.WithField("path", cfg.SamplesOut).Info("samples exported")
		}
	}

	opts, err := trainOptions(cfg)
	if err != nil {
		return err
	}
	m, err := predictor.Train(samples, opts...)
	if err != nil {
		return err
	}
	logTraining(m, cfg.MSECeiling)

	rep := metrics.New(deps.Registry)
	rep.ObserveTraining(m.MSE(), m.TrainSize())

	rc := reclaimer.New(deps.Table, cfg.Thresholds,
		reclaimer.WithProtected(cfg.Protect...),
		reclaimer.WithDryRun(cfg.DryRun),
		reclaimer.WithCallTimeout(cfg.ProcTimeout),
	)

	reporters := []monitor.Reporter{monitor.LogReporter{}, rep}
	var feed *ui.Feed
	if cfg.TUI {
		feed = ui.NewFeed()
		reporters = append(reporters, feed)
	}

	loopOpts := []monitor.Option{
		monitor.WithPeriod(cfg.TickPeriod),
		monitor.WithReporters(reporters...),
	}
	if cfg.RetrainEvery > 0 {
		loopOpts = append(loopOpts, monitor.WithRetrain(cfg.RetrainEvery, cfg.RetrainWindow,
			func(nm *predictor.TrainedModel) {
				logTraining(nm, cfg.MSECeiling)
				rep.ObserveTraining(nm.MSE(), nm.TrainSize())
			}, opts...))
	}
	loop, err := monitor.New(deps.Sampler, m, rc, loopOpts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		srv := server.New(cfg.MetricsAddr, loop, samples, deps.Registry)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	if feed != nil {
		g.Go(func() error {
			defer cancel()
			return ui.Run(gctx, feed, cfg.Thresholds)
		})
	}
	return g.Wait()
}

func trainOptions(cfg config.Config) ([]predictor.Option, error) {
	est, err := predictor.ParseEstimator(cfg.Estimator)
	if err != nil {
		return nil, errors.WrapIf(err, "configure predictor")
	}
	return []predictor.Option{
		predictor.WithSeed(cfg.Seed),
		predictor.WithTestFraction(cfg.TestFraction),
		predictor.WithMinSamples(cfg.MinSamples),
		predictor.WithEstimator(est),
	}, nil
}

func logTraining(m *predictor.TrainedModel, ceiling float64) {
	entry := log.WithFields(log.Fields{
		"estimator": m.Estimator(),
		"train":     m.TrainSize(),
		"heldout":   len(m.Heldout()),
		"mse":       m.MSE(),
	})
	if ceiling > 0 && m.MSE() > ceiling {
		entry.WithField("ceiling", ceiling).Warn("held-out error above ceiling; consider collecting longer or retraining")
		return
	}
	entry.Info("predictor trained")
}
