// Package monitor drives the periodic sample, predict, reclaim cycle.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
	"github.com/Dicklesworthstone/resource_guard/internal/predictor"
	"github.com/Dicklesworthstone/resource_guard/internal/sampler"
)

// DefaultPeriod is the baseline tick period.
const DefaultPeriod = 5 * time.Second

// State is the loop's position within a tick.
type State int32

const (
	Idle State = iota
	Sampling
	Predicting
	TriggerCheck
	Reclaiming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sampling:
		return "sampling"
	case Predicting:
		return "predicting"
	case TriggerCheck:
		return "trigger-check"
	case Reclaiming:
		return "reclaiming"
	}
	return "unknown"
}

// Reclaimer is the part of reclaimer.Reclaimer the loop drives.
type Reclaimer interface {
	ShouldReclaim(memPct float64) bool
	Reclaim(ctx context.Context) ([]model.TerminationResult, error)
}

// TickResult is everything one tick produced.
type TickResult struct {
	Reading   model.Reading
	Reclaimed bool
	Results   []model.TerminationResult
}

// Loop runs one tick at a time on a single goroutine. Ticks never overlap:
// the next tick is scheduled one period after the previous one finished.
type Loop struct {
	sampler   sampler.Sampler
	reclaimer Reclaimer
	period    time.Duration
	reporters []Reporter
	retrain   *retrainer

	current atomic.Pointer[predictor.TrainedModel]
	state   atomic.Int32
	last    atomic.Pointer[model.Reading]
	ticks   atomic.Uint64
}

// Option configures a Loop.
type Option func(*Loop)

func WithPeriod(d time.Duration) Option { return func(l *Loop) { l.period = d } }

// WithReporters adds collaborators notified after every tick.
func WithReporters(r ...Reporter) Option {
	return func(l *Loop) { l.reporters = append(l.reporters, r...) }
}

// New wires a loop. The model must come from a successful predictor.Train.
func New(s sampler.Sampler, m *predictor.TrainedModel, r Reclaimer, opts ...Option) (*Loop, error) {
	if _, err := m.Predict(0, 0); errors.Is(err, predictor.ErrNotTrained) {
		return nil, err
	}
	l := &Loop{
		sampler:   s,
		reclaimer: r,
		period:    DefaultPeriod,
	}
	l.current.Store(m)
	for _, opt := range opts {
		opt(l)
	}
	if l.period <= 0 {
		return nil, errors.NewWithDetails("tick period must be positive", "period", l.period)
	}
	return l, nil
}

// State returns the current tick phase.
func (l *Loop) State() State { return State(l.state.Load()) }

// Ticks returns the number of completed ticks, failed ones included.
func (l *Loop) Ticks() uint64 { return l.ticks.Load() }

// LastKnown returns the most recent successful reading.
func (l *Loop) LastKnown() (model.Reading, bool) {
	r := l.last.Load()
	if r == nil {
		return model.Reading{}, false
	}
	return *r, true
}

// Model returns the model currently used for inference.
func (l *Loop) Model() *predictor.TrainedModel { return l.current.Load() }

// Run ticks immediately and then once per period until ctx is cancelled.
// Cancellation is checked between ticks; a tick in flight always finishes.
// Only a sequencing error (an untrained model) stops the loop with an error.
func (l *Loop) Run(ctx context.Context) error {
	tickCtx := context.WithoutCancel(ctx)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if _, err := l.Tick(tickCtx); err != nil {
			if errors.Is(err, predictor.ErrNotTrained) {
				return err
			}
			log.WithError(err).Warn("tick failed; keeping last known reading")
		}
		timer.Reset(l.period)
	}
}

// Tick performs one sample, predict, report and conditional reclaim cycle.
func (l *Loop) Tick(ctx context.Context) (TickResult, error) {
	defer l.ticks.Add(1)
	defer l.setState(Idle)

	l.setState(Sampling)
	smp, err := l.sampler.Sample(ctx)
	if err != nil {
		l.publishStale(err)
		return TickResult{}, err
	}

	l.setState(Predicting)
	predicted, err := l.current.Load().Predict(smp.CPU, smp.Memory)
	if err != nil {
		l.publishStale(err)
		return TickResult{}, err
	}

	res := TickResult{Reading: model.Reading{
		Timestamp:     smp.Timestamp,
		CPU:           smp.CPU,
		Memory:        smp.Memory,
		Disk:          smp.Disk,
		PredictedDisk: predicted,
	}}
	l.last.Store(&res.Reading)
	for _, r := range l.reporters {
		r.Report(res.Reading)
	}

	l.setState(TriggerCheck)
	if l.reclaimer != nil && l.reclaimer.ShouldReclaim(smp.Memory) {
		l.setState(Reclaiming)
		res.Reclaimed = true
		res.Results, err = l.reclaimer.Reclaim(ctx)
		if err != nil {
			log.WithError(err).Warn("reclamation could not enumerate processes")
		}
		for _, r := range l.reporters {
			r.ReportReclaim(smp.Timestamp, res.Results)
		}
	}

	if l.retrain != nil {
		l.retrain.observe(l, smp)
	}
	return res, nil
}

func (l *Loop) setState(s State) { l.state.Store(int32(s)) }

// publishStale re-sends the last good reading, flagged, so displays keep
// showing figures instead of blanking.
func (l *Loop) publishStale(err error) {
	last := l.last.Load()
	if last == nil {
		return
	}
	stale := *last
	stale.Stale = true
	stale.Error = err.Error()
	for _, r := range l.reporters {
		r.Report(stale)
	}
}
