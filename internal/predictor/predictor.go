// Package predictor forecasts disk utilization from (cpu, memory) readings.
//
// Train produces an immutable TrainedModel that bundles the feature scaler with
// the fitted regression. Inference always goes through that pair, so a scaler
// from one run can never be combined with weights from another.
package predictor

import (
	"fmt"
	"math"
	"strings"

	"emperror.dev/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

const (
	ErrTraining   = errors.Sentinel("training failed")
	ErrNotTrained = errors.Sentinel("model not trained")
)

// Estimator names a regression algorithm.
type Estimator string

const (
	Ridge  Estimator = "ridge"
	OLS    Estimator = "ols"
	Forest Estimator = "forest"
)

// ParseEstimator accepts ridge, ols or forest in any case.
func ParseEstimator(s string) (Estimator, error) {
	switch e := Estimator(strings.ToLower(s)); e {
	case Ridge, OLS, Forest:
		return e, nil
	}
	return "", errors.NewWithDetails("unknown estimator", "estimator", s)
}

type regressor interface {
	fit(x [][]float64, y []float64) error
	predict(x []float64) float64
}

type options struct {
	seed         int64
	testFraction float64
	minSamples   int
	estimator    Estimator
	forestSize   int
	ridgeLambda  float64
}

// Option tunes Train.
type Option func(*options)

func WithSeed(seed int64) Option { return func(o *options) { o.seed = seed } }

func WithTestFraction(f float64) Option { return func(o *options) { o.testFraction = f } }

// WithMinSamples sets the smallest sample count Train accepts. Values below 2 are raised to 2.
func WithMinSamples(n int) Option { return func(o *options) { o.minSamples = max(n, 2) } }

func WithEstimator(e Estimator) Option { return func(o *options) { o.estimator = e } }

func WithForestSize(n int) Option { return func(o *options) { o.forestSize = n } }

func WithRidgeLambda(l float64) Option { return func(o *options) { o.ridgeLambda = l } }

func defaultOptions() options {
	return options{
		seed:         42,
		testFraction: 0.2,
		minSamples:   10,
		estimator:    Ridge,
		forestSize:   DefaultForestSize,
		ridgeLambda:  DefaultRidgeLambda,
	}
}

// TrainedModel is the result of one training pass. It is never modified after
// Train returns and is safe to share between goroutines.
type TrainedModel struct {
	scaler    Scaler
	reg       regressor
	estimator Estimator
	heldout   []model.Sample
	trainSize int
	mse       float64
}

// Train splits samples 80/20 (by default) with a seeded shuffle, fits the
// scaler on the training subset only, fits the estimator on the scaled
// training features against disk%, and scores the held-out subset.
func Train(samples []model.Sample, opts ...Option) (*TrainedModel, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if len(samples) < o.minSamples {
		return nil, errors.WithDetails(
			errors.WithStack(fmt.Errorf("%w: need at least %d samples, got %d", ErrTraining, o.minSamples, len(samples))),
			"samples", len(samples))
	}
	if o.testFraction <= 0 || o.testFraction >= 1 {
		return nil, errors.WithStack(fmt.Errorf("%w: test fraction %v outside (0, 1)", ErrTraining, o.testFraction))
	}
	for i, s := range samples {
		if !s.Valid() {
			return nil, errors.WithDetails(errors.WithStack(fmt.Errorf("%w: sample %d out of range", ErrTraining, i)), "index", i)
		}
	}

	reg, err := newRegressor(o)
	if err != nil {
		return nil, errors.WithStack(fmt.Errorf("%w: %w", ErrTraining, err))
	}

	train, heldout := split(samples, o.testFraction, o.seed)

	features := make([][2]float64, len(train))
	for i, s := range train {
		features[i] = s.Features()
	}
	scaler := fitScaler(features)

	x := make([][]float64, len(train))
	y := make([]float64, len(train))
	for i, s := range train {
		x[i] = scaler.Transform(s.Features())
		y[i] = s.Disk
	}
	if err := reg.fit(x, y); err != nil {
		return nil, errors.WithDetails(errors.WithStack(fmt.Errorf("%w: %s: %w", ErrTraining, o.estimator, err)), "estimator", o.estimator)
	}

	m := &TrainedModel{
		scaler:    scaler,
		reg:       reg,
		estimator: o.estimator,
		heldout:   heldout,
		trainSize: len(train),
	}
	if m.mse, err = m.Evaluate(heldout); err != nil {
		return nil, errors.WithStack(fmt.Errorf("%w: %w", ErrTraining, err))
	}
	return m, nil
}

func newRegressor(o options) (regressor, error) {
	switch o.estimator {
	case Ridge:
		return &ridge{lambda: o.ridgeLambda}, nil
	case OLS:
		return &ols{}, nil
	case Forest:
		if o.forestSize < 1 {
			return nil, errors.NewWithDetails("forest needs at least one tree", "size", o.forestSize)
		}
		return &forest{size: o.forestSize, minLeaf: 1, seed: o.seed}, nil
	}
	return nil, errors.NewWithDetails("unknown estimator", "estimator", o.estimator)
}

// Predict returns the forecast disk% for the given cpu% and memory%, clamped
// to 0-100. It fails with ErrNotTrained on a nil or zero TrainedModel.
func (m *TrainedModel) Predict(cpuPct, memPct float64) (float64, error) {
	if m == nil || m.reg == nil {
		return 0, ErrNotTrained
	}
	v := m.reg.predict(m.scaler.Transform([2]float64{cpuPct, memPct}))
	if math.IsNaN(v) {
		return 0, errors.NewWithDetails("prediction is not a number", "cpu", cpuPct, "memory", memPct)
	}
	return math.Min(100, math.Max(0, v)), nil
}

// Evaluate returns the mean squared error between predicted and actual disk%.
func (m *TrainedModel) Evaluate(heldout []model.Sample) (float64, error) {
	if m == nil || m.reg == nil {
		return 0, ErrNotTrained
	}
	if len(heldout) == 0 {
		return 0, errors.New("no samples to evaluate")
	}
	pred := make([]float64, len(heldout))
	actual := make([]float64, len(heldout))
	for i, s := range heldout {
		p, err := m.Predict(s.CPU, s.Memory)
		if err != nil {
			return 0, err
		}
		pred[i], actual[i] = p, s.Disk
	}
	d := floats.Distance(pred, actual, 2)
	return d * d / float64(len(heldout)), nil
}

// The accessors below return zero values on a nil TrainedModel.

// Scaler returns the feature standardization fitted at training time.
func (m *TrainedModel) Scaler() Scaler {
	if m == nil {
		return Scaler{}
	}
	return m.scaler
}

func (m *TrainedModel) Estimator() Estimator {
	if m == nil {
		return ""
	}
	return m.estimator
}

// Heldout returns a copy of the held-out subset.
func (m *TrainedModel) Heldout() []model.Sample {
	if m == nil {
		return nil
	}
	out := make([]model.Sample, len(m.heldout))
	copy(out, m.heldout)
	return out
}

// MSE is the held-out error computed at training time.
func (m *TrainedModel) MSE() float64 {
	if m == nil {
		return 0
	}
	return m.mse
}

func (m *TrainedModel) TrainSize() int {
	if m == nil {
		return 0
	}
	return m.trainSize
}
