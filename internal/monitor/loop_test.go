package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/resource_guard/internal/config"
	"github.com/Dicklesworthstone/resource_guard/internal/model"
	"github.com/Dicklesworthstone/resource_guard/internal/predictor"
	"github.com/Dicklesworthstone/resource_guard/internal/reclaimer"
	"github.com/Dicklesworthstone/resource_guard/internal/sampler"
)

var epoch = time.Unix(1700000000, 0)

func trainedModel(t *testing.T) *predictor.TrainedModel {
	t.Helper()
	samples := make([]model.Sample, 30)
	for i := range samples {
		cpu := float64((i * 37) % 100)
		mem := float64((i*61 + 13) % 100)
		samples[i] = model.Sample{
			Timestamp: epoch.Add(time.Duration(i) * time.Second),
			CPU:       cpu,
			Memory:    mem,
			Disk:      0.2*cpu + 0.4*mem + 10,
		}
	}
	m, err := predictor.Train(samples)
	require.NoError(t, err)
	return m
}

// scriptSampler replays memory percentages; a negative entry fails that tick.
type scriptSampler struct {
	mu       sync.Mutex
	memory   []float64
	calls    int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (s *scriptSampler) Sample(context.Context) (model.Sample, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	if n > s.maxSeen.Load() {
		s.maxSeen.Store(n)
	}
	time.Sleep(s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls % len(s.memory)
	s.calls++
	if s.memory[i] < 0 {
		return model.Sample{}, errors.WithStack(fmt.Errorf("%w: memory", sampler.ErrResourceRead))
	}
	return model.Sample{
		Timestamp: epoch.Add(time.Duration(s.calls) * time.Second),
		CPU:       30,
		Memory:    s.memory[i],
		Disk:      40,
	}, nil
}

type countingTable struct {
	lists int
	procs []model.Process
}

func (c *countingTable) Processes(context.Context) ([]model.Process, error) {
	c.lists++
	return c.procs, nil
}

func (c *countingTable) Terminate(context.Context, int32) error { return nil }

type recordingReporter struct {
	mu       sync.Mutex
	readings []model.Reading
	reclaims int
}

func (r *recordingReporter) Report(rd model.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, rd)
}

func (r *recordingReporter) ReportReclaim(time.Time, []model.TerminationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reclaims++
}

func TestNew_RequiresTrainedModel(t *testing.T) {
	_, err := New(&scriptSampler{memory: []float64{10}}, nil, nil)
	assert.True(t, errors.Is(err, predictor.ErrNotTrained))
}

func TestTick_ReclaimsOnlyAboveTrigger(t *testing.T) {
	memory := make([]float64, 20)
	for i := range memory {
		memory[i] = 50
		if i%2 == 1 {
			memory[i] = 95
		}
	}
	table := &countingTable{procs: []model.Process{{PID: 99, Name: "hog", MemoryShare: 20}}}
	rc := reclaimer.New(table, config.Thresholds{MemoryTriggerPct: 80, ProcessSharePct: 1})
	rep := &recordingReporter{}
	loop, err := New(&scriptSampler{memory: memory}, trainedModel(t), rc, WithReporters(rep))
	require.NoError(t, err)

	for i := range memory {
		before := table.lists
		res, err := loop.Tick(context.Background())
		require.NoError(t, err)
		if memory[i] == 95 {
			assert.True(t, res.Reclaimed)
			assert.Equal(t, before+1, table.lists, "tick %d", i)
			require.Len(t, res.Results, 1)
			assert.Equal(t, model.Terminated, res.Results[0].Outcome)
		} else {
			assert.False(t, res.Reclaimed)
			assert.Equal(t, before, table.lists, "tick %d", i)
		}
	}
	assert.Equal(t, 10, table.lists)
	assert.Equal(t, 10, rep.reclaims)
	assert.Len(t, rep.readings, 20)
	assert.Equal(t, Idle, loop.State())
	assert.Equal(t, uint64(20), loop.Ticks())
}

func TestTick_PublishesPrediction(t *testing.T) {
	m := trainedModel(t)
	loop, err := New(&scriptSampler{memory: []float64{50}}, m, nil)
	require.NoError(t, err)

	_, ok := loop.LastKnown()
	assert.False(t, ok)

	res, err := loop.Tick(context.Background())
	require.NoError(t, err)
	want, err := m.Predict(30, 50)
	require.NoError(t, err)
	assert.Equal(t, want, res.Reading.PredictedDisk)

	last, ok := loop.LastKnown()
	require.True(t, ok)
	assert.Equal(t, res.Reading, last)
}

func TestTick_FailureKeepsLastKnown(t *testing.T) {
	rep := &recordingReporter{}
	loop, err := New(&scriptSampler{memory: []float64{42, -1}}, trainedModel(t), nil, WithReporters(rep))
	require.NoError(t, err)

	good, err := loop.Tick(context.Background())
	require.NoError(t, err)
	_, err = loop.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sampler.ErrResourceRead))

	last, ok := loop.LastKnown()
	require.True(t, ok)
	assert.Equal(t, good.Reading, last)

	require.Len(t, rep.readings, 2)
	stale := rep.readings[1]
	assert.True(t, stale.Stale)
	assert.NotEmpty(t, stale.Error)
	assert.Equal(t, good.Reading.Memory, stale.Memory)
}

func TestRun_StopsOnCancelAndNeverOverlaps(t *testing.T) {
	src := &scriptSampler{memory: []float64{50, -1, 95}, delay: 2 * time.Millisecond}
	table := &countingTable{}
	rc := reclaimer.New(table, config.Thresholds{MemoryTriggerPct: 80, ProcessSharePct: 1})
	loop, err := New(src, trainedModel(t), rc, WithPeriod(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.NoError(t, loop.Run(ctx))

	assert.Greater(t, loop.Ticks(), uint64(3), "sampler errors must not stop the loop")
	assert.Equal(t, int32(1), src.maxSeen.Load())
	assert.Equal(t, Idle, loop.State())
	assert.Greater(t, table.lists, 0)
}

func TestRun_ReturnsImmediatelyWhenCancelled(t *testing.T) {
	src := &scriptSampler{memory: []float64{50}}
	loop, err := New(src, trainedModel(t), nil, WithPeriod(time.Hour))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, loop.Run(ctx))
}

func TestRetrain_SwapsModel(t *testing.T) {
	memory := make([]float64, 12)
	for i := range memory {
		memory[i] = float64(20 + 5*i)
	}
	initial := trainedModel(t)
	var swapped []*predictor.TrainedModel
	loop, err := New(&scriptSampler{memory: memory}, initial, nil,
		WithRetrain(6, 10, func(m *predictor.TrainedModel) { swapped = append(swapped, m) },
			predictor.WithMinSamples(5)))
	require.NoError(t, err)

	for range memory {
		_, err := loop.Tick(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, swapped, 2)
	assert.Same(t, swapped[1], loop.Model())
	assert.NotSame(t, initial, loop.Model())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "reclaiming", Reclaiming.String())
	assert.Equal(t, "unknown", State(42).String())
}
