package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/resource_guard/internal/config"
	"github.com/Dicklesworthstone/resource_guard/internal/model"
	"github.com/Dicklesworthstone/resource_guard/internal/predictor"
	"github.com/Dicklesworthstone/resource_guard/internal/store"
)

// rampSampler alternates memory between 50 and 95 so the loop reclaims every other tick.
type rampSampler struct {
	mu   sync.Mutex
	n    int
	fail bool
}

func (s *rampSampler) Sample(context.Context) (model.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return model.Sample{}, assert.AnError
	}
	s.n++
	mem := 50.0
	if s.n%2 == 0 {
		mem = 95
	}
	cpu := float64(s.n % 50)
	return model.Sample{
		Timestamp: time.Unix(int64(s.n), 0),
		CPU:       cpu,
		Memory:    mem,
		Disk:      20 + cpu/2,
	}, nil
}

type fakeTable struct {
	mu         sync.Mutex
	terminated []int32
}

func (f *fakeTable) Processes(context.Context) ([]model.Process, error) {
	return []model.Process{
		{PID: 10, Name: "hog", MemoryShare: 30, RSS: 1 << 30},
		{PID: 11, Name: "idle", MemoryShare: 0.5},
	}, nil
}

func (f *fakeTable) Terminate(_ context.Context, pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return nil
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.CollectDuration = 60 * time.Millisecond
	cfg.CollectInterval = 5 * time.Millisecond
	cfg.TickPeriod = 5 * time.Millisecond
	cfg.MinSamples = 5
	cfg.SamplesOut = filepath.Join(t.TempDir(), "samples.csv")
	return cfg
}

func TestRunWith_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	table := &fakeTable{}
	reg := prometheus.NewRegistry()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, RunWith(ctx, cfg, Deps{Sampler: &rampSampler{}, Table: table, Registry: reg}))

	b, err := os.ReadFile(cfg.SamplesOut)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, "time,cpu,memory,disk", lines[0])
	assert.Len(t, lines, 13)

	table.mu.Lock()
	defer table.mu.Unlock()
	require.NotEmpty(t, table.terminated)
	for _, pid := range table.terminated {
		assert.EqualValues(t, 10, pid)
	}

	n, err := testutil.GatherAndCount(reg, "resguard_training_samples")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunWith_CollectionFailureAborts(t *testing.T) {
	cfg := testConfig(t)
	err := RunWith(context.Background(), cfg, Deps{Sampler: &rampSampler{fail: true}, Table: &fakeTable{}, Registry: prometheus.NewRegistry()})
	assert.ErrorIs(t, err, store.ErrCollectionAborted)
	_, statErr := os.Stat(cfg.SamplesOut)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunWith_TooFewSamples(t *testing.T) {
	cfg := testConfig(t)
	cfg.CollectDuration = 15 * time.Millisecond
	err := RunWith(context.Background(), cfg, Deps{Sampler: &rampSampler{}, Table: &fakeTable{}, Registry: prometheus.NewRegistry()})
	assert.ErrorIs(t, err, predictor.ErrTraining)
}

func TestTrainOptions_UnknownEstimator(t *testing.T) {
	cfg := config.Default()
	cfg.Estimator = "svm"
	_, err := trainOptions(cfg)
	assert.Error(t, err)
}
