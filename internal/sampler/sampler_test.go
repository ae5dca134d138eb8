package sampler

import (
	"context"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost returns a Host whose CPU counters advance through times.
func fakeHost(times []cpu.TimesStat, memPct, diskPct float64) *Host {
	h := NewHost("/", WithPrimeWindow(0))
	i := 0
	h.cpuTimes = func(context.Context) (cpu.TimesStat, error) {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t, nil
	}
	h.memoryPercent = func(context.Context) (float64, error) { return memPct, nil }
	h.diskPercent = func(context.Context, string) (float64, error) { return diskPct, nil }
	return h
}

func TestHostSample_CPUFromTimesDelta(t *testing.T) {
	h := fakeHost([]cpu.TimesStat{
		{User: 0, Idle: 0},
		{User: 25, Idle: 75},  // primed window: 25% busy
		{User: 75, Idle: 125}, // +50 busy, +50 idle: 50% busy
		{User: 75, Idle: 125}, // no progress: repeat last value
	}, 42, 17)

	s, err := h.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 25, s.CPU, 1e-9)
	assert.Equal(t, 42.0, s.Memory)
	assert.Equal(t, 17.0, s.Disk)

	s, err = h.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 50, s.CPU, 1e-9)

	s, err = h.Sample(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 50, s.CPU, 1e-9)
}

func TestHostSample_SurfacesReadErrors(t *testing.T) {
	boom := errors.New("permission denied")
	tests := []struct {
		name   string
		mutate func(*Host)
	}{
		{"cpu", func(h *Host) {
			h.cpuTimes = func(context.Context) (cpu.TimesStat, error) { return cpu.TimesStat{}, boom }
		}},
		{"memory", func(h *Host) {
			h.memoryPercent = func(context.Context) (float64, error) { return 0, boom }
		}},
		{"disk", func(h *Host) {
			h.diskPercent = func(context.Context, string) (float64, error) { return 0, boom }
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := fakeHost([]cpu.TimesStat{{User: 1, Idle: 1}, {User: 2, Idle: 2}}, 10, 10)
			tc.mutate(h)
			_, err := h.Sample(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrResourceRead))
			assert.True(t, errors.Is(err, boom))
			assert.Contains(t, err.Error(), "resource read failed: "+tc.name)
		})
	}
}

func TestHostSample_RejectsOutOfRange(t *testing.T) {
	h := fakeHost([]cpu.TimesStat{{User: 1, Idle: 1}, {User: 2, Idle: 2}}, 130, 10)
	_, err := h.Sample(context.Background())
	assert.True(t, errors.Is(err, ErrResourceRead))
}

func TestHostSample_PrimeHonoursContext(t *testing.T) {
	h := fakeHost([]cpu.TimesStat{{User: 1, Idle: 1}}, 10, 10)
	h.primeWindow = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Sample(ctx)
	assert.True(t, errors.Is(err, ErrResourceRead))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHostSample_Live(t *testing.T) {
	if testing.Short() {
		t.Skip("reads the real host")
	}
	h := NewHost("/", WithPrimeWindow(50*time.Millisecond))
	s, err := h.Sample(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Valid())
}
