package sampler

import (
	"context"
	"fmt"
	"math"
	"time"

	"emperror.dev/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

// ErrResourceRead marks a failed CPU, memory or disk query.
const ErrResourceRead = errors.Sentinel("resource read failed")

// DefaultPrimeWindow is how long the first call waits between two CPU time reads.
const DefaultPrimeWindow = 200 * time.Millisecond

// Sampler produces one Sample per call.
type Sampler interface {
	Sample(ctx context.Context) (model.Sample, error)
}

// Host samples the local machine through gopsutil.
//
// cpu_pct is the busy share of CPU time since the previous call, so a caller
// that samples on a fixed period gets utilization averaged over that period.
// The first call has no previous reading and measures over the prime window.
// Host is not safe for concurrent use.
type Host struct {
	mount       string
	primeWindow time.Duration

	cpuTimes      func(ctx context.Context) (cpu.TimesStat, error)
	memoryPercent func(ctx context.Context) (float64, error)
	diskPercent   func(ctx context.Context, path string) (float64, error)
	now           func() time.Time

	primed    bool
	prevTotal float64
	prevIdle  float64
	lastCPU   float64
}

// Option configures a Host.
type Option func(*Host)

// WithPrimeWindow sets the measurement window used by the first call.
func WithPrimeWindow(d time.Duration) Option {
	return func(h *Host) { h.primeWindow = d }
}

// NewHost returns a sampler reading disk usage of the given mount point.
func NewHost(mount string, opts ...Option) *Host {
	h := &Host{
		mount:         mount,
		primeWindow:   DefaultPrimeWindow,
		cpuTimes:      aggregateTimes,
		memoryPercent: virtualMemoryPercent,
		diskPercent:   diskUsagePercent,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Sample reads CPU, memory and disk utilization. Any failed query is returned
// as ErrResourceRead; values are never defaulted.
func (h *Host) Sample(ctx context.Context) (model.Sample, error) {
	cpuPct, err := h.cpuPercent(ctx)
	if err != nil {
		return model.Sample{}, readError("cpu", err)
	}
	memPct, err := h.memoryPercent(ctx)
	if err != nil {
		return model.Sample{}, readError("memory", err)
	}
	diskPct, err := h.diskPercent(ctx, h.mount)
	if err != nil {
		return model.Sample{}, readError("disk "+h.mount, err)
	}

	s := model.Sample{
		Timestamp: h.now(),
		CPU:       cpuPct,
		Memory:    memPct,
		Disk:      diskPct,
	}
	if !s.Valid() {
		return model.Sample{}, errors.WithDetails(
			errors.WithStack(fmt.Errorf("%w: reading out of range", ErrResourceRead)),
			"cpu", cpuPct, "memory", memPct, "disk", diskPct)
	}
	return s, nil
}

// CPU percentage from the times delta since the previous call.
func (h *Host) cpuPercent(ctx context.Context) (float64, error) {
	cur, err := h.cpuTimes(ctx)
	if err != nil {
		return 0, err
	}
	if !h.primed {
		h.prevTotal, h.prevIdle = cur.Total(), cur.Idle+cur.Iowait
		h.primed = true
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(h.primeWindow):
		}
		if cur, err = h.cpuTimes(ctx); err != nil {
			return 0, err
		}
	}

	curTotal := cur.Total()
	curIdle := cur.Idle + cur.Iowait
	dt := curTotal - h.prevTotal
	di := curIdle - h.prevIdle
	h.prevTotal, h.prevIdle = curTotal, curIdle
	if dt <= 0 {
		// No time elapsed in the counters; repeat the last figure.
		return h.lastCPU, nil
	}
	h.lastCPU = clamp(100 * (1 - di/dt))
	return h.lastCPU, nil
}

func readError(resource string, err error) error {
	return errors.WithDetails(errors.WithStack(fmt.Errorf("%w: %s: %w", ErrResourceRead, resource, err)), "resource", resource)
}

func aggregateTimes(ctx context.Context) (cpu.TimesStat, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return cpu.TimesStat{}, err
	}
	if len(times) == 0 {
		return cpu.TimesStat{}, errors.New("no cpu times reported")
	}
	return times[0], nil
}

func virtualMemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func diskUsagePercent(ctx context.Context, path string) (float64, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return u.UsedPercent, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
