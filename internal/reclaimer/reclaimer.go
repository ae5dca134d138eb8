// Package reclaimer relieves memory pressure by terminating processes whose
// memory share exceeds a threshold. Selection is share-based, not
// importance-based; use the protect list for anything that must survive.
package reclaimer

import (
	"context"
	"fmt"
	"os"
	"sort"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	log "github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/resource_guard/internal/config"
	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

const (
	ErrNoSuchProcess = errors.Sentinel("no such process")
	ErrAccessDenied  = errors.Sentinel("access denied")
)

// Skip and failure reasons recorded on TerminationResult.
const (
	ReasonProtected     = "protected"
	ReasonDryRun        = "dry-run"
	ReasonNoSuchProcess = "no_such_process"
	ReasonAccessDenied  = "access_denied"
	ReasonTimeout       = "timeout"
	ReasonError         = "error"
)

// DefaultCallTimeout bounds each enumeration or termination call.
const DefaultCallTimeout = 2 * time.Second

// ProcessTable enumerates and terminates OS processes. Processes may return a
// partial list together with an error when it runs out of time.
type ProcessTable interface {
	Processes(ctx context.Context) ([]model.Process, error)
	Terminate(ctx context.Context, pid int32) error
}

// Reclaimer terminates high memory-share processes once memory crosses the trigger.
type Reclaimer struct {
	table      ProcessTable
	thresholds config.Thresholds
	protect    map[string]struct{}
	dryRun     bool
	timeout    time.Duration
}

// Option configures a Reclaimer.
type Option func(*Reclaimer)

// WithProtected adds process names that are recorded as skipped instead of terminated.
func WithProtected(names ...string) Option {
	return func(r *Reclaimer) {
		for _, n := range names {
			r.protect[n] = struct{}{}
		}
	}
}

// WithDryRun records candidates without terminating them.
func WithDryRun(on bool) Option { return func(r *Reclaimer) { r.dryRun = on } }

// WithCallTimeout bounds each process table call.
func WithCallTimeout(d time.Duration) Option { return func(r *Reclaimer) { r.timeout = d } }

func New(table ProcessTable, thresholds config.Thresholds, opts ...Option) *Reclaimer {
	r := &Reclaimer{
		table:      table,
		thresholds: thresholds,
		protect:    make(map[string]struct{}),
		timeout:    DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Thresholds returns the immutable trigger configuration.
func (r *Reclaimer) Thresholds() config.Thresholds { return r.thresholds }

// ShouldReclaim reports whether memPct is above the memory trigger.
func (r *Reclaimer) ShouldReclaim(memPct float64) bool {
	return memPct > r.thresholds.MemoryTriggerPct
}

// Reclaim enumerates live processes and attempts to terminate every process
// whose memory share is above the per-process threshold, largest first.
// Per-process failures are recorded in the results and never abort the batch;
// only an enumeration that yields no processes at all returns an error.
func (r *Reclaimer) Reclaim(ctx context.Context) ([]model.TerminationResult, error) {
	listCtx, cancel := context.WithTimeout(ctx, r.timeout)
	procs, err := r.table.Processes(listCtx)
	cancel()
	switch {
	case err != nil && len(procs) == 0:
		return nil, errors.WrapIf(err, "enumerate processes")
	case err != nil:
		log.WithError(err).WithField("read", len(procs)).Warn("process enumeration truncated; reclaiming from partial list")
	}

	var candidates []model.Process
	for _, p := range procs {
		if p.MemoryShare > r.thresholds.ProcessSharePct {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MemoryShare > candidates[j].MemoryShare
	})

	results := make([]model.TerminationResult, 0, len(candidates))
	for _, p := range candidates {
		res := r.handle(ctx, p)
		logResult(res)
		results = append(results, res)
	}
	return results, nil
}

func (r *Reclaimer) handle(ctx context.Context, p model.Process) model.TerminationResult {
	res := model.TerminationResult{
		PID:         p.PID,
		Name:        p.Name,
		MemoryShare: p.MemoryShare,
		RSS:         p.RSS,
	}
	if _, ok := r.protect[p.Name]; ok {
		res.Outcome, res.Reason = model.Skipped, ReasonProtected
		return res
	}
	if r.dryRun {
		res.Outcome, res.Reason = model.Skipped, ReasonDryRun
		return res
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	err := r.table.Terminate(callCtx, p.PID)
	cancel()
	if err != nil {
		res.Outcome, res.Reason = model.Failed, reason(err)
		return res
	}
	res.Outcome = model.Terminated
	return res
}

// Classify maps OS level termination errors onto ErrNoSuchProcess and
// ErrAccessDenied. Other errors are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNoSuchProcess), errors.Is(err, ErrAccessDenied):
		return err
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		return errors.WithStack(fmt.Errorf("%w: %w", ErrNoSuchProcess, err))
	case errors.Is(err, os.ErrPermission):
		return errors.WithStack(fmt.Errorf("%w: %w", ErrAccessDenied, err))
	}
	return err
}

func reason(err error) string {
	err = Classify(err)
	switch {
	case errors.Is(err, ErrNoSuchProcess):
		return ReasonNoSuchProcess
	case errors.Is(err, ErrAccessDenied):
		return ReasonAccessDenied
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	}
	return ReasonError
}

func logResult(res model.TerminationResult) {
	entry := log.WithFields(log.Fields{
		"pid":     res.PID,
		"name":    res.Name,
		"share":   res.MemoryShare,
		"rss":     datasize.ByteSize(res.RSS).HumanReadable(),
		"outcome": res.Outcome,
	})
	switch res.Outcome {
	case model.Terminated:
		entry.Info("terminated process to free memory")
	case model.Failed:
		entry.WithField("reason", res.Reason).Warn("could not terminate process")
	default:
		entry.WithField("reason", res.Reason).Info("skipped process")
	}
}
