package reclaimer

import (
	"context"
	"fmt"

	"emperror.dev/errors"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

// HostTable is the gopsutil-backed process table of the local machine.
// The zero value is ready to use.
type HostTable struct {
	// signal delivers the termination signal; nil means SIGTERM via gopsutil.
	signal func(ctx context.Context, p *process.Process) error
}

// Processes lists live processes with their memory share, computed as RSS over
// total physical memory. Processes that vanish or deny access while being read
// are left out. If ctx expires partway through, the processes read so far are
// returned together with the context error.
func (HostTable) Processes(ctx context.Context) ([]model.Process, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, errors.WrapIf(err, "read total memory")
	}
	if vm.Total == 0 {
		return nil, errors.New("total memory reported as zero")
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.WrapIf(err, "list processes")
	}

	out := make([]model.Process, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		mi, err := p.MemoryInfoWithContext(ctx)
		if err != nil || mi == nil {
			continue
		}
		name, _ := p.NameWithContext(ctx)
		out = append(out, model.Process{
			PID:         p.Pid,
			Name:        name,
			MemoryShare: 100 * float64(mi.RSS) / float64(vm.Total),
			RSS:         mi.RSS,
		})
	}
	return out, nil
}

// Terminate sends SIGTERM to pid.
func (t HostTable) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return errors.WithStack(fmt.Errorf("%w: pid %d", ErrNoSuchProcess, pid))
		}
		return Classify(err)
	}
	if t.signal != nil {
		return Classify(t.signal(ctx, p))
	}
	return Classify(p.TerminateWithContext(ctx))
}
