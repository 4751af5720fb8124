package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// terminateTree kills pid and every process it spawned, children first.
func terminateTree(pid int) error {
	ctx := context.Background()
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return os.ErrProcessDone
		}
		return fmt.Errorf("failed to look up process %d: %w", pid, err)
	}
	return killTree(ctx, p)
}

func killTree(ctx context.Context, p *process.Process) error {
	children, err := p.ChildrenWithContext(ctx)
	if err == nil {
		for _, c := range children {
			_ = killTree(ctx, c)
		}
	}

	if err := p.KillWithContext(ctx); err != nil {
		if running, rerr := p.IsRunningWithContext(ctx); rerr == nil && !running {
			return os.ErrProcessDone
		}
		return fmt.Errorf("failed to kill process %d: %w", p.Pid, err)
	}
	return nil
}
