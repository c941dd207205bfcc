package executor

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/process"
	"golang.org/x/sys/unix"
)

// ErrNoProcess is returned when the target process does not exist
var ErrNoProcess = errors.New("no process")

// Nice bounds on Linux
const (
	MinNice = -20
	MaxNice = 19
)

// ProcessController is the set of OS operations the executor needs
type ProcessController interface {
	Exists(ctx context.Context, pid int32) (bool, error)
	Priority(ctx context.Context, pid int32) (int, error)
	SetPriority(ctx context.Context, pid int32, nice int) error
	Signal(ctx context.Context, pid int32, sig syscall.Signal) error
	// WaitForExit reports whether the process exited within timeout
	WaitForExit(ctx context.Context, pid int32, timeout time.Duration) (bool, error)
}

// OSController controls local processes through gopsutil and setpriority(2)
type OSController struct {
	PollInterval time.Duration
}

func NewOSController() *OSController {
	return &OSController{PollInterval: 100 * time.Millisecond}
}

func (c *OSController) Exists(ctx context.Context, pid int32) (bool, error) {
	return process.PidExistsWithContext(ctx, pid)
}

// Priority returns the nice value of pid on the -20..19 scale
func (c *OSController) Priority(ctx context.Context, pid int32) (int, error) {
	raw, err := unix.Getpriority(unix.PRIO_PROCESS, int(pid))
	if err != nil {
		return 0, mapErrno(fmt.Errorf("getpriority %d: %w", pid, err))
	}
	return niceFromGetpriority(raw), nil
}

func (c *OSController) SetPriority(ctx context.Context, pid int32, nice int) error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, int(pid), nice); err != nil {
		return mapErrno(fmt.Errorf("setpriority %d to %d: %w", pid, nice, err))
	}
	return nil
}

func (c *OSController) Signal(ctx context.Context, pid int32, sig syscall.Signal) error {
	p, err := c.lookup(ctx, pid)
	if err != nil {
		return err
	}
	if err := p.SendSignalWithContext(ctx, sig); err != nil {
		return mapErrno(fmt.Errorf("send %v to %d: %w", sig, pid, err))
	}
	return nil
}

func (c *OSController) WaitForExit(ctx context.Context, pid int32, timeout time.Duration) (bool, error) {
	poll := c.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		exists, err := process.PidExistsWithContext(ctx, pid)
		if err != nil {
			return false, fmt.Errorf("check pid %d: %w", pid, err)
		}
		if !exists {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

func (c *OSController) lookup(ctx context.Context, pid int32) (*process.Process, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil, ErrNoProcess
		}
		return nil, fmt.Errorf("lookup pid %d: %w", pid, err)
	}
	return p, nil
}

func mapErrno(err error) error {
	if errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("%w: %v", ErrNoProcess, err)
	}
	return err
}
