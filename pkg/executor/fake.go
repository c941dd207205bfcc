package executor

import (
	"context"
	"sync"
	"syscall"
	"time"
)

// FakeController simulates processes in memory
type FakeController struct {
	mu sync.Mutex

	nice  map[int32]int
	alive map[int32]bool

	// IgnoreTerm makes every process survive SIGTERM
	IgnoreTerm     bool
	SetPriorityErr error
	SignalErr      error
	WaitErr        error

	Signals []syscall.Signal
	Waited  []time.Duration
}

func NewFakeController() *FakeController {
	return &FakeController{
		nice:  make(map[int32]int),
		alive: make(map[int32]bool),
	}
}

// Spawn registers a live process with the given nice value
func (f *FakeController) Spawn(pid int32, nice int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[pid] = true
	f.nice[pid] = nice
}

func (f *FakeController) Alive(pid int32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *FakeController) Nice(pid int32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nice[pid]
}

func (f *FakeController) Exists(ctx context.Context, pid int32) (bool, error) {
	return f.Alive(pid), nil
}

func (f *FakeController) Priority(ctx context.Context, pid int32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.alive[pid] {
		return 0, ErrNoProcess
	}
	return f.nice[pid], nil
}

func (f *FakeController) SetPriority(ctx context.Context, pid int32, nice int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetPriorityErr != nil {
		return f.SetPriorityErr
	}
	if !f.alive[pid] {
		return ErrNoProcess
	}
	f.nice[pid] = nice
	return nil
}

func (f *FakeController) Signal(ctx context.Context, pid int32, sig syscall.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Signals = append(f.Signals, sig)
	if f.SignalErr != nil {
		return f.SignalErr
	}
	if !f.alive[pid] {
		return ErrNoProcess
	}
	switch sig {
	case syscall.SIGKILL:
		f.alive[pid] = false
	case syscall.SIGTERM:
		if !f.IgnoreTerm {
			f.alive[pid] = false
		}
	}
	return nil
}

// WaitForExit blocks for the full timeout when the process is still alive
func (f *FakeController) WaitForExit(ctx context.Context, pid int32, timeout time.Duration) (bool, error) {
	f.mu.Lock()
	f.Waited = append(f.Waited, timeout)
	waitErr := f.WaitErr
	alive := f.alive[pid]
	f.mu.Unlock()

	if waitErr != nil {
		return false, waitErr
	}
	if !alive {
		return true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
	}
	return !f.Alive(pid), nil
}
