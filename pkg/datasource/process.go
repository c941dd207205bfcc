package datasource

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/process"
)

// ProcessSource reads utilisation of a single process
type ProcessSource struct {
	pid    int32
	numCPU int

	mu   sync.Mutex
	proc *process.Process
}

func NewProcessSource(pid int32) *ProcessSource {
	return &ProcessSource{
		pid:    pid,
		numCPU: runtime.NumCPU(),
	}
}

// handle caches the process so CPU percent is computed between successive calls
func (s *ProcessSource) handle(ctx context.Context) (*process.Process, error) {
	if s.proc != nil {
		return s.proc, nil
	}
	p, err := process.NewProcessWithContext(ctx, s.pid)
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", s.pid, err)
	}
	s.proc = p
	return p, nil
}

// Usage returns the process CPU share of all cores and its memory percent
func (s *ProcessSource) Usage(ctx context.Context) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.handle(ctx)
	if err != nil {
		return Usage{}, err
	}

	cpuPct, err := p.PercentWithContext(ctx, 0)
	if err != nil {
		// the pid may have been replaced after a restart
		s.proc = nil
		return Usage{}, fmt.Errorf("process %d cpu percent: %w", s.pid, err)
	}
	memPct, err := p.MemoryPercentWithContext(ctx)
	if err != nil {
		s.proc = nil
		return Usage{}, fmt.Errorf("process %d memory percent: %w", s.pid, err)
	}

	cores := float64(s.numCPU)
	if cores < 1 {
		cores = 1
	}
	return Usage{
		CPUFraction:    clamp01(cpuPct / 100.0 / cores),
		MemoryFraction: clamp01(float64(memPct) / 100.0),
	}, nil
}

// NetCounters reads the counters of the network namespace the process lives in
func (s *ProcessSource) NetCounters(ctx context.Context) (NetCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.handle(ctx)
	if err != nil {
		return NetCounters{}, err
	}
	counters, err := p.NetIOCountersWithContext(ctx, false)
	if err != nil {
		s.proc = nil
		return NetCounters{}, fmt.Errorf("process %d net io counters: %w", s.pid, err)
	}
	if len(counters) == 0 {
		return NetCounters{}, fmt.Errorf("process %d net io counters: no data", s.pid)
	}
	return NetCounters{
		BytesSent: counters[0].BytesSent,
		BytesRecv: counters[0].BytesRecv,
	}, nil
}

func (s *ProcessSource) Name() string {
	return fmt.Sprintf("process/%d", s.pid)
}
