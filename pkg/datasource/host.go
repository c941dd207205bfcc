package datasource

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	psutilnet "github.com/shirou/gopsutil/net"
)

// HostSource reads host-wide utilisation through gopsutil
type HostSource struct{}

func NewHostSource() *HostSource {
	return &HostSource{}
}

// Usage returns CPU busy fraction since the previous call and used/total memory
func (h *HostSource) Usage(ctx context.Context) (Usage, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Usage{}, fmt.Errorf("cpu percent: %w", err)
	}
	if len(pct) == 0 {
		return Usage{}, fmt.Errorf("cpu percent: no data")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("virtual memory: %w", err)
	}

	var memFrac float64
	if vm.Total > 0 {
		memFrac = float64(vm.Used) / float64(vm.Total)
	}

	return Usage{
		CPUFraction:    clamp01(pct[0] / 100.0),
		MemoryFraction: clamp01(memFrac),
	}, nil
}

func (h *HostSource) NetCounters(ctx context.Context) (NetCounters, error) {
	counters, err := psutilnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return NetCounters{}, fmt.Errorf("net io counters: %w", err)
	}
	if len(counters) == 0 {
		return NetCounters{}, fmt.Errorf("net io counters: no data")
	}
	return NetCounters{
		BytesSent: counters[0].BytesSent,
		BytesRecv: counters[0].BytesRecv,
	}, nil
}

func (h *HostSource) Name() string {
	return "host"
}
