// Package sampler takes periodic resource readings and keeps a rolling
// window of recent values per metric.
package sampler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opscart/selfheal-agent/pkg/datasource"
	"github.com/opscart/selfheal-agent/pkg/metrics"
	"github.com/opscart/selfheal-agent/pkg/models"
	"github.com/opscart/selfheal-agent/pkg/window"
	"go.uber.org/zap"
)

// SamplingError reports a failed read from the data source.
// A failed sample leaves every window untouched.
type SamplingError struct {
	Op  string
	Err error
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("sampling failed (%s): %v", e.Op, e.Err)
}

func (e *SamplingError) Unwrap() error {
	return e.Err
}

type Options struct {
	WindowSize int
	// Interval is the sampling cadence; network rates are computed over it
	Interval time.Duration
	Now      func() time.Time
	Logger   *zap.Logger
}

// Sampler reads usage from a DataSource and maintains cpu, memory and
// network windows
type Sampler struct {
	source   datasource.DataSource
	exporter metrics.Exporter
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	cpu *window.RollingWindow[float64]
	mem *window.RollingWindow[float64]
	net *window.RollingWindow[float64]

	mu           sync.Mutex
	lastNet      datasource.NetCounters
	haveBaseline bool
}

// New creates a sampler and records the network counter baseline
func New(ctx context.Context, source datasource.DataSource, exporter metrics.Exporter, opts Options) (*Sampler, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive, got %v", opts.Interval)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = metrics.Nop{}
	}

	cpu, err := window.New[float64](opts.WindowSize)
	if err != nil {
		return nil, err
	}
	mem, err := window.New[float64](opts.WindowSize)
	if err != nil {
		return nil, err
	}
	net, err := window.New[float64](opts.WindowSize)
	if err != nil {
		return nil, err
	}

	s := &Sampler{
		source:   source,
		exporter: exporter,
		interval: opts.Interval,
		now:      opts.Now,
		logger:   opts.Logger,
		cpu:      cpu,
		mem:      mem,
		net:      net,
	}

	if baseline, err := source.NetCounters(ctx); err != nil {
		s.logger.Warn("network baseline unavailable, first sample reports zero rate", zap.Error(err))
	} else {
		s.lastNet = baseline
		s.haveBaseline = true
	}

	return s, nil
}

// Sample takes one reading and appends it to the windows
func (s *Sampler) Sample(ctx context.Context) (models.Sample, error) {
	usage, err := s.source.Usage(ctx)
	if err != nil {
		return models.Sample{}, &SamplingError{Op: "usage", Err: err}
	}
	counters, err := s.source.NetCounters(ctx)
	if err != nil {
		return models.Sample{}, &SamplingError{Op: "net counters", Err: err}
	}

	s.mu.Lock()
	var sentPerSec, recvPerSec float64
	if s.haveBaseline {
		sentPerSec = s.rate(counters.BytesSent, s.lastNet.BytesSent)
		recvPerSec = s.rate(counters.BytesRecv, s.lastNet.BytesRecv)
	}
	s.lastNet = counters
	s.haveBaseline = true
	s.mu.Unlock()

	sample := models.Sample{
		CPUFraction:    usage.CPUFraction,
		MemoryFraction: usage.MemoryFraction,
		NetworkRate:    (sentPerSec + recvPerSec) / 2.0,
		Timestamp:      s.now(),
	}

	s.cpu.Add(sample.CPUFraction)
	s.mem.Add(sample.MemoryFraction)
	s.net.Add(sample.NetworkRate)

	s.exporter.SetCurrent(sample.CPUFraction, sample.MemoryFraction)
	return sample, nil
}

// Windows returns independent snapshots of the cpu, memory and network windows
func (s *Sampler) Windows() (cpu, mem, net []float64) {
	return s.cpu.Values(), s.mem.Values(), s.net.Values()
}

// Interval is the configured sampling cadence
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// rate converts a counter delta to bytes per second; a counter that went
// backwards (reset or wrap) yields zero
func (s *Sampler) rate(current, previous uint64) float64 {
	if current < previous {
		return 0
	}
	elapsed := s.interval.Seconds()
	if elapsed < 1e-6 {
		elapsed = 1e-6
	}
	return float64(current-previous) / elapsed
}
