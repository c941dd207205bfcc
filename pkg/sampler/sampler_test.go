package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opscart/selfheal-agent/pkg/datasource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// scriptedSource replays usage readings and counters in order
type scriptedSource struct {
	mu       sync.Mutex
	usage    []datasource.Usage
	counters []datasource.NetCounters
	usageErr error
	netErr   error
}

func (s *scriptedSource) Usage(ctx context.Context) (datasource.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usageErr != nil {
		return datasource.Usage{}, s.usageErr
	}
	u := s.usage[0]
	if len(s.usage) > 1 {
		s.usage = s.usage[1:]
	}
	return u, nil
}

func (s *scriptedSource) NetCounters(ctx context.Context) (datasource.NetCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.netErr != nil {
		return datasource.NetCounters{}, s.netErr
	}
	c := s.counters[0]
	if len(s.counters) > 1 {
		s.counters = s.counters[1:]
	}
	return c, nil
}

func (s *scriptedSource) Name() string { return "scripted" }

type gaugeRecorder struct {
	cpu, mem float64
	calls    int
}

func (g *gaugeRecorder) SetCurrent(cpu, mem float64) {
	g.cpu, g.mem = cpu, mem
	g.calls++
}
func (g *gaugeRecorder) SetPredicted(cpu, mem float64) {}
func (g *gaugeRecorder) SetActionsTotal(n int)         {}

func newSampler(t *testing.T, src *scriptedSource, exp *gaugeRecorder, size int) *Sampler {
	t.Helper()
	s, err := New(context.Background(), src, exp, Options{
		WindowSize: size,
		Interval:   2 * time.Second,
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return s
}

func TestSampler_NetworkRate(t *testing.T) {
	src := &scriptedSource{
		usage: []datasource.Usage{{CPUFraction: 0.5, MemoryFraction: 0.25}},
		counters: []datasource.NetCounters{
			{BytesSent: 1000, BytesRecv: 2000}, // baseline at construction
			{BytesSent: 3000, BytesRecv: 6000},
			{BytesSent: 3000, BytesRecv: 6000},
		},
	}
	exp := &gaugeRecorder{}
	s := newSampler(t, src, exp, 12)

	sample, err := s.Sample(context.Background())
	require.NoError(t, err)
	// sent 2000/2s = 1000, recv 4000/2s = 2000, mean 1500
	assert.Equal(t, 1500.0, sample.NetworkRate)
	assert.Equal(t, 0.5, sample.CPUFraction)
	assert.Equal(t, 0.25, sample.MemoryFraction)
	assert.False(t, sample.Timestamp.IsZero())

	sample, err = s.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, sample.NetworkRate)

	cpu, mem, net := s.Windows()
	assert.Equal(t, []float64{0.5, 0.5}, cpu)
	assert.Equal(t, []float64{0.25, 0.25}, mem)
	assert.Equal(t, []float64{1500, 0}, net)

	assert.Equal(t, 2, exp.calls)
	assert.Equal(t, 0.5, exp.cpu)
	assert.Equal(t, 0.25, exp.mem)
}

func TestSampler_CounterReset(t *testing.T) {
	src := &scriptedSource{
		usage: []datasource.Usage{{}},
		counters: []datasource.NetCounters{
			{BytesSent: 5000, BytesRecv: 5000},
			{BytesSent: 100, BytesRecv: 9000},
		},
	}
	s := newSampler(t, src, &gaugeRecorder{}, 4)

	sample, err := s.Sample(context.Background())
	require.NoError(t, err)
	// sent went backwards -> 0, recv 4000/2s = 2000
	assert.Equal(t, 1000.0, sample.NetworkRate)
}

func TestSampler_NoBaselineAtConstruction(t *testing.T) {
	src := &scriptedSource{
		usage:    []datasource.Usage{{CPUFraction: 0.1}},
		counters: []datasource.NetCounters{{BytesSent: 10, BytesRecv: 10}, {BytesSent: 50, BytesRecv: 30}},
		netErr:   errors.New("counters unavailable"),
	}
	s := newSampler(t, src, &gaugeRecorder{}, 4)
	src.netErr = nil

	first, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.NetworkRate)

	second, err := s.Sample(context.Background())
	require.NoError(t, err)
	// (40/2 + 20/2) / 2
	assert.Equal(t, 15.0, second.NetworkRate)
}

func TestSampler_FailureLeavesWindowsUntouched(t *testing.T) {
	src := &scriptedSource{
		usage:    []datasource.Usage{{CPUFraction: 0.3, MemoryFraction: 0.4}},
		counters: []datasource.NetCounters{{}},
	}
	exp := &gaugeRecorder{}
	s := newSampler(t, src, exp, 4)

	_, err := s.Sample(context.Background())
	require.NoError(t, err)

	boom := errors.New("metrics unavailable")
	src.usageErr = boom
	_, err = s.Sample(context.Background())
	var sErr *SamplingError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "usage", sErr.Op)
	assert.ErrorIs(t, err, boom)

	src.usageErr = nil
	src.netErr = boom
	_, err = s.Sample(context.Background())
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "net counters", sErr.Op)

	cpu, mem, net := s.Windows()
	assert.Len(t, cpu, 1)
	assert.Len(t, mem, 1)
	assert.Len(t, net, 1)
	assert.Equal(t, 1, exp.calls)
}

func TestSampler_WindowCapacity(t *testing.T) {
	var usage []datasource.Usage
	for i := 1; i <= 6; i++ {
		usage = append(usage, datasource.Usage{CPUFraction: float64(i) / 10})
	}
	src := &scriptedSource{usage: usage, counters: []datasource.NetCounters{{}}}
	s := newSampler(t, src, &gaugeRecorder{}, 3)

	for i := 0; i < 6; i++ {
		_, err := s.Sample(context.Background())
		require.NoError(t, err)
	}

	cpu, _, _ := s.Windows()
	assert.Equal(t, []float64{0.4, 0.5, 0.6}, cpu)

	again, _, _ := s.Windows()
	assert.Equal(t, cpu, again)
}

func TestNew_Validation(t *testing.T) {
	src := &scriptedSource{counters: []datasource.NetCounters{{}}}

	_, err := New(context.Background(), src, nil, Options{WindowSize: 0, Interval: time.Second})
	assert.Error(t, err)

	_, err = New(context.Background(), src, nil, Options{WindowSize: 12, Interval: 0})
	assert.Error(t, err)

	s, err := New(context.Background(), src, nil, Options{WindowSize: 12, Interval: time.Second})
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.Interval())
}
