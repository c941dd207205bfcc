// Package agent runs the sampling and evaluation loops that turn resource
// readings into corrective actions.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opscart/selfheal-agent/pkg/analyzer"
	"github.com/opscart/selfheal-agent/pkg/events"
	"github.com/opscart/selfheal-agent/pkg/executor"
	"github.com/opscart/selfheal-agent/pkg/metrics"
	"github.com/opscart/selfheal-agent/pkg/models"
	"github.com/opscart/selfheal-agent/pkg/sampler"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options holds the decision policy
type Options struct {
	TargetPID       int32
	CPUThreshold    float64
	MemThreshold    float64
	NiceIncrement   int
	GracefulTimeout time.Duration
	SampleInterval  time.Duration
	// EvalInterval defaults to SampleInterval
	EvalInterval time.Duration
	Now          func() time.Time
	Logger       *zap.Logger
}

// Agent is the decision loop. It owns one sampler and one executor.
type Agent struct {
	opts      Options
	sampler   *sampler.Sampler
	exec      *executor.Executor
	predictor analyzer.Predictor
	exporter  metrics.Exporter
	sink      events.Sink
	logger    *zap.Logger
}

func New(s *sampler.Sampler, exec *executor.Executor, predictor analyzer.Predictor,
	exporter metrics.Exporter, sink events.Sink, opts Options) (*Agent, error) {
	if s == nil || exec == nil {
		return nil, errors.New("agent needs a sampler and an executor")
	}
	if opts.SampleInterval <= 0 {
		return nil, fmt.Errorf("sample interval must be positive, got %v", opts.SampleInterval)
	}
	if opts.EvalInterval <= 0 {
		opts.EvalInterval = opts.SampleInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if predictor == nil {
		predictor = analyzer.LinearTrend{}
	}
	if exporter == nil {
		exporter = metrics.Nop{}
	}
	if sink == nil {
		sink = events.NopSink{}
	}

	return &Agent{
		opts:      opts,
		sampler:   s,
		exec:      exec,
		predictor: predictor,
		exporter:  exporter,
		sink:      sink,
		logger:    opts.Logger,
	}, nil
}

// Evaluate runs one decision cycle and returns the actions it executed.
//
// The cooldown gate is checked once per cycle: when both thresholds are
// breached both actions run, even though the first one has just restarted
// the cooldown.
func (a *Agent) Evaluate(ctx context.Context) []models.ActionOutcome {
	cpuVals, memVals, _ := a.sampler.Windows()
	cpuPred := a.predictor.Predict(cpuVals)
	memPred := a.predictor.Predict(memVals)

	a.exporter.SetPredicted(cpuPred, memPred)
	a.sink.Post(ctx, events.NewSnapshotEvent(cpuVals, memVals, cpuPred, memPred, a.opts.Now()))

	a.logger.Debug("evaluated windows",
		zap.Float64("cpu_pred", cpuPred),
		zap.Float64("mem_pred", memPred),
		zap.Int("samples", len(cpuVals)))

	if !a.exec.CooldownOK() {
		since := a.exec.SinceLastAction()
		a.sink.Post(ctx, events.NewCooldownEvent(since))
		a.logger.Debug("cooldown active", zap.Duration("since_last_action", since))
		return nil
	}

	// a stop signal must not cut an action short
	actx := context.WithoutCancel(ctx)

	var actions []models.ActionOutcome
	if cpuPred >= a.opts.CPUThreshold {
		msg, err := a.exec.Deprioritize(actx, a.opts.TargetPID, a.opts.NiceIncrement)
		actions = append(actions, outcome(models.OutcomeCPUThrottle, msg, err))
	}
	if memPred >= a.opts.MemThreshold {
		msg, err := a.exec.Restart(actx, a.opts.TargetPID, a.opts.GracefulTimeout)
		actions = append(actions, outcome(models.OutcomeMemRestart, msg, err))
	}
	return actions
}

// Run samples and evaluates on their own tickers until ctx is cancelled
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent started",
		zap.Int32("target_pid", a.opts.TargetPID),
		zap.Duration("sample_interval", a.opts.SampleInterval),
		zap.Duration("eval_interval", a.opts.EvalInterval),
		zap.Float64("cpu_threshold", a.opts.CPUThreshold),
		zap.Float64("mem_threshold", a.opts.MemThreshold),
		zap.Duration("cooldown", a.exec.Cooldown()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.sampleLoop(ctx)
		return nil
	})
	g.Go(func() error {
		a.evaluateLoop(ctx)
		return nil
	})
	err := g.Wait()

	a.logger.Info("agent stopped", zap.Int("actions_total", a.exec.ActionsCount()))
	return err
}

func (a *Agent) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(a.opts.SampleInterval)
	defer ticker.Stop()

	for {
		a.sampleOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Agent) sampleOnce(ctx context.Context) {
	sample, err := a.sampler.Sample(ctx)
	if err != nil {
		var sErr *sampler.SamplingError
		if errors.As(err, &sErr) {
			a.logger.Warn("skipping sample", zap.Error(err))
			return
		}
		a.logger.Error("unexpected sampling failure", zap.Error(err))
		return
	}
	a.logger.Debug("sample",
		zap.Float64("cpu", sample.CPUFraction),
		zap.Float64("mem", sample.MemoryFraction),
		zap.Float64("net", sample.NetworkRate))
}

func (a *Agent) evaluateLoop(ctx context.Context) {
	ticker := time.NewTicker(a.opts.EvalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if acts := a.Evaluate(ctx); len(acts) > 0 {
			a.logger.Info("actions executed", zap.Any("actions", acts))
		}
	}
}

func outcome(name, msg string, err error) models.ActionOutcome {
	if err != nil {
		return models.ActionOutcome{Name: name, Success: false, Message: err.Error()}
	}
	return models.ActionOutcome{Name: name, Success: true, Message: msg}
}
