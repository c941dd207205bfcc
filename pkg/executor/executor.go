// Package executor runs corrective actions against the target process and
// enforces a single cooldown shared by every action kind.
package executor

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/opscart/selfheal-agent/pkg/events"
	"github.com/opscart/selfheal-agent/pkg/metrics"
	"github.com/opscart/selfheal-agent/pkg/models"
	"github.com/opscart/selfheal-agent/pkg/storage"
	"go.uber.org/zap"
)

// ActuatorError reports a failed action attempt
type ActuatorError struct {
	Action string
	PID    int32
	Err    error
}

func (e *ActuatorError) Error() string {
	return e.Err.Error()
}

func (e *ActuatorError) Unwrap() error {
	return e.Err
}

type Options struct {
	Cooldown time.Duration
	Now      func() time.Time
	Logger   *zap.Logger
	// Store receives an audit record per action when set
	Store storage.Store
	// StoreTimeout bounds each audit write, defaults to events.DefaultTimeout
	StoreTimeout time.Duration
}

// Executor owns the cooldown clock and the action counter
type Executor struct {
	ctrl         ProcessController
	exporter     metrics.Exporter
	sink         events.Sink
	store        storage.Store
	storeTimeout time.Duration
	cooldown     time.Duration
	now          func() time.Time
	logger       *zap.Logger

	lastAction   time.Time
	actionsCount int
}

func New(ctrl ProcessController, exporter metrics.Exporter, sink events.Sink, opts Options) *Executor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = metrics.Nop{}
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = events.DefaultTimeout
	}
	return &Executor{
		ctrl:         ctrl,
		exporter:     exporter,
		sink:         sink,
		store:        opts.Store,
		storeTimeout: opts.StoreTimeout,
		cooldown:     opts.Cooldown,
		now:          opts.Now,
		logger:       opts.Logger,
	}
}

// CooldownOK reports whether enough time has passed since the last action
func (e *Executor) CooldownOK() bool {
	return e.SinceLastAction() >= e.cooldown
}

// SinceLastAction is the time elapsed since the last recorded action
func (e *Executor) SinceLastAction() time.Duration {
	return e.now().Sub(e.lastAction)
}

func (e *Executor) ActionsCount() int {
	return e.actionsCount
}

func (e *Executor) LastAction() time.Time {
	return e.lastAction
}

func (e *Executor) Cooldown() time.Duration {
	return e.cooldown
}

// Deprioritize raises the nice value of pid by increment
func (e *Executor) Deprioritize(ctx context.Context, pid int32, increment int) (string, error) {
	const action = models.ActionThrottleNice
	detail := map[string]interface{}{"pid": pid}

	old, err := e.ctrl.Priority(ctx, pid)
	if err != nil {
		return "", e.fail(ctx, action, pid, detail, err)
	}

	target := old + increment
	if target > MaxNice {
		target = MaxNice
	}
	if err := e.ctrl.SetPriority(ctx, pid, target); err != nil {
		detail["old"] = old
		return "", e.fail(ctx, action, pid, detail, err)
	}

	current, err := e.ctrl.Priority(ctx, pid)
	if err != nil {
		current = target
	}

	msg := fmt.Sprintf("nice %d->%d", old, current)
	detail["old"] = old
	detail["new"] = current
	detail["message"] = msg
	e.RecordAction(ctx, action, true, detail)
	return msg, nil
}

// Restart asks pid to terminate and kills it if it is still alive after
// gracefulTimeout. A supervisor is expected to bring the workload back.
func (e *Executor) Restart(ctx context.Context, pid int32, gracefulTimeout time.Duration) (string, error) {
	const action = models.ActionRestart
	detail := map[string]interface{}{"pid": pid}

	exists, err := e.ctrl.Exists(ctx, pid)
	if err != nil {
		return "", e.fail(ctx, action, pid, detail, err)
	}
	if !exists {
		return "", e.fail(ctx, action, pid, detail, ErrNoProcess)
	}

	if err := e.ctrl.Signal(ctx, pid, syscall.SIGTERM); err != nil {
		return "", e.fail(ctx, action, pid, detail, err)
	}

	exited, err := e.ctrl.WaitForExit(ctx, pid, gracefulTimeout)
	if err != nil {
		return "", e.fail(ctx, action, pid, detail, err)
	}

	forced := false
	if !exited {
		e.logger.Warn("target ignored SIGTERM, killing",
			zap.Int32("pid", pid),
			zap.Duration("graceful_timeout", gracefulTimeout))
		// exiting between the wait and the kill counts as success
		if err := e.ctrl.Signal(ctx, pid, syscall.SIGKILL); err != nil && !errors.Is(err, ErrNoProcess) {
			return "", e.fail(ctx, action, pid, detail, err)
		}
		forced = true
	}

	detail["forced"] = forced
	detail["message"] = "restarted"
	e.RecordAction(ctx, action, true, detail)
	return "restarted", nil
}

// RecordAction consumes the cooldown slot, bumps the counter and reports
// the action to the metrics exporter, the event sink and the audit store.
func (e *Executor) RecordAction(ctx context.Context, name string, success bool, detail map[string]interface{}) {
	ts := e.now()
	e.lastAction = ts
	e.actionsCount++

	e.exporter.SetActionsTotal(e.actionsCount)
	e.sink.Post(ctx, events.NewActionEvent(name, success, detail, ts))

	e.logger.Info("corrective action recorded",
		zap.String("action", name),
		zap.Bool("success", success),
		zap.Any("detail", detail),
		zap.Int("actions_total", e.actionsCount))

	if e.store == nil {
		return
	}
	rec := &models.ActionRecord{
		Action:    name,
		Success:   success,
		Detail:    detail,
		Message:   messageOf(detail),
		Timestamp: ts,
	}
	if pid, ok := detail["pid"].(int32); ok {
		rec.TargetPID = pid
	}
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.store.LogAction(storeCtx, rec); err != nil {
		e.logger.Warn("failed to write action audit record", zap.Error(err))
	}
}

// fail wraps err as an ActuatorError. Attempts against a missing target are
// not recorded; every other failure still consumes the cooldown slot.
func (e *Executor) fail(ctx context.Context, action string, pid int32, detail map[string]interface{}, err error) error {
	aErr := &ActuatorError{Action: action, PID: pid, Err: err}
	if errors.Is(err, ErrNoProcess) {
		aErr.Err = ErrNoProcess
		e.logger.Info("target process is gone", zap.String("action", action), zap.Int32("pid", pid))
		return aErr
	}

	e.logger.Warn("corrective action failed",
		zap.String("action", action),
		zap.Int32("pid", pid),
		zap.Error(err))
	detail["error"] = err.Error()
	e.RecordAction(ctx, action, false, detail)
	return aErr
}

func messageOf(detail map[string]interface{}) string {
	if msg, ok := detail["message"].(string); ok {
		return msg
	}
	if msg, ok := detail["error"].(string); ok {
		return msg
	}
	return ""
}
