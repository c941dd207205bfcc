package executor

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/opscart/selfheal-agent/pkg/events"
	"github.com/opscart/selfheal-agent/pkg/metrics"
	"github.com/opscart/selfheal-agent/pkg/models"
	"github.com/opscart/selfheal-agent/pkg/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	ctrl     *FakeController
	clock    *fakeClock
	sink     *events.Recorder
	exporter *metrics.PromExporter
	store    *storage.MemoryStore
	exec     *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctrl:     NewFakeController(),
		clock:    &fakeClock{now: time.Unix(1700000000, 0)},
		sink:     &events.Recorder{},
		exporter: metrics.NewPromExporter(),
		store:    storage.NewMemoryStore(),
	}
	f.exec = New(f.ctrl, f.exporter, f.sink, Options{
		Cooldown: 30 * time.Second,
		Now:      f.clock.Now,
		Logger:   zaptest.NewLogger(t),
		Store:    f.store,
	})
	return f
}

func assertActionsGauge(t *testing.T, exporter *metrics.PromExporter, value string) {
	t.Helper()
	expected := `
# HELP selfheal_actions_total Number of corrective actions executed
# TYPE selfheal_actions_total gauge
selfheal_actions_total ` + value + `
`
	assert.NoError(t, testutil.GatherAndCompare(exporter.Registry(), strings.NewReader(expected), "selfheal_actions_total"))
}

func TestCooldownOK(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.exec.CooldownOK(), "no action yet")

	f.exec.RecordAction(context.Background(), "throttle_nice", true, map[string]interface{}{})
	assert.False(t, f.exec.CooldownOK())

	f.clock.Advance(10 * time.Second)
	assert.False(t, f.exec.CooldownOK())
	assert.Equal(t, 10*time.Second, f.exec.SinceLastAction())

	f.clock.Advance(20 * time.Second)
	assert.True(t, f.exec.CooldownOK(), "elapsed == cooldown opens the gate")

	f.clock.Advance(time.Hour)
	assert.True(t, f.exec.CooldownOK())
}

func TestRecordAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.exec.RecordAction(ctx, "restart", true, map[string]interface{}{"pid": int32(7), "message": "restarted"})
	f.clock.Advance(time.Minute)
	f.exec.RecordAction(ctx, "throttle_nice", false, map[string]interface{}{"pid": int32(7), "error": "permission denied"})

	assert.Equal(t, 2, f.exec.ActionsCount())
	assert.Equal(t, f.clock.now, f.exec.LastAction())
	assertActionsGauge(t, f.exporter, "2")

	evs := f.sink.OfKind(events.KindAction)
	require.Len(t, evs, 2)
	first := evs[0].(events.ActionEvent)
	assert.Equal(t, "restart", first.Action)
	assert.True(t, first.Success)
	assert.Equal(t, 1700000000.0, first.TS)
	second := evs[1].(events.ActionEvent)
	assert.False(t, second.Success)

	recs, err := f.store.ListActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "permission denied", recs[0].Message)
	assert.Equal(t, int32(7), recs[0].TargetPID)
	assert.Equal(t, "restarted", recs[1].Message)
}

func TestIndependentExecutors(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)

	a.exec.RecordAction(context.Background(), "restart", true, map[string]interface{}{})
	assert.False(t, a.exec.CooldownOK())
	assert.True(t, b.exec.CooldownOK())
	assert.Equal(t, 0, b.exec.ActionsCount())
}

func TestDeprioritize(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Spawn(42, 0)

	msg, err := f.exec.Deprioritize(context.Background(), 42, 5)
	require.NoError(t, err)
	assert.Equal(t, "nice 0->5", msg)
	assert.Equal(t, 5, f.ctrl.Nice(42))
	assert.Equal(t, 1, f.exec.ActionsCount())
	assert.False(t, f.exec.CooldownOK())

	ev := f.sink.OfKind(events.KindAction)[0].(events.ActionEvent)
	assert.Equal(t, "throttle_nice", ev.Action)
	assert.Equal(t, map[string]interface{}{"pid": int32(42), "old": 0, "new": 5, "message": "nice 0->5"}, ev.Detail)
}

func TestDeprioritize_ClampsAtMaxNice(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Spawn(42, 17)

	msg, err := f.exec.Deprioritize(context.Background(), 42, 5)
	require.NoError(t, err)
	assert.Equal(t, "nice 17->19", msg)
}

func TestDeprioritize_Failures(t *testing.T) {
	t.Run("missing target", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.exec.Deprioritize(context.Background(), 99, 5)
		var aErr *ActuatorError
		require.ErrorAs(t, err, &aErr)
		assert.ErrorIs(t, err, ErrNoProcess)
		assert.Equal(t, "no process", err.Error())
		assert.Equal(t, 0, f.exec.ActionsCount(), "nothing was attempted")
		assert.True(t, f.exec.CooldownOK())
	})

	t.Run("permission denied", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Spawn(42, 0)
		f.ctrl.SetPriorityErr = syscall.EACCES

		_, err := f.exec.Deprioritize(context.Background(), 42, 5)
		var aErr *ActuatorError
		require.ErrorAs(t, err, &aErr)
		assert.Equal(t, "throttle_nice", aErr.Action)
		assert.ErrorIs(t, err, syscall.EACCES)

		// the attempt still consumes the cooldown slot
		assert.Equal(t, 1, f.exec.ActionsCount())
		assert.False(t, f.exec.CooldownOK())
		ev := f.sink.OfKind(events.KindAction)[0].(events.ActionEvent)
		assert.False(t, ev.Success)
		assert.Equal(t, "permission denied", ev.Detail["error"])
	})
}

func TestRestart_Graceful(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Spawn(42, 0)

	msg, err := f.exec.Restart(context.Background(), 42, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "restarted", msg)
	assert.Equal(t, []syscall.Signal{syscall.SIGTERM}, f.ctrl.Signals)
	assert.False(t, f.ctrl.Alive(42))

	ev := f.sink.OfKind(events.KindAction)[0].(events.ActionEvent)
	assert.Equal(t, "restart", ev.Action)
	assert.Equal(t, false, ev.Detail["forced"])
	assertActionsGauge(t, f.exporter, "1")
}

func TestRestart_ForcedAfterTimeout(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Spawn(42, 0)
	f.ctrl.IgnoreTerm = true

	start := time.Now()
	msg, err := f.exec.Restart(context.Background(), 42, 50*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	assert.Equal(t, "restarted", msg)
	assert.Equal(t, []syscall.Signal{syscall.SIGTERM, syscall.SIGKILL}, f.ctrl.Signals)
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, f.ctrl.Waited)
	assert.False(t, f.ctrl.Alive(42))

	ev := f.sink.OfKind(events.KindAction)[0].(events.ActionEvent)
	assert.True(t, ev.Success)
	assert.Equal(t, true, ev.Detail["forced"])
}

func TestRestart_Failures(t *testing.T) {
	t.Run("no process", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.exec.Restart(context.Background(), 42, time.Second)
		assert.ErrorIs(t, err, ErrNoProcess)
		assert.Equal(t, "no process", err.Error())
		assert.Empty(t, f.ctrl.Signals)
		assert.Equal(t, 0, f.exec.ActionsCount())
	})

	t.Run("signal rejected", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Spawn(42, 0)
		f.ctrl.SignalErr = syscall.EPERM

		_, err := f.exec.Restart(context.Background(), 42, time.Second)
		var aErr *ActuatorError
		require.ErrorAs(t, err, &aErr)
		assert.Equal(t, "restart", aErr.Action)
		assert.Equal(t, int32(42), aErr.PID)
		assert.Equal(t, 1, f.exec.ActionsCount())
	})

	t.Run("wait failed", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Spawn(42, 0)
		f.ctrl.IgnoreTerm = true
		f.ctrl.WaitErr = errors.New("proc unreadable")

		_, err := f.exec.Restart(context.Background(), 42, time.Second)
		assert.Error(t, err)
		assert.Equal(t, []syscall.Signal{syscall.SIGTERM}, f.ctrl.Signals)
		assert.Equal(t, 1, f.exec.ActionsCount())
	})
}

func TestNew_Defaults(t *testing.T) {
	e := New(NewFakeController(), nil, nil, Options{Cooldown: time.Second})
	e.RecordAction(context.Background(), "restart", true, map[string]interface{}{})
	assert.Equal(t, 1, e.ActionsCount())
	assert.Equal(t, time.Second, e.Cooldown())
}

// stallingStore hangs on every write until its context ends
type stallingStore struct {
	storage.MemoryStore
	stall time.Duration
}

func (s *stallingStore) LogAction(ctx context.Context, rec *models.ActionRecord) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.stall):
		return nil
	}
}

func TestRecordAction_AuditWriteIsBounded(t *testing.T) {
	ctrl := NewFakeController()
	ctrl.Spawn(42, 0)
	e := New(ctrl, nil, nil, Options{
		Cooldown:     30 * time.Second,
		Logger:       zaptest.NewLogger(t),
		Store:        &stallingStore{stall: 3 * time.Second},
		StoreTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	msg, err := e.Deprioritize(context.WithoutCancel(context.Background()), 42, 5)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "nice 0->5", msg)
	assert.Less(t, elapsed, time.Second, "a stalled audit store must not hold up the action")
	assert.Equal(t, 1, e.ActionsCount())
	assert.False(t, e.CooldownOK())
}
