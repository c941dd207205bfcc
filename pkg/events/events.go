package events

import "time"

// Event kinds understood by the control plane
const (
	KindMetricsSnapshot = "metrics_snapshot"
	KindAction          = "action"
	KindCooldown        = "cooldown"
)

// Event is a JSON payload handed to a Sink
type Event interface {
	Kind() string
}

// SnapshotEvent carries the raw windows and the predictions of one cycle
type SnapshotEvent struct {
	Event   string    `json:"event"`
	CPUVals []float64 `json:"cpu_vals"`
	MemVals []float64 `json:"mem_vals"`
	CPUPred float64   `json:"cpu_pred"`
	MemPred float64   `json:"mem_pred"`
	TS      float64   `json:"ts"`
}

func (SnapshotEvent) Kind() string { return KindMetricsSnapshot }

// ActionEvent reports an executed corrective action
type ActionEvent struct {
	Event   string                 `json:"event"`
	Action  string                 `json:"action"`
	Detail  map[string]interface{} `json:"detail"`
	Success bool                   `json:"success"`
	TS      float64                `json:"ts"`
}

func (ActionEvent) Kind() string { return KindAction }

// CooldownEvent reports a cycle skipped because the cooldown has not elapsed
type CooldownEvent struct {
	Event string  `json:"event"`
	Since float64 `json:"since"` // seconds since the last action
}

func (CooldownEvent) Kind() string { return KindCooldown }

func NewSnapshotEvent(cpuVals, memVals []float64, cpuPred, memPred float64, ts time.Time) SnapshotEvent {
	if cpuVals == nil {
		cpuVals = []float64{}
	}
	if memVals == nil {
		memVals = []float64{}
	}
	return SnapshotEvent{
		Event:   KindMetricsSnapshot,
		CPUVals: cpuVals,
		MemVals: memVals,
		CPUPred: cpuPred,
		MemPred: memPred,
		TS:      unixSeconds(ts),
	}
}

func NewActionEvent(action string, success bool, detail map[string]interface{}, ts time.Time) ActionEvent {
	return ActionEvent{
		Event:   KindAction,
		Action:  action,
		Detail:  detail,
		Success: success,
		TS:      unixSeconds(ts),
	}
}

func NewCooldownEvent(since time.Duration) CooldownEvent {
	return CooldownEvent{
		Event: KindCooldown,
		Since: since.Seconds(),
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
