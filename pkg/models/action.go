package models

import "time"

// Action names as reported to the event sink and the audit log
const (
	ActionThrottleNice = "throttle_nice"
	ActionRestart      = "restart"
)

// Outcome names returned by a decision cycle
const (
	OutcomeCPUThrottle = "cpu_throttle_nice"
	OutcomeMemRestart  = "restart_for_mem"
)

// ActionOutcome is what a decision cycle reports for each action it ran
type ActionOutcome struct {
	Name    string
	Success bool
	Message string
}

// ActionRecord represents a corrective action that was executed
type ActionRecord struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	TargetPID int32                  `json:"target_pid"`
	Success   bool                   `json:"success"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"executed_at"`
}
