package types

import "time"

// LastCompleted records the most recent run that ended without being
// cancelled.
type LastCompleted struct {
	Kind       ActionKind `json:"kind"`
	Succeeded  bool       `json:"succeeded"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Snapshot is the externally visible controller status.
type Snapshot struct {
	State         ControllerState `json:"state"`
	Active        ActionKind      `json:"active,omitempty"`
	RunID         string          `json:"run_id,omitempty"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	LastCompleted *LastCompleted  `json:"last_completed,omitempty"`
	Degraded      bool            `json:"degraded"`
}

// Fault codes reported to the fault set and event stream
const (
	FaultCancellationTimeout = 1 // a run ignored cancellation within the grace period
	FaultRunAbandoned        = 2 // a run was released while it may still drive hardware
)
