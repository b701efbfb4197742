package types

import (
	"fmt"
	"strings"
)

// ActionKind identifies one of the mutually exclusive robot actions.
type ActionKind string

const (
	ActionCalibrate ActionKind = "CALIBRATE"
	ActionFindEdge  ActionKind = "EDGE"
	ActionFollow    ActionKind = "FOLLOW"
	ActionDemo      ActionKind = "DEMO"
	// ActionStop never drives hardware, it only cancels.
	ActionStop ActionKind = "STOP"
)

// HardwareActions lists every kind that runs on the robot, in route order.
var HardwareActions = []ActionKind{ActionDemo, ActionCalibrate, ActionFindEdge, ActionFollow}

// ParseAction maps a route or command name (calibrate, edge, follow, demo,
// stop) to its ActionKind.
func ParseAction(name string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "calibrate":
		return ActionCalibrate, nil
	case "edge", "find-edge", "findedge":
		return ActionFindEdge, nil
	case "follow":
		return ActionFollow, nil
	case "demo":
		return ActionDemo, nil
	case "stop":
		return ActionStop, nil
	}
	return "", fmt.Errorf("unknown action: %q", name)
}

// IsHardware reports whether the kind drives motors or sensors.
func (k ActionKind) IsHardware() bool {
	switch k {
	case ActionCalibrate, ActionFindEdge, ActionFollow, ActionDemo:
		return true
	}
	return false
}

// Route returns the lower-case name used in URLs and Redis commands.
func (k ActionKind) Route() string {
	return strings.ToLower(string(k))
}

func (k ActionKind) String() string {
	return string(k)
}

// Outcome is the terminal state of a single action run.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ActionResult is reported by a hardware action once it stops driving hardware.
type ActionResult struct {
	Outcome Outcome
	Err     error
}

func Succeeded() ActionResult { return ActionResult{Outcome: OutcomeSucceeded} }

func Cancelled() ActionResult { return ActionResult{Outcome: OutcomeCancelled} }

func Failed(err error) ActionResult { return ActionResult{Outcome: OutcomeFailed, Err: err} }
