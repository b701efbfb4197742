package types

// ControllerState is the published form of the action controller status.
type ControllerState string

const (
	StateIdle        ControllerState = "idle"
	StateCalibrating ControllerState = "calibrating"
	StateFindingEdge ControllerState = "finding-edge"
	StateFollowing   ControllerState = "following"
	StateDemo        ControllerState = "demo"
	StateDegraded    ControllerState = "degraded"
)

// RunningState returns the state published while kind is the active run.
func RunningState(kind ActionKind) ControllerState {
	switch kind {
	case ActionCalibrate:
		return StateCalibrating
	case ActionFindEdge:
		return StateFindingEdge
	case ActionFollow:
		return StateFollowing
	case ActionDemo:
		return StateDemo
	}
	return StateIdle
}
