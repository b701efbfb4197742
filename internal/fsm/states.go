package fsm

import (
	"github.com/librescoot/librefsm"

	"logbot-service/internal/types"
)

// Controller states
const (
	StateIdle     librefsm.StateID = "idle"
	StateDegraded librefsm.StateID = "degraded"

	// Running parent state and one substate per hardware action
	StateRunning     librefsm.StateID = "running"
	StateCalibrating librefsm.StateID = "calibrating"
	StateFindingEdge librefsm.StateID = "finding-edge"
	StateFollowing   librefsm.StateID = "following"
	StateDemo        librefsm.StateID = "demo"
)

// Controller events
const (
	// Action starts, also used to replace a running action
	EvCalibrate librefsm.EventID = "calibrate"
	EvFindEdge  librefsm.EventID = "edge"
	EvFollow    librefsm.EventID = "follow"
	EvDemo      librefsm.EventID = "demo"

	// Run lifecycle
	EvFinished      librefsm.EventID = "finished"
	EvStopped       librefsm.EventID = "stopped"
	EvCancelTimeout librefsm.EventID = "cancel-timeout"
	EvRecovered     librefsm.EventID = "recovered"
)

// StartEvent returns the event that moves the machine into kind's state.
func StartEvent(kind types.ActionKind) (librefsm.EventID, bool) {
	switch kind {
	case types.ActionCalibrate:
		return EvCalibrate, true
	case types.ActionFindEdge:
		return EvFindEdge, true
	case types.ActionFollow:
		return EvFollow, true
	case types.ActionDemo:
		return EvDemo, true
	}
	return "", false
}

// ToControllerState maps a machine state onto the published controller state.
func ToControllerState(id librefsm.StateID) types.ControllerState {
	switch id {
	case StateCalibrating:
		return types.StateCalibrating
	case StateFindingEdge:
		return types.StateFindingEdge
	case StateFollowing:
		return types.StateFollowing
	case StateDemo:
		return types.StateDemo
	case StateDegraded:
		return types.StateDegraded
	default:
		return types.StateIdle
	}
}
