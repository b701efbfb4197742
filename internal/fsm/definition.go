package fsm

import (
	"github.com/librescoot/librefsm"
)

// NewDefinition creates the controller status FSM definition. The machine
// mirrors decisions taken by the action controller; it never vetoes them.
func NewDefinition(actions Actions) *librefsm.Definition {
	def := librefsm.NewDefinition().
		State(StateIdle,
			librefsm.WithOnEnter(actions.EnterIdle),
		).
		State(StateDegraded,
			librefsm.WithOnEnter(actions.EnterDegraded),
			librefsm.WithOnExit(actions.ExitDegraded),
		).

		// Running parent state (shared stop/finish handling)
		State(StateRunning,
			librefsm.WithOnEnter(actions.EnterRunning),
		).
		State(StateCalibrating, librefsm.WithParent(StateRunning)).
		State(StateFindingEdge, librefsm.WithParent(StateRunning)).
		State(StateFollowing, librefsm.WithParent(StateRunning)).
		State(StateDemo, librefsm.WithParent(StateRunning))

	starts := []struct {
		event librefsm.EventID
		to    librefsm.StateID
	}{
		{EvCalibrate, StateCalibrating},
		{EvFindEdge, StateFindingEdge},
		{EvFollow, StateFollowing},
		{EvDemo, StateDemo},
	}
	for _, s := range starts {
		// From Idle, or replacing whatever is running
		def = def.
			Transition(StateIdle, s.event, s.to).
			Transition(StateRunning, s.event, s.to)
	}

	return def.
		Transition(StateRunning, EvFinished, StateIdle).
		Transition(StateRunning, EvStopped, StateIdle).
		Transition(StateRunning, EvCancelTimeout, StateDegraded).
		Transition(StateDegraded, EvRecovered, StateIdle).
		Initial(StateIdle)
}
