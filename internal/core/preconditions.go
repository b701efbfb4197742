package core

import "logbot-service/internal/types"

// PreconditionTable maps an action to the action that must have completed
// successfully, immediately before, for it to be allowed.
type PreconditionTable map[types.ActionKind]types.ActionKind

// DefaultPreconditions: following needs the robot placed on the line edge.
var DefaultPreconditions = PreconditionTable{
	types.ActionFollow: types.ActionFindEdge,
}

// Required returns the action kind must be preceded by, if any.
func (t PreconditionTable) Required(kind types.ActionKind) (types.ActionKind, bool) {
	req, ok := t[kind]
	return req, ok
}

// Satisfied reports whether kind may start given the active run and the last
// completed run. A required action that is still running has not succeeded
// yet, whatever an earlier run of it achieved.
func (t PreconditionTable) Satisfied(kind, active types.ActionKind, last *types.LastCompleted) bool {
	req, ok := t.Required(kind)
	if !ok {
		return true
	}
	if active == req {
		return false
	}
	return last != nil && last.Kind == req && last.Succeeded
}
