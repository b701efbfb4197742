package core

import (
	"errors"
	"net/http"

	"logbot-service/internal/types"
)

var (
	ErrPreconditionUnmet   = errors.New("precondition not met")
	ErrConflict            = errors.New("action already running")
	ErrCancellationTimeout = errors.New("previous action did not stop in time")
	ErrClosed              = errors.New("controller closed")
	ErrUnknownAction       = errors.New("unknown action")
)

// DispatchResult is the outcome of a single dispatch.
type DispatchResult struct {
	Status int

	Cancelled types.ActionKind // run cancelled to make way for the request
	Required  types.ActionKind // unmet precondition
	Busy      types.ActionKind // the run blocking a duplicate request

	Err error
}

// Reason returns the action named in the response, or "" for none.
func (r DispatchResult) Reason() types.ActionKind {
	switch {
	case r.Required != "":
		return r.Required
	case r.Busy != "":
		return r.Busy
	default:
		return r.Cancelled
	}
}

func (r DispatchResult) OK() bool {
	return r.Status == http.StatusOK
}

func accepted(cancelled types.ActionKind) DispatchResult {
	return DispatchResult{Status: http.StatusOK, Cancelled: cancelled}
}

func preconditionUnmet(required types.ActionKind) DispatchResult {
	return DispatchResult{Status: http.StatusForbidden, Required: required, Err: ErrPreconditionUnmet}
}

func conflict(busy types.ActionKind) DispatchResult {
	return DispatchResult{Status: http.StatusConflict, Busy: busy, Err: ErrConflict}
}

func failure(cancelled types.ActionKind, err error) DispatchResult {
	return DispatchResult{Status: http.StatusInternalServerError, Cancelled: cancelled, Err: err}
}

// decision is what the controller does with the active run and the request.
type decision int

const (
	decideNothing decision = iota // stop while idle
	decideCancel                  // stop the active run
	decideStart                   // start on an idle robot
	decideConflict                // same action already running
	decideReplace                 // cancel the active run, then start
)

func (d decision) String() string {
	switch d {
	case decideNothing:
		return "nothing"
	case decideCancel:
		return "cancel"
	case decideStart:
		return "start"
	case decideConflict:
		return "conflict"
	case decideReplace:
		return "replace"
	}
	return "unknown"
}

type requestClass int

const (
	requestStop requestClass = iota
	requestHardware
)

type previousRelation int

const (
	previousNone previousRelation = iota
	previousSame
	previousOther
)

var decisionTable = map[requestClass][3]decision{
	//                 none           same            other
	requestStop:     {decideNothing, decideCancel, decideCancel},
	requestHardware: {decideStart, decideConflict, decideReplace},
}

func decide(requested, previous types.ActionKind) decision {
	class := requestHardware
	if requested == types.ActionStop {
		class = requestStop
	}

	relation := previousOther
	switch previous {
	case "":
		relation = previousNone
	case requested:
		relation = previousSame
	}

	return decisionTable[class][relation]
}
