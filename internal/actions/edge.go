package actions

import (
	"logbot-service/internal/types"
)

// FindEdge turns the robot until the right sensor sits on the line, leaving
// the left sensor on the edge that Follow tracks.
type FindEdge struct {
	*env
}

func (a *FindEdge) Run(cancel types.CancelToken) types.ActionResult {
	return a.run(cancel, func(cancel types.CancelToken) error {
		_, right := a.calibration()
		return a.findEdgeOscillating(cancel, right)
	})
}
