package actions

import (
	"fmt"

	"logbot-service/internal/hardware"
	"logbot-service/internal/types"
)

// Follow tracks the line edge until cancelled. It only ends on its own when
// the hardware fails.
type Follow struct {
	*env
}

func (a *Follow) Run(cancel types.CancelToken) types.ActionResult {
	return a.run(cancel, a.follow)
}

func (a *Follow) follow(cancel types.CancelToken) error {
	left, _ := a.calibration()
	follower := NewLineFollower(a.cfg, left)
	accel := NewAcceleration(a.cfg.Acceleration)

	for {
		v, err := a.read(hardware.SensorLeft)
		if err != nil {
			return err
		}
		if err := a.vehicle.Drive(accel.Apply(follower.Step(v))); err != nil {
			return fmt.Errorf("failed to drive: %w", err)
		}
		if err := a.wait(cancel); err != nil {
			return err
		}
	}
}
