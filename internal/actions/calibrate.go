package actions

import (
	"logbot-service/internal/hardware"
	"logbot-service/internal/types"
)

// Calibrate learns the line and floor readings of both sensors.
type Calibrate struct {
	*env
}

func (a *Calibrate) Run(cancel types.CancelToken) types.ActionResult {
	return a.run(cancel, func(cancel types.CancelToken) error {
		_, _, err := a.calibrateSweep(cancel, a.cfg.CalibrateSweep, hardware.SpinLeft(a.cfg.Speed/2))
		return err
	})
}
