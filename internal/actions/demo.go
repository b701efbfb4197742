package actions

import (
	"fmt"

	"logbot-service/internal/hardware"
	"logbot-service/internal/types"
)

// Demo runs the scripted showcase: follow the line to a box, lift it, turn
// around, carry it back along the line and set it down.
type Demo struct {
	*env
}

func (a *Demo) Run(cancel types.CancelToken) types.ActionResult {
	return a.run(cancel, a.demo)
}

func (a *Demo) demo(cancel types.CancelToken) error {
	a.logger.Infof("Step 1/8: calibrating")
	left, right, err := a.calibrateSweep(cancel, a.cfg.DemoSweep, hardware.SpinLeft(a.cfg.DemoSpinSpeed))
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}

	a.logger.Infof("Step 2/8: finding edge")
	if err := a.findEdgeSpinning(cancel, right, hardware.SpinLeft(a.cfg.Speed)); err != nil {
		return err
	}
	if err := a.sleep(cancel, a.cfg.SettleDelay); err != nil {
		return err
	}

	a.logger.Infof("Step 3/8: following to the box")
	if err := a.followUntilStopLine(cancel, left, right); err != nil {
		return err
	}

	a.logger.Infof("Step 4/8: lifting")
	if err := a.lift.Up(cancel); err != nil {
		return fmt.Errorf("lift up: %w", err)
	}

	a.logger.Infof("Step 5/8: turning around")
	if err := a.turnOnLine(cancel, left, hardware.SpinRight(a.cfg.DemoSpinSpeed)); err != nil {
		return err
	}
	if err := a.sleep(cancel, a.cfg.SettleDelay); err != nil {
		return err
	}

	a.logger.Infof("Step 6/8: finding edge")
	if err := a.findEdgeSpinning(cancel, right, hardware.SpinLeft(a.cfg.Speed)); err != nil {
		return err
	}
	if err := a.sleep(cancel, a.cfg.SettleDelay); err != nil {
		return err
	}

	a.logger.Infof("Step 7/8: following back")
	if err := a.followUntilStopLine(cancel, left, right); err != nil {
		return err
	}

	a.logger.Infof("Step 8/8: lowering")
	if err := a.lift.Down(cancel); err != nil {
		return fmt.Errorf("lift down: %w", err)
	}
	return nil
}
