package actions

import (
	"errors"
	"fmt"
	"math"
	"time"

	"logbot-service/internal/hardware"
	"logbot-service/internal/types"
)

var (
	ErrEdgeNotFound = errors.New("line edge not found")
	ErrStepTimeout  = errors.New("step timed out")
)

// calibrateSweep oscillates in place and records both sensors for one full
// sweep. Recording starts at the first direction change so a single
// contiguous pass over the line is captured.
func (e *env) calibrateSweep(cancel types.CancelToken, sweep time.Duration, spin hardware.SpinDirection) (left, right Calibration, err error) {
	osc := NewOscillation(sweep, spin, 2)
	if err := osc.Start(e.vehicle); err != nil {
		return left, right, fmt.Errorf("failed to start oscillation: %w", err)
	}

	for !osc.Due() {
		if err := e.wait(cancel); err != nil {
			return left, right, err
		}
	}
	if _, err := osc.Step(e.vehicle); err != nil {
		return left, right, fmt.Errorf("failed to reverse oscillation: %w", err)
	}

	var leftRec, rightRec Recorder
	for !osc.Due() {
		l, err := e.read(hardware.SensorLeft)
		if err != nil {
			return left, right, err
		}
		r, err := e.read(hardware.SensorRight)
		if err != nil {
			return left, right, err
		}
		leftRec.Log(l)
		rightRec.Log(r)

		if err := e.wait(cancel); err != nil {
			return left, right, err
		}
	}

	if err := e.vehicle.Stop(); err != nil {
		return left, right, fmt.Errorf("failed to stop after sweep: %w", err)
	}

	e.logger.Debugf("Recorded %d samples per sensor", leftRec.Len())
	if left, err = leftRec.Calibrate(e.cfg.MinCalibrationSamples, e.cfg.MinContrast); err != nil {
		return left, right, fmt.Errorf("left sensor: %w", err)
	}
	if right, err = rightRec.Calibrate(e.cfg.MinCalibrationSamples, e.cfg.MinContrast); err != nil {
		return left, right, fmt.Errorf("right sensor: %w", err)
	}

	e.memory.Store(left, right)
	e.logger.Infof("Calibrated left line=%d floor=%d, right line=%d floor=%d",
		left.Line, left.Floor, right.Line, right.Floor)
	return left, right, nil
}

// findEdgeOscillating sweeps wider and wider until the right sensor sees the
// line value.
func (e *env) findEdgeOscillating(cancel types.CancelToken, cal Calibration) error {
	osc := NewOscillation(e.cfg.EdgeSweep, hardware.SpinLeft(e.cfg.Speed), 2)
	if err := osc.Start(e.vehicle); err != nil {
		return fmt.Errorf("failed to start oscillation: %w", err)
	}

	for {
		v, err := e.read(hardware.SensorRight)
		if err != nil {
			return err
		}
		if math.Abs(float64(v)-float64(cal.Line)) < e.cfg.EdgeTolerance {
			e.logger.Infof("Edge found after %d direction changes (reading %d)", osc.Changes(), v)
			return e.vehicle.Stop()
		}

		if osc.Due() {
			if e.cfg.MaxEdgeSweeps > 0 && osc.Changes() >= e.cfg.MaxEdgeSweeps {
				return fmt.Errorf("%w after %d sweeps", ErrEdgeNotFound, osc.Changes())
			}
			if _, err := osc.Step(e.vehicle); err != nil {
				return fmt.Errorf("failed to reverse oscillation: %w", err)
			}
		}

		if err := e.wait(cancel); err != nil {
			return err
		}
	}
}

// findEdgeSpinning spins one way until the right sensor reaches the line.
func (e *env) findEdgeSpinning(cancel types.CancelToken, cal Calibration, spin hardware.SpinDirection) error {
	if err := e.vehicle.Spin(spin); err != nil {
		return fmt.Errorf("failed to spin: %w", err)
	}
	deadline := e.deadline()
	target := satSub(cal.Line, 1)
	for {
		v, err := e.read(hardware.SensorRight)
		if err != nil {
			return err
		}
		if v >= target {
			return e.vehicle.Stop()
		}
		if err := e.checkDeadline(deadline, "find edge"); err != nil {
			return err
		}
		if err := e.wait(cancel); err != nil {
			return err
		}
	}
}

// followUntilStopLine follows the line with the left sensor until both
// sensors are over the line at once.
func (e *env) followUntilStopLine(cancel types.CancelToken, left, right Calibration) error {
	follower := NewLineFollower(e.cfg, left)
	accel := NewAcceleration(e.cfg.Acceleration)
	stopLeft, stopRight := satSub(left.Line, 1), satSub(right.Line, 1)
	deadline := e.deadline()

	for {
		l, err := e.read(hardware.SensorLeft)
		if err != nil {
			return err
		}
		r, err := e.read(hardware.SensorRight)
		if err != nil {
			return err
		}
		if l > stopLeft && r > stopRight {
			return e.vehicle.Stop()
		}

		if err := e.vehicle.Drive(accel.Apply(follower.Step(l))); err != nil {
			return fmt.Errorf("failed to drive: %w", err)
		}
		if err := e.checkDeadline(deadline, "follow to stop line"); err != nil {
			return err
		}
		if err := e.wait(cancel); err != nil {
			return err
		}
	}
}

// turnOnLine spins off the line and keeps spinning until the left sensor
// finds it again, which is a half turn in most layouts.
func (e *env) turnOnLine(cancel types.CancelToken, left Calibration, spin hardware.SpinDirection) error {
	if err := e.vehicle.Spin(spin); err != nil {
		return fmt.Errorf("failed to spin: %w", err)
	}
	if err := e.sleep(cancel, e.cfg.LeaveLineDelay); err != nil {
		return err
	}

	deadline := e.deadline()
	target := satSub(left.Line, 3)
	for {
		v, err := e.read(hardware.SensorLeft)
		if err != nil {
			return err
		}
		if v >= target {
			return e.vehicle.Stop()
		}
		if err := e.checkDeadline(deadline, "turn on line"); err != nil {
			return err
		}
		if err := e.wait(cancel); err != nil {
			return err
		}
	}
}

func (e *env) deadline() time.Time {
	if e.cfg.DemoStepTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(e.cfg.DemoStepTimeout)
}

func (e *env) checkDeadline(deadline time.Time, step string) error {
	if !deadline.IsZero() && time.Now().After(deadline) {
		return fmt.Errorf("%s: %w", step, ErrStepTimeout)
	}
	return nil
}

func satSub(v, d uint8) uint8 {
	if v < d {
		return 0
	}
	return v - d
}
