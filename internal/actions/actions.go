// Package actions implements the robot's hardware actions. Each action drives
// the motors until it completes or its cancel token fires, and always leaves
// the motors stopped when Run returns.
package actions

import (
	"errors"
	"fmt"
	"time"

	"logbot-service/internal/core"
	"logbot-service/internal/hardware"
	"logbot-service/internal/logger"
	"logbot-service/internal/types"
)

// errCancelled unwinds an action once its token fires.
var errCancelled = errors.New("cancelled")

// Set holds one instance of every hardware action, sharing the robot and the
// calibration memory.
type Set struct {
	Calibrate *Calibrate
	FindEdge  *FindEdge
	Follow    *Follow
	Demo      *Demo

	Memory *Memory
}

// NewSet wires all actions to the same robot.
func NewSet(bot *hardware.Logbot, cfg Config, l *logger.Logger) *Set {
	e := &env{
		vehicle: bot.Vehicle,
		sensors: bot.Sensors,
		lift:    bot.Lift,
		cfg:     cfg,
		memory:  &Memory{},
	}
	return &Set{
		Calibrate: &Calibrate{env: e.tagged(l, "calibrate")},
		FindEdge:  &FindEdge{env: e.tagged(l, "edge")},
		Follow:    &Follow{env: e.tagged(l, "follow")},
		Demo:      &Demo{env: e.tagged(l, "demo")},
		Memory:    e.memory,
	}
}

// ByKind returns the set keyed by the kind each action serves.
func (s *Set) ByKind() core.ActionSet {
	return core.ActionSet{
		types.ActionCalibrate: s.Calibrate,
		types.ActionFindEdge:  s.FindEdge,
		types.ActionFollow:    s.Follow,
		types.ActionDemo:      s.Demo,
	}
}

type env struct {
	vehicle hardware.Driver
	sensors hardware.SensorReader
	lift    hardware.Lifter
	cfg     Config
	memory  *Memory
	logger  *logger.Logger
}

func (e *env) tagged(l *logger.Logger, name string) *env {
	c := *e
	c.logger = l.WithTag("action:" + name)
	return &c
}

// run executes fn and converts its error into the terminal result. The
// motors are stopped before returning in every case.
func (e *env) run(cancel types.CancelToken, fn func(types.CancelToken) error) types.ActionResult {
	err := fn(cancel)

	if stopErr := e.vehicle.Stop(); stopErr != nil {
		e.logger.Errorf("Failed to stop motors: %v", stopErr)
		if err == nil {
			err = fmt.Errorf("failed to stop motors: %w", stopErr)
		}
	}

	switch {
	case errors.Is(err, errCancelled), errors.Is(err, hardware.ErrLiftInterrupted):
		e.logger.Infof("Cancelled")
		return types.Cancelled()
	case err != nil:
		e.logger.Warnf("Failed: %v", err)
		return types.Failed(err)
	default:
		e.logger.Infof("Completed")
		return types.Succeeded()
	}
}

// wait sleeps one poll interval and returns errCancelled if the token fired.
func (e *env) wait(cancel types.CancelToken) error {
	if !cancel.Sleep(e.cfg.PollInterval) {
		return errCancelled
	}
	return nil
}

func (e *env) sleep(cancel types.CancelToken, d time.Duration) error {
	if !cancel.Sleep(d) {
		return errCancelled
	}
	return nil
}

// calibration returns the stored calibration or the configured default.
func (e *env) calibration() (left, right Calibration) {
	left, right, ok := e.memory.Load()
	if !ok {
		e.logger.Warnf("No calibration yet, using default line=%d floor=%d",
			e.cfg.DefaultCalibration.Line, e.cfg.DefaultCalibration.Floor)
		return e.cfg.DefaultCalibration, e.cfg.DefaultCalibration
	}
	return left, right
}

func (e *env) read(s hardware.Sensor) (uint8, error) {
	v, err := e.sensors.Read(s)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s sensor: %w", s, err)
	}
	return v, nil
}
