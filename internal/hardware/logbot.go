package hardware

import (
	"errors"
	"fmt"
	"io"

	"logbot-service/internal/logger"
)

// Logbot bundles the robot's drive, sensors and lift.
type Logbot struct {
	Vehicle Driver
	Sensors SensorReader
	Lift    Lifter

	closers []io.Closer
	logger  *logger.Logger
}

// Open initializes the real hardware. Devices opened before a failure are
// released again.
func Open(cfg Config, l *logger.Logger) (*Logbot, error) {
	l = l.WithTag("hardware")
	b := &Logbot{logger: l}

	l.Infof("Opening sensors on %s (address 0x%02x)", cfg.I2CBus, cfg.SensorAddress)
	sensors, err := OpenSensorController(cfg.I2CBus, cfg.SensorAddress)
	if err != nil {
		return nil, err
	}
	b.Sensors = sensors
	b.closers = append(b.closers, sensors)

	left, err := openMotor(cfg, cfg.LeftPwmChannel, true)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("left motor: %w", err)
	}
	right, err := openMotor(cfg, cfg.RightPwmChannel, false)
	if err != nil {
		left.Close()
		b.Close()
		return nil, fmt.Errorf("right motor: %w", err)
	}
	vehicle := NewVehicle(left, right)
	b.Vehicle = vehicle
	b.closers = append(b.closers, vehicle)
	l.Infof("Configured motors: pwmchip%d left=%d right=%d", cfg.PwmChip, cfg.LeftPwmChannel, cfg.RightPwmChannel)

	lift, err := OpenLift(cfg.GpioChip, cfg.Lift)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Lift = lift
	b.closers = append(b.closers, lift)
	l.Infof("Configured lift on %s: power=%d direction=%d up=%d down=%d",
		cfg.GpioChip, cfg.Lift.Power, cfg.Lift.Direction, cfg.Lift.Up, cfg.Lift.Down)

	return b, nil
}

func openMotor(cfg Config, channel int, inverted bool) (*Motor, error) {
	pwm, err := OpenPwmChannel(PwmSysfsRoot, cfg.PwmChip, channel)
	if err != nil {
		return nil, err
	}
	return NewMotor(pwm, cfg.Motor, inverted)
}

// NewSimulated returns a Logbot backed by a single Simulator.
func NewSimulated(l *logger.Logger) (*Logbot, *Simulator) {
	sim := NewSimulator()
	l.WithTag("hardware").Warnf("Running with simulated hardware")
	return &Logbot{
		Vehicle: sim,
		Sensors: sim,
		Lift:    sim,
		logger:  l.WithTag("hardware"),
	}, sim
}

// Close stops the motors and releases every device, last opened first.
func (b *Logbot) Close() error {
	var errs []error
	if b.Vehicle != nil {
		if err := b.Vehicle.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
