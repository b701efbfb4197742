package hardware

import (
	"fmt"
	"sync"
	"time"
)

// pulseOutput is the part of PwmChannel a Motor needs.
type pulseOutput interface {
	SetPeriod(d time.Duration) error
	SetPulseWidth(d time.Duration) error
	Enable(on bool) error
	Close() error
}

// Motor is a continuous rotation motor on a hardware PWM channel. Inverted
// motors are mounted mirrored, so forward lowers the pulse width.
type Motor struct {
	pwm      pulseOutput
	config   PwmConfig
	inverted bool
}

// NewMotor arms the motor by sending the stop pulse. The ESC needs a moment
// before it accepts speed pulses.
func NewMotor(pwm pulseOutput, config PwmConfig, inverted bool) (*Motor, error) {
	if err := pwm.SetPeriod(config.Period); err != nil {
		return nil, fmt.Errorf("failed to set PWM period: %w", err)
	}
	if err := pwm.SetPulseWidth(config.StopPulseWidth); err != nil {
		return nil, fmt.Errorf("failed to set stop pulse: %w", err)
	}
	if err := pwm.Enable(true); err != nil {
		return nil, fmt.Errorf("failed to enable PWM: %w", err)
	}
	return &Motor{pwm: pwm, config: config, inverted: inverted}, nil
}

// PulseWidth converts a signed speed into the pulse width sent to the motor.
func (m *Motor) PulseWidth(speed float64) time.Duration {
	speed = clamp(speed, -1, 1)
	if m.inverted {
		speed = -speed
	}
	offset := time.Duration(float64(m.config.PulseWidthRange) * speed)
	return m.config.StopPulseWidth + offset
}

func (m *Motor) Set(speed float64) error {
	return m.pwm.SetPulseWidth(m.PulseWidth(speed))
}

func (m *Motor) Stop() error {
	return m.pwm.SetPulseWidth(m.config.StopPulseWidth)
}

func (m *Motor) Close() error {
	if err := m.Stop(); err != nil {
		return err
	}
	return m.pwm.Close()
}

// Vehicle pairs the two drive motors.
type Vehicle struct {
	mu    sync.Mutex
	left  *Motor
	right *Motor
	state VehicleDirection
}

func NewVehicle(left, right *Motor) *Vehicle {
	return &Vehicle{left: left, right: right}
}

func (v *Vehicle) Drive(d VehicleDirection) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.left.Set(d.Left); err != nil {
		return fmt.Errorf("left motor: %w", err)
	}
	if err := v.right.Set(d.Right); err != nil {
		return fmt.Errorf("right motor: %w", err)
	}
	v.state = d
	return nil
}

func (v *Vehicle) Spin(s SpinDirection) error {
	return v.Drive(s.Vehicle())
}

// Stop tries both motors even if the first one fails.
func (v *Vehicle) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	errLeft := v.left.Stop()
	errRight := v.right.Stop()
	v.state = VehicleDirection{}
	if errLeft != nil {
		return fmt.Errorf("left motor: %w", errLeft)
	}
	if errRight != nil {
		return fmt.Errorf("right motor: %w", errRight)
	}
	return nil
}

// State returns the last direction sent to the motors.
func (v *Vehicle) State() VehicleDirection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Vehicle) Close() error {
	errLeft := v.left.Close()
	errRight := v.right.Close()
	if errLeft != nil {
		return errLeft
	}
	return errRight
}
