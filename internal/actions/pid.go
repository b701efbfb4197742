package actions

import (
	"math"
	"time"

	"logbot-service/internal/hardware"
)

// LineFollower steers along the edge of the line using one sensor.
type LineFollower struct {
	cfg         Config
	calibration Calibration

	lastError  float64
	derivative float64
	integral   float64
}

func NewLineFollower(cfg Config, calibration Calibration) *LineFollower {
	return &LineFollower{cfg: cfg, calibration: calibration}
}

func (f *LineFollower) Reset() {
	f.lastError, f.derivative, f.integral = 0, 0, 0
}

// Step takes a new sensor reading and returns the motor output.
func (f *LineFollower) Step(reading uint8) hardware.VehicleDirection {
	err := float64(reading) - f.calibration.Average()

	f.derivative = err - f.lastError
	f.lastError = err

	// A line forming a circle would otherwise let the integral creep up
	// until it overpowers the other terms
	if f.cfg.ResetIntegralOnTarget && math.Abs(err) < 1 {
		f.integral = 0
	} else {
		f.integral += err
	}

	control := f.cfg.Proportional*err + f.cfg.Derivative*f.derivative
	if f.cfg.Integral != 0 {
		control += f.cfg.Integral * f.integral
	}

	// Keep the full turn strength by slowing down instead of saturating
	speed := f.cfg.Speed
	if undershoot := speed + control - 1; undershoot > 0 {
		speed = math.Max(speed-undershoot, 0)
	}

	return hardware.VehicleDirection{
		Left:  clamp(speed-control, -1, 1),
		Right: clamp(speed+control, -1, 1),
	}
}

// Acceleration ramps output linearly from standstill to full over a duration.
type Acceleration struct {
	duration time.Duration
	started  time.Time
	running  bool
}

func NewAcceleration(d time.Duration) *Acceleration {
	return &Acceleration{duration: d}
}

func (a *Acceleration) Apply(d hardware.VehicleDirection) hardware.VehicleDirection {
	if d.IsStop() {
		a.running = false
		return d
	}
	if !a.running {
		a.running = true
		a.started = time.Now()
	}
	if a.duration <= 0 {
		return d
	}
	return d.Scale(clamp(float64(time.Since(a.started))/float64(a.duration), 0, 1))
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
