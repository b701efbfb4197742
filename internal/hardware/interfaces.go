package hardware

import "logbot-service/internal/types"

// VehicleDirection holds a signed speed per side in [-1, 1], positive is forward.
type VehicleDirection struct {
	Left  float64
	Right float64
}

// Forward drives both sides at the same speed.
func Forward(speed float64) VehicleDirection {
	return VehicleDirection{Left: speed, Right: speed}
}

// Scale multiplies both sides by f.
func (d VehicleDirection) Scale(f float64) VehicleDirection {
	return VehicleDirection{Left: d.Left * f, Right: d.Right * f}
}

// IsStop reports whether neither side moves.
func (d VehicleDirection) IsStop() bool {
	return d.Left == 0 && d.Right == 0
}

// SpinDirection turns the robot in place.
type SpinDirection struct {
	Clockwise bool
	Speed     float64
}

func SpinLeft(speed float64) SpinDirection  { return SpinDirection{Clockwise: false, Speed: speed} }
func SpinRight(speed float64) SpinDirection { return SpinDirection{Clockwise: true, Speed: speed} }

// Reverse flips the spin direction keeping the speed.
func (s SpinDirection) Reverse() SpinDirection {
	return SpinDirection{Clockwise: !s.Clockwise, Speed: s.Speed}
}

// Vehicle converts the spin into opposite per-side speeds.
func (s SpinDirection) Vehicle() VehicleDirection {
	if s.Clockwise {
		return VehicleDirection{Left: s.Speed, Right: -s.Speed}
	}
	return VehicleDirection{Left: -s.Speed, Right: s.Speed}
}

// Driver moves the robot.
type Driver interface {
	Drive(d VehicleDirection) error
	Spin(s SpinDirection) error
	Stop() error
}

// SensorReader reads the line sensors.
type SensorReader interface {
	Read(s Sensor) (uint8, error)
}

// Lifter moves the box lift between its end stops. Both calls block until
// the end stop is reached or the token is cancelled.
type Lifter interface {
	Up(cancel types.CancelToken) error
	Down(cancel types.CancelToken) error
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
