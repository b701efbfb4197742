package actions

import (
	"time"

	"logbot-service/internal/hardware"
)

// Oscillation spins the robot back and forth, multiplying the sweep time on
// every direction change so it covers a wider arc each time.
type Oscillation struct {
	sweep      time.Duration
	direction  hardware.SpinDirection
	multiplier int
	since      time.Time
	changes    int
}

func NewOscillation(sweep time.Duration, direction hardware.SpinDirection, multiplier int) *Oscillation {
	if multiplier < 1 {
		multiplier = 1
	}
	return &Oscillation{sweep: sweep, direction: direction, multiplier: multiplier}
}

func (o *Oscillation) Start(d hardware.Driver) error {
	o.since = time.Now()
	return d.Spin(o.direction)
}

// Due reports whether the current sweep has run its time.
func (o *Oscillation) Due() bool {
	return time.Since(o.since) >= o.sweep
}

// Step reverses direction if the sweep is due and reports whether it did.
func (o *Oscillation) Step(d hardware.Driver) (bool, error) {
	if !o.Due() {
		return false, nil
	}
	o.direction = o.direction.Reverse()
	o.sweep *= time.Duration(o.multiplier)
	o.since = time.Now()
	o.changes++
	return true, d.Spin(o.direction)
}

// Changes counts direction changes so far.
func (o *Oscillation) Changes() int {
	return o.changes
}
