package hardware

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"logbot-service/internal/types"
)

// ErrLiftInterrupted is returned when a lift movement is cancelled before the
// end stop is reached.
var ErrLiftInterrupted = errors.New("lift movement interrupted")

// Lift drives the box lift motor. The end stop switches pull low when hit.
type Lift struct {
	power     *gpiocdev.Line
	direction *gpiocdev.Line
	up        *gpiocdev.Line
	down      *gpiocdev.Line
}

func OpenLift(chip string, pins LiftPins) (*Lift, error) {
	l := &Lift{}
	var err error

	if l.power, err = gpiocdev.RequestLine(chip, pins.Power,
		gpiocdev.AsOutput(0), gpiocdev.WithConsumer("logbot-service")); err != nil {
		return nil, fmt.Errorf("failed to request lift power line %d: %w", pins.Power, err)
	}
	if l.direction, err = gpiocdev.RequestLine(chip, pins.Direction,
		gpiocdev.AsOutput(0), gpiocdev.WithConsumer("logbot-service")); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to request lift direction line %d: %w", pins.Direction, err)
	}
	if l.up, err = gpiocdev.RequestLine(chip, pins.Up,
		gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithConsumer("logbot-service")); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to request lift up switch %d: %w", pins.Up, err)
	}
	if l.down, err = gpiocdev.RequestLine(chip, pins.Down,
		gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithConsumer("logbot-service")); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to request lift down switch %d: %w", pins.Down, err)
	}
	return l, nil
}

func (l *Lift) Up(cancel types.CancelToken) error {
	return l.move(0, l.up, cancel)
}

func (l *Lift) Down(cancel types.CancelToken) error {
	return l.move(1, l.down, cancel)
}

func (l *Lift) move(direction int, endStop *gpiocdev.Line, cancel types.CancelToken) error {
	if err := l.direction.SetValue(direction); err != nil {
		return fmt.Errorf("failed to set lift direction: %w", err)
	}

	reached, err := atEndStop(endStop)
	if err != nil {
		return err
	}
	if reached {
		return nil
	}

	if err := l.power.SetValue(1); err != nil {
		return fmt.Errorf("failed to power lift: %w", err)
	}
	// The motor is always switched off again, whatever ends the wait
	defer l.power.SetValue(0)

	for {
		if reached, err := atEndStop(endStop); err != nil {
			return err
		} else if reached {
			return nil
		}
		if !cancel.Sleep(liftPollInterval) {
			return ErrLiftInterrupted
		}
	}
}

func atEndStop(line *gpiocdev.Line) (bool, error) {
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read lift end stop: %w", err)
	}
	return v == 0, nil
}

func (l *Lift) Close() error {
	var errs []error
	if l.power != nil {
		l.power.SetValue(0)
	}
	for _, line := range []*gpiocdev.Line{l.power, l.direction, l.up, l.down} {
		if line != nil {
			errs = append(errs, line.Close())
		}
	}
	return errors.Join(errs...)
}
