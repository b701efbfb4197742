package hardware

import (
	"math"
	"sync"
	"time"

	"logbot-service/internal/types"
)

// SensorFunc produces a simulated reading for a sensor.
type SensorFunc func(s Sensor, since time.Duration) uint8

// Simulator stands in for the motors, sensors and lift when the service runs
// without hardware, and in tests.
type Simulator struct {
	mu       sync.Mutex
	start    time.Time
	state    VehicleDirection
	drives   int
	stops    int
	liftUp   bool
	sensors  SensorFunc
	failRead error
	liftTime time.Duration
}

// NewSimulator creates a simulator whose sensors sweep between floor and line
// values as if the robot kept passing over a line.
func NewSimulator() *Simulator {
	return &Simulator{
		start:    time.Now(),
		sensors:  SweepingSensors(40, 200, 700*time.Millisecond),
		liftTime: 50 * time.Millisecond,
	}
}

// SweepingSensors returns a sine wave between floor and line; the right
// sensor lags the left one by a quarter period.
func SweepingSensors(floor, line uint8, period time.Duration) SensorFunc {
	return func(s Sensor, since time.Duration) uint8 {
		phase := 2 * math.Pi * since.Seconds() / period.Seconds()
		if s == SensorRight {
			phase -= math.Pi / 2
		}
		mid := (float64(line) + float64(floor)) / 2
		amp := (float64(line) - float64(floor)) / 2
		return uint8(math.Round(mid + amp*math.Sin(phase)))
	}
}

// ConstantSensors always reads the given values.
func ConstantSensors(left, right uint8) SensorFunc {
	return func(s Sensor, _ time.Duration) uint8 {
		if s == SensorRight {
			return right
		}
		return left
	}
}

func (s *Simulator) SetSensors(f SensorFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensors = f
	s.start = time.Now()
}

// FailReads makes every sensor read return err; nil restores normal reads.
func (s *Simulator) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRead = err
}

func (s *Simulator) Drive(d VehicleDirection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = VehicleDirection{Left: clamp(d.Left, -1, 1), Right: clamp(d.Right, -1, 1)}
	s.drives++
	return nil
}

func (s *Simulator) Spin(d SpinDirection) error {
	return s.Drive(d.Vehicle())
}

func (s *Simulator) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = VehicleDirection{}
	s.stops++
	return nil
}

func (s *Simulator) Read(sensor Sensor) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRead != nil {
		return 0, s.failRead
	}
	return s.sensors(sensor, time.Since(s.start)), nil
}

func (s *Simulator) Up(cancel types.CancelToken) error {
	return s.moveLift(true, cancel)
}

func (s *Simulator) Down(cancel types.CancelToken) error {
	return s.moveLift(false, cancel)
}

func (s *Simulator) moveLift(up bool, cancel types.CancelToken) error {
	s.mu.Lock()
	already := s.liftUp == up
	d := s.liftTime
	s.mu.Unlock()
	if already {
		return nil
	}
	if !cancel.Sleep(d) {
		return ErrLiftInterrupted
	}
	s.mu.Lock()
	s.liftUp = up
	s.mu.Unlock()
	return nil
}

// State returns the current simulated motor output.
func (s *Simulator) State() VehicleDirection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Moving reports whether any motor is driven.
func (s *Simulator) Moving() bool {
	return !s.State().IsStop()
}

func (s *Simulator) Counts() (drives, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drives, s.stops
}

func (s *Simulator) LiftIsUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liftUp
}
