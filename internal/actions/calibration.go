package actions

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// Calibration is the sensor reading over the line and over the floor.
type Calibration struct {
	Line  uint8 `yaml:"line" json:"line"`
	Floor uint8 `yaml:"floor" json:"floor"`
}

// Average is the reading right on the line edge, the follow target.
func (c Calibration) Average() float64 {
	return (float64(c.Line) + float64(c.Floor)) / 2
}

var ErrNotEnoughSamples = errors.New("not enough calibration samples")

// Recorder collects readings of one sensor during a calibration sweep.
type Recorder struct {
	samples []float64
}

func (r *Recorder) Log(v uint8) {
	r.samples = append(r.samples, float64(v))
}

func (r *Recorder) Len() int {
	return len(r.samples)
}

// Calibrate splits the samples into two clusters; the brighter one is the line.
func (r *Recorder) Calibrate(minSamples int, minContrast uint8) (Calibration, error) {
	if len(r.samples) < minSamples || len(r.samples) < 2 {
		return Calibration{}, fmt.Errorf("%w: %d", ErrNotEnoughSamples, len(r.samples))
	}
	centroids := kmeans2(r.samples, 100)
	floor, line := math.Min(centroids[0], centroids[1]), math.Max(centroids[0], centroids[1])
	c := Calibration{Line: uint8(math.Round(line)), Floor: uint8(math.Round(floor))}
	if c.Line-c.Floor < minContrast {
		return c, fmt.Errorf("no contrast between line (%d) and floor (%d)", c.Line, c.Floor)
	}
	return c, nil
}

// kmeans2 clusters one-dimensional values into two groups, seeded with the
// extremes so the result is deterministic.
func kmeans2(values []float64, maxIters int) [2]float64 {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	centroids := [2]float64{lo, hi}

	for iter := 0; iter < maxIters; iter++ {
		var sum [2]float64
		var count [2]int
		for _, v := range values {
			i := 0
			if math.Abs(v-centroids[1]) < math.Abs(v-centroids[0]) {
				i = 1
			}
			sum[i] += v
			count[i]++
		}
		next := centroids
		for i := range next {
			if count[i] > 0 {
				next[i] = sum[i] / float64(count[i])
			}
		}
		if next == centroids {
			break
		}
		centroids = next
	}
	return centroids
}

// Memory keeps the most recent calibration for later actions.
type Memory struct {
	mu         sync.RWMutex
	left       Calibration
	right      Calibration
	calibrated bool
}

func (m *Memory) Store(left, right Calibration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.left, m.right, m.calibrated = left, right, true
}

// Load returns the stored calibration, or ok=false if none has run.
func (m *Memory) Load() (left, right Calibration, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.left, m.right, m.calibrated
}
