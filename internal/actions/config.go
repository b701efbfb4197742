package actions

import "time"

// Config tunes the hardware actions. Speeds are fractions of full motor speed.
type Config struct {
	Speed        float64       `yaml:"speed"`
	PollInterval time.Duration `yaml:"poll_interval"`

	Proportional          float64       `yaml:"proportional"`
	Derivative            float64       `yaml:"derivative"`
	Integral              float64       `yaml:"integral"` // 0 disables the integral term
	ResetIntegralOnTarget bool          `yaml:"reset_integral_on_target"`
	Acceleration          time.Duration `yaml:"acceleration"`

	CalibrateSweep        time.Duration `yaml:"calibrate_sweep"`
	MinCalibrationSamples int           `yaml:"min_calibration_samples"`
	MinContrast           uint8         `yaml:"min_contrast"`

	EdgeSweep     time.Duration `yaml:"edge_sweep"`
	EdgeTolerance float64       `yaml:"edge_tolerance"`
	MaxEdgeSweeps int           `yaml:"max_edge_sweeps"`

	// Used by edge and follow when no calibration has run yet
	DefaultCalibration Calibration `yaml:"default_calibration"`

	DemoSpinSpeed   float64       `yaml:"demo_spin_speed"`
	DemoSweep       time.Duration `yaml:"demo_sweep"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	LeaveLineDelay  time.Duration `yaml:"leave_line_delay"`
	DemoStepTimeout time.Duration `yaml:"demo_step_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Speed:                 0.1,
		PollInterval:          5 * time.Millisecond,
		Proportional:          0.001,
		Derivative:            0.0005,
		ResetIntegralOnTarget: true,
		Acceleration:          2 * time.Second,
		CalibrateSweep:        time.Second,
		MinCalibrationSamples: 10,
		MinContrast:           10,
		EdgeSweep:             2 * time.Second,
		EdgeTolerance:         2,
		MaxEdgeSweeps:         6,
		DefaultCalibration:    Calibration{Line: 200, Floor: 40},
		DemoSpinSpeed:         0.08,
		DemoSweep:             500 * time.Millisecond,
		SettleDelay:           200 * time.Millisecond,
		LeaveLineDelay:        time.Second,
		DemoStepTimeout:       30 * time.Second,
	}
}
