package hardware

import "time"

const (
	// PCF8591 ADC/DAC on the Raspberry Pi I2C bus
	DefaultI2CBus       = "/dev/i2c-1"
	DefaultSensorAddr   = 0x48
	pcf8591AutoIncrOff  = 0x40
	i2cSlaveIoctl       = 0x0703
	sensorReadAttempts  = 3
	sensorRetryInterval = time.Millisecond

	DefaultGpioChip = "gpiochip0"
	PwmSysfsRoot    = "/sys/class/pwm"

	liftPollInterval = time.Millisecond
)

// Sensor identifies an ADC input channel.
type Sensor int

const (
	SensorLeft Sensor = iota
	SensorRight
)

func (s Sensor) String() string {
	if s == SensorRight {
		return "right"
	}
	return "left"
}

// LiftPins are BCM offsets on the GPIO chip.
type LiftPins struct {
	Power     int `yaml:"power"`
	Direction int `yaml:"direction"`
	Up        int `yaml:"up"`
	Down      int `yaml:"down"`
}

var DefaultLiftPins = LiftPins{
	Power:     23,
	Direction: 24,
	Up:        27,
	Down:      22,
}

// PwmConfig describes the servo-style pulse train of a continuous rotation motor.
type PwmConfig struct {
	Period          time.Duration `yaml:"period"`
	StopPulseWidth  time.Duration `yaml:"stop_pulse_width"`
	PulseWidthRange time.Duration `yaml:"pulse_width_range"`
}

var DefaultPwmConfig = PwmConfig{
	Period:          20 * time.Millisecond,
	StopPulseWidth:  1500 * time.Microsecond,
	PulseWidthRange: 500 * time.Microsecond,
}

// Config selects the devices the robot is wired to.
type Config struct {
	I2CBus          string    `yaml:"i2c_bus"`
	SensorAddress   int       `yaml:"sensor_address"`
	PwmChip         int       `yaml:"pwm_chip"`
	RightPwmChannel int       `yaml:"right_pwm_channel"`
	LeftPwmChannel  int       `yaml:"left_pwm_channel"`
	Motor           PwmConfig `yaml:"motor"`
	GpioChip        string    `yaml:"gpio_chip"`
	Lift            LiftPins  `yaml:"lift"`
}

// DefaultConfig matches the robot wiring: hardware PWM0 (GPIO12) drives the
// right motor and PWM1 (GPIO13) the left one.
func DefaultConfig() Config {
	return Config{
		I2CBus:          DefaultI2CBus,
		SensorAddress:   DefaultSensorAddr,
		PwmChip:         0,
		RightPwmChannel: 0,
		LeftPwmChannel:  1,
		Motor:           DefaultPwmConfig,
		GpioChip:        DefaultGpioChip,
		Lift:            DefaultLiftPins,
	}
}
