package hardware

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// SensorController reads the line sensors through a PCF8591 quad 8-bit ADC
// on the I2C bus.
type SensorController struct {
	mu  sync.Mutex
	fd  int
	bus string
}

func OpenSensorController(bus string, addr int) (*SensorController, error) {
	fd, err := unix.Open(bus, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", bus, err)
	}
	if err := unix.IoctlSetInt(fd, i2cSlaveIoctl, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to select I2C address 0x%02x: %w", addr, err)
	}
	return &SensorController{fd: fd, bus: bus}, nil
}

// Read selects the channel, discards the stale conversion and returns the
// fresh one.
func (s *SensorController) Read(sensor Sensor) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < sensorReadAttempts; attempt++ {
		value, err := s.readOnce(sensor)
		if err == nil {
			return value, nil
		}
		lastErr = err
		time.Sleep(sensorRetryInterval)
	}
	return 0, fmt.Errorf("failed reading %s sensor on %s: %w", sensor, s.bus, lastErr)
}

func (s *SensorController) readOnce(sensor Sensor) (uint8, error) {
	control := []byte{byte(pcf8591AutoIncrOff | int(sensor))}
	if _, err := unix.Write(s.fd, control); err != nil {
		return 0, err
	}

	buf := make([]byte, 1)
	// Dummy read triggers the conversion
	if _, err := unix.Read(s.fd, buf); err != nil {
		return 0, err
	}
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, fmt.Errorf("short read: %d bytes", n)
	}
	return buf[0], nil
}

func (s *SensorController) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return unix.Close(s.fd)
}
