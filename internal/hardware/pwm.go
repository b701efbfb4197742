package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// PwmChannel drives one hardware PWM output through the kernel sysfs interface.
type PwmChannel struct {
	chipDir string
	dir     string
	channel int
}

// OpenPwmChannel exports the channel if needed. root is normally PwmSysfsRoot.
func OpenPwmChannel(root string, chip, channel int) (*PwmChannel, error) {
	chipDir := filepath.Join(root, fmt.Sprintf("pwmchip%d", chip))
	if _, err := os.Stat(chipDir); err != nil {
		return nil, fmt.Errorf("PWM chip %d not found: %w", chip, err)
	}

	p := &PwmChannel{
		chipDir: chipDir,
		dir:     filepath.Join(chipDir, fmt.Sprintf("pwm%d", channel)),
		channel: channel,
	}

	if _, err := os.Stat(p.dir); os.IsNotExist(err) {
		if err := writeSysfs(filepath.Join(chipDir, "export"), strconv.Itoa(channel)); err != nil {
			return nil, fmt.Errorf("failed to export PWM channel %d: %w", channel, err)
		}
		// udev needs a moment to create the channel directory
		for i := 0; i < 20; i++ {
			if _, err := os.Stat(p.dir); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	return p, nil
}

func (p *PwmChannel) SetPeriod(d time.Duration) error {
	return writeSysfs(filepath.Join(p.dir, "period"), strconv.FormatInt(d.Nanoseconds(), 10))
}

func (p *PwmChannel) SetPulseWidth(d time.Duration) error {
	return writeSysfs(filepath.Join(p.dir, "duty_cycle"), strconv.FormatInt(d.Nanoseconds(), 10))
}

func (p *PwmChannel) Enable(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return writeSysfs(filepath.Join(p.dir, "enable"), v)
}

// Close disables and unexports the channel.
func (p *PwmChannel) Close() error {
	if err := p.Enable(false); err != nil {
		return err
	}
	return writeSysfs(filepath.Join(p.chipDir, "unexport"), strconv.Itoa(p.channel))
}

func writeSysfs(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return fmt.Errorf("failed writing %s: %w", path, err)
	}
	return f.Close()
}
