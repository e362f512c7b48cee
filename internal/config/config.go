package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"mtech-gpio/internal/gpio"
)

type Config struct {
	Chip ChipConfig `yaml:"chip"`
	// Numbering is "bcm" (default) or "board".
	Numbering string      `yaml:"numbering"`
	Pins      []PinConfig `yaml:"pins"`
	PWM       []PWMConfig `yaml:"pwm"`
	Demo      DemoConfig  `yaml:"demo"`
	Log       LogConfig   `yaml:"log"`

	Scheme gpio.Scheme `yaml:"-"`
}

type ChipConfig struct {
	// Index selects /dev/gpiochip<Index> when Path is empty.
	Index    int    `yaml:"index"`
	Path     string `yaml:"path"`
	Consumer string `yaml:"consumer"`
}

type PinConfig struct {
	Pin       int    `yaml:"pin"`
	Direction string `yaml:"direction"`
	Pull      string `yaml:"pull"`

	Dir      gpio.Direction `yaml:"-"`
	PullMode gpio.Pull      `yaml:"-"`
}

type PWMConfig struct {
	Pin         int     `yaml:"pin"`
	FrequencyHz float64 `yaml:"frequency_hz"`
	DutyPercent float64 `yaml:"duty_percent"`
}

type DemoConfig struct {
	// Mode is one of blink, pwm, sweep, read.
	Mode string `yaml:"mode"`
	// Duration bounds the demo; zero runs until interrupted.
	Duration time.Duration `yaml:"duration"`
	Interval time.Duration `yaml:"interval"`
	// Step is the duty change per interval in sweep mode, in percent.
	Step float64 `yaml:"step"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var demoModes = map[string]bool{"blink": true, "pwm": true, "sweep": true, "read": true}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.Chip.Index < 0 {
		return fmt.Errorf("chip.index must be >= 0")
	}
	if cfg.Chip.Consumer == "" {
		cfg.Chip.Consumer = "mtech-gpio"
	}

	if strings.TrimSpace(cfg.Numbering) == "" {
		cfg.Numbering = "bcm"
	}
	scheme, err := gpio.ParseScheme(cfg.Numbering)
	if err != nil {
		return fmt.Errorf("numbering must be 'bcm' or 'board', got %q", cfg.Numbering)
	}
	cfg.Scheme = scheme

	seen := make(map[int]string)
	for i := range cfg.Pins {
		p := &cfg.Pins[i]
		if _, err := gpio.MapPin(p.Pin, scheme); err != nil {
			return fmt.Errorf("pins[%d].pin: %w", i, err)
		}
		if prev, dup := seen[p.Pin]; dup {
			return fmt.Errorf("pins[%d].pin %d already configured as %s", i, p.Pin, prev)
		}
		dir, err := gpio.ParseDirection(p.Direction)
		if err != nil {
			return fmt.Errorf("pins[%d].direction must be 'in' or 'out', got %q", i, p.Direction)
		}
		pull, err := gpio.ParsePull(p.Pull)
		if err != nil {
			return fmt.Errorf("pins[%d].pull must be 'none', 'down' or 'up', got %q", i, p.Pull)
		}
		if dir == gpio.Output && pull != gpio.PullNone {
			return fmt.Errorf("pins[%d].pull is only valid for inputs", i)
		}
		p.Dir = dir
		p.PullMode = pull
		seen[p.Pin] = dir.String()
	}

	pwmSeen := make(map[int]bool)
	for i, p := range cfg.PWM {
		if _, err := gpio.MapPin(p.Pin, scheme); err != nil {
			return fmt.Errorf("pwm[%d].pin: %w", i, err)
		}
		if seen[p.Pin] == gpio.Input.String() {
			return fmt.Errorf("pwm[%d].pin %d is configured as an input", i, p.Pin)
		}
		if pwmSeen[p.Pin] {
			return fmt.Errorf("pwm[%d].pin %d is listed twice", i, p.Pin)
		}
		pwmSeen[p.Pin] = true
		if p.FrequencyHz < gpio.MinFrequencyHz || p.FrequencyHz > gpio.MaxFrequencyHz {
			return fmt.Errorf("pwm[%d].frequency_hz must be within %g..%g", i, gpio.MinFrequencyHz, gpio.MaxFrequencyHz)
		}
		if p.DutyPercent < 0 || p.DutyPercent > 100 {
			return fmt.Errorf("pwm[%d].duty_percent must be within 0..100", i)
		}
	}

	if cfg.Demo.Mode == "" {
		cfg.Demo.Mode = "blink"
		if len(cfg.PWM) > 0 {
			cfg.Demo.Mode = "pwm"
		}
	}
	cfg.Demo.Mode = strings.ToLower(cfg.Demo.Mode)
	if !demoModes[cfg.Demo.Mode] {
		return fmt.Errorf("demo.mode must be one of blink, pwm, sweep, read")
	}
	if cfg.Demo.Duration < 0 {
		return fmt.Errorf("demo.duration must be >= 0")
	}
	if cfg.Demo.Interval <= 0 {
		cfg.Demo.Interval = 500 * time.Millisecond
	}
	if cfg.Demo.Step <= 0 {
		cfg.Demo.Step = 5
	}
	if cfg.Demo.Step > 100 {
		return fmt.Errorf("demo.step must be <= 100")
	}
	if (cfg.Demo.Mode == "pwm" || cfg.Demo.Mode == "sweep") && len(cfg.PWM) == 0 {
		return fmt.Errorf("demo.mode %q requires at least one pwm entry", cfg.Demo.Mode)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}

	return nil
}
