package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mtech-gpio/internal/config"
	"mtech-gpio/internal/gpio"
)

// setupPins applies the numbering scheme and claims every configured pin.
func setupPins(ctrl *gpio.Controller, cfg config.Config) error {
	if err := ctrl.SetNumberingScheme(cfg.Scheme); err != nil {
		return err
	}
	for _, p := range cfg.Pins {
		if err := ctrl.Setup(p.Pin, p.Dir, p.PullMode); err != nil {
			return err
		}
	}
	return nil
}

func pinsWith(cfg config.Config, dir gpio.Direction) []int {
	var out []int
	for _, p := range cfg.Pins {
		if p.Dir == dir {
			out = append(out, p.Pin)
		}
	}
	return out
}

func runDemo(ctx context.Context, ctrl *gpio.Controller, cfg config.Config, log logrus.FieldLogger) error {
	if err := setupPins(ctrl, cfg); err != nil {
		return err
	}
	switch cfg.Demo.Mode {
	case "blink":
		return runBlink(ctx, ctrl, cfg, log)
	case "pwm":
		return runPWM(ctx, ctrl, cfg, log, nil)
	case "sweep":
		return runPWM(ctx, ctrl, cfg, log, newSweep(cfg.Demo.Step))
	case "read":
		return runRead(ctx, ctrl, cfg, log)
	default:
		return fmt.Errorf("unknown demo mode %q", cfg.Demo.Mode)
	}
}

func runBlink(ctx context.Context, ctrl *gpio.Controller, cfg config.Config, log logrus.FieldLogger) error {
	pins := pinsWith(cfg, gpio.Output)
	if len(pins) == 0 {
		return fmt.Errorf("blink demo needs at least one output pin")
	}

	t := time.NewTicker(cfg.Demo.Interval)
	defer t.Stop()

	level := gpio.Low
	for {
		level = !level
		for _, pin := range pins {
			if err := ctrl.Write(pin, level); err != nil {
				return err
			}
		}
		log.WithField("level", level).Debug("blink")
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func runRead(ctx context.Context, ctrl *gpio.Controller, cfg config.Config, log logrus.FieldLogger) error {
	pins := pinsWith(cfg, gpio.Input)
	if len(pins) == 0 {
		return fmt.Errorf("read demo needs at least one input pin")
	}

	t := time.NewTicker(cfg.Demo.Interval)
	defer t.Stop()

	for {
		fields := logrus.Fields{}
		for _, pin := range pins {
			lv, err := ctrl.Read(pin)
			if err != nil {
				return err
			}
			fields[fmt.Sprintf("pin%d", pin)] = lv.String()
		}
		log.WithFields(fields).Info("levels")
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// sweep walks a duty cycle between 0 and 100 and back.
type sweep struct {
	step float64
	duty float64
	dir  float64
}

func newSweep(step float64) *sweep {
	return &sweep{step: step, dir: 1}
}

func (s *sweep) next() float64 {
	s.duty += s.dir * s.step
	if s.duty >= 100 {
		s.duty = 100
		s.dir = -1
	} else if s.duty <= 0 {
		s.duty = 0
		s.dir = 1
	}
	return s.duty
}

func runPWM(ctx context.Context, ctrl *gpio.Controller, cfg config.Config, log logrus.FieldLogger, sw *sweep) error {
	for _, p := range cfg.PWM {
		duty := p.DutyPercent
		if sw != nil {
			duty = 0
		}
		if err := ctrl.StartPWM(p.Pin, p.FrequencyHz, duty); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"pin":          p.Pin,
			"frequency_hz": p.FrequencyHz,
			"duty_percent": duty,
		}).Info("pwm running")
	}

	t := time.NewTicker(cfg.Demo.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctrl.StopAllPWM()
		case <-t.C:
		}

		for _, p := range cfg.PWM {
			if err := ctrl.PWMErr(p.Pin); err != nil {
				_ = ctrl.StopAllPWM()
				return err
			}
		}
		if sw == nil {
			continue
		}
		duty := sw.next()
		for _, p := range cfg.PWM {
			if err := ctrl.SetPWMDuty(p.Pin, duty); err != nil {
				return err
			}
		}
		log.WithField("duty_percent", duty).Debug("sweep")
	}
}
