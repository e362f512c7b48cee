package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"mtech-gpio/internal/chip"
	"mtech-gpio/internal/config"
	"mtech-gpio/internal/gpio"
)

var openChipFn = func(cfg config.ChipConfig) (gpio.Chip, error) {
	if cfg.Path != "" {
		return chip.OpenPath(cfg.Path, cfg.Consumer)
	}
	return chip.Open(cfg.Index, cfg.Consumer)
}

func main() {
	var configPath string
	var demo string
	var duration time.Duration
	flag.StringVar(&configPath, "config", "./mtech-gpio.yaml", "Path to YAML config")
	flag.StringVar(&demo, "demo", "", "Demo to run: blink, pwm, sweep, read (overrides demo.mode)")
	flag.DurationVar(&duration, "duration", 0, "Stop after this long (overrides demo.duration)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("config load failed: %v", err)
	}
	if demo != "" {
		cfg.Demo.Mode = demo
	}
	if duration > 0 {
		cfg.Demo.Duration = duration
	}

	log := newLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if cfg.Demo.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cfg.Demo.Duration)
		defer stop()
	}

	if err := runMain(ctx, cfg, log); err != nil {
		log.WithError(err).Error("mtech-gpio failed")
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func runMain(ctx context.Context, cfg config.Config, log logrus.FieldLogger) error {
	ch, err := openChipFn(cfg.Chip)
	if err != nil {
		return err
	}
	ctrl := gpio.NewController(ch, gpio.WithLogger(log))

	log.WithFields(logrus.Fields{
		"numbering": cfg.Scheme,
		"demo":      cfg.Demo.Mode,
	}).Info("mtech-gpio starting")

	runErr := runDemo(ctx, ctrl, cfg, log)

	log.Info("mtech-gpio stopping")
	if err := ctrl.ReleaseAll(); err != nil {
		log.WithError(err).Warn("release failed")
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
