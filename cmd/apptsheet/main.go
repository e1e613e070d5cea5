package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"apptsheet/internal/config"
	applog "apptsheet/internal/log"
	"apptsheet/internal/model"
	"apptsheet/internal/pipeline"
)

// flagConfig holds CLI flag values; selected fields override the config
// file.
type flagConfig struct {
	configPath string
	envPath    string
	date       string
	cronSpec   string
	once       bool
	headful    bool
	open       bool
	dump       bool
	logLevel   string
}

func main() {
	flags := parseFlags()
	applog.SetLevel(applog.ParseLevel(flags.logLevel))
	applog.Info("apptsheet starting", "version", "0.1.0")

	// Seed credentials from .env if present; explicit env always wins.
	config.LoadDotenv(flags.envPath)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		applog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI overrides.
	if flags.headful {
		conf.Headless = false
	}
	if flags.open {
		conf.OpenReport = true
	}
	if flags.cronSpec != "" {
		conf.Schedule = flags.cronSpec
	}

	applog.Info("effective config",
		"portal", conf.Portal.BaseURL,
		"artifact_dir", conf.ArtifactDir,
		"offset_days", conf.TargetDateOffsetDays,
		"headless", conf.Headless,
		"schedule", conf.Schedule,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		applog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	opts := pipeline.Options{DumpRaw: flags.dump}

	if flags.once || conf.Schedule == "" {
		if err := runOnce(ctx, conf, flags, opts); err != nil {
			applog.Error("run failed", err)
			os.Exit(1)
		}
		return
	}

	// Scheduled mode: every tick is still an independent single-shot
	// run; a tick arriving mid-run is skipped.
	var busy atomic.Bool
	c := cron.New()
	_, err = c.AddFunc(conf.Schedule, func() {
		if !busy.CompareAndSwap(false, true) {
			applog.Info("previous run still active, tick skipped")
			return
		}
		defer busy.Store(false)
		if err := runOnce(ctx, conf, flags, opts); err != nil {
			applog.Error("scheduled run failed", err)
		}
	})
	if err != nil {
		applog.Error("invalid schedule expression", err, "schedule", conf.Schedule)
		os.Exit(1)
	}

	applog.Info("scheduler started", "schedule", conf.Schedule)
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}
	applog.Info("apptsheet exiting")
}

func runOnce(ctx context.Context, conf *config.Config, flags flagConfig, opts pipeline.Options) error {
	targetDate, err := resolveTargetDate(flags.date, conf.TargetDateOffsetDays)
	if err != nil {
		return err
	}

	rc := model.NewRunContext(targetDate, conf.ArtifactDir)
	artifacts, err := pipeline.Run(ctx, conf, rc, opts)
	if err != nil {
		return err
	}

	// Artifact paths are the program's stdout contract.
	fmt.Println(artifacts.ConsolidatedCSV)
	fmt.Println(artifacts.ReminderSheet)
	fmt.Println(artifacts.CalendarFeed)
	return nil
}

// resolveTargetDate prefers an explicit -date; otherwise today plus the
// configured offset (default: tomorrow).
func resolveTargetDate(explicit string, offsetDays int) (time.Time, error) {
	if explicit != "" {
		t, err := time.ParseInLocation("2006-01-02", explicit, time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid -date %q (want YYYY-MM-DD): %w", explicit, err)
		}
		return t, nil
	}
	return time.Now().AddDate(0, 0, offsetDays), nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "apptsheet.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", "", "Path to .env file with credentials (default .env)")
	flag.StringVar(&cfg.date, "date", "", "Target date YYYY-MM-DD (default: today + configured offset)")
	flag.StringVar(&cfg.cronSpec, "cron", "", "Cron schedule (overrides config; implies scheduled mode)")
	flag.BoolVar(&cfg.once, "once", false, "Run a single pipeline cycle and exit even when a schedule is configured")
	flag.BoolVar(&cfg.headful, "headful", false, "Run Chromium with a visible window")
	flag.BoolVar(&cfg.open, "open", false, "Open the reminder sheet when done")
	flag.BoolVar(&cfg.dump, "dump", false, "Also write the raw export CSV next to the artifacts")
	flag.StringVar(&cfg.logLevel, "log-level", "INFO", "Log level: DEBUG, INFO or ERROR")

	flag.Parse()

	return cfg
}
