package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	url := flag.String("url", "", "Product page URL (overrides config)")
	dryRun := flag.Bool("dry-run", false, "Test mode: stop before placing the order")
	debug := flag.Bool("debug", false, "Enable debug logging")
	headless := flag.Bool("headless", true, "Run the browser headless")
	releaseTime := flag.String("release-time", "", "Release time, UTC (e.g. 2025-01-15 16:00) - waits before starting")
	flag.Parse()

	// A missing .env is fine; the file is optional.
	_ = godotenv.Load()

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.ApplyEnv()

	if *url != "" {
		config.ProductURL = *url
	}
	if *dryRun {
		config.DryRun = true
	}
	if *debug {
		config.DebugMode = true
	}
	if *releaseTime != "" {
		config.ReleaseTime = *releaseTime
	}
	if flagPassed("headless") {
		config.Headless = *headless
	}

	log := newLogger(config.DebugMode)

	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if config.HasPlaceholders() {
		log.Warn().Msg("buyer/payment values look like placeholders; the order will be rejected unless this is a dry run")
		if !config.DryRun {
			log.Fatal().Msg("refusing a live run with placeholder values, pass -dry-run to rehearse")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink ResultSink = NewLogSink(log)
	if config.WebhookURL != "" {
		sink = NewMultiSink(NewLogSink(log), NewWebhookSink(config.WebhookURL, log))
	}

	runner := NewRunner(config, func() (Session, error) {
		return LaunchBrowser(config, log)
	}, sink, log)

	if err := runner.Run(ctx); err != nil {
		log.Error().Err(err).Msg("checkout run ended in failure")
		os.Exit(1)
	}
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}
