package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// sessionFactory defers browser acquisition until the run actually starts,
// so a timed wait does not hold a browser open for hours.
type sessionFactory func() (Session, error)

// Runner admits one checkout at a time. Concurrent triggers for the same
// buyer would race each other through the same funnel and double-charge,
// so the gate serializes them; each admitted run still gets its own
// session and its own state machine.
type Runner struct {
	cfg     *Config
	gate    *semaphore.Weighted
	acquire sessionFactory
	sink    ResultSink
	clock   *TimeSync
	log     zerolog.Logger
}

func NewRunner(cfg *Config, acquire sessionFactory, sink ResultSink, log zerolog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		gate:    semaphore.NewWeighted(1),
		acquire: acquire,
		sink:    sink,
		clock:   NewTimeSync(),
		log:     log,
	}
}

// Run waits for the configured release window, acquires the gate and a
// fresh browser session, and drives one checkout to a terminal outcome.
// Every invocation starts from scratch: a failed run is never resumed.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.waitForRelease(ctx); err != nil {
		return err
	}

	if err := r.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire checkout gate: %w", err)
	}
	defer r.gate.Release(1)

	session, err := r.acquire()
	if err != nil {
		return fmt.Errorf("acquire browser session: %w", err)
	}

	checkout := NewCheckout(r.cfg, session, r.sink, r.log)
	return checkout.Run(ctx)
}

// waitForRelease blocks until lead seconds before the configured release
// time, using the HTTP-synced clock. No release time means start now.
func (r *Runner) waitForRelease(ctx context.Context) error {
	if r.cfg.ReleaseTime == "" {
		return nil
	}

	release, err := ParseReleaseTime(r.cfg.ReleaseTime)
	if err != nil {
		return err
	}

	if err := r.clock.Sync(); err != nil {
		r.log.Warn().Err(err).Msg("clock sync failed, trusting the local clock")
	} else {
		r.log.Info().Dur("offset", r.clock.Offset()).Msg("clock synced")
	}

	start := release.Add(-time.Duration(r.cfg.StartBeforeReleaseSeconds) * time.Second)
	wait := start.Sub(r.clock.Now())
	if wait <= 0 {
		return nil
	}

	r.log.Info().Time("release", release).Dur("wait", wait).Msg("waiting for release window")
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
