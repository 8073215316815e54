package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"feedcast/internal/config"
	"feedcast/internal/logging"
	"feedcast/internal/pipeline"
	"feedcast/internal/store"
)

// Runner executes pipeline runs. Satisfied by *pipeline.Pipeline.
type Runner interface {
	RunCollection(ctx context.Context) (*store.Run, error)
	RunGeneration(ctx context.Context) (*store.Run, error)
}

// Scheduler fires collection ticks at a fixed interval and generation at a
// daily UTC anchor hour. The two loops are independent: kinds may overlap
// with each other, never with themselves; the store's run gate enforces the
// latter, and a busy gate simply skips the tick.
type Scheduler struct {
	cfg    *config.Config
	store  *store.Store
	runner Runner
	logger *slog.Logger

	collectionEvery    time.Duration
	staleGraceOverride time.Duration
	now                func() time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the scheduler clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCollectionInterval overrides the collection tick interval.
func WithCollectionInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval > 0 {
			s.collectionEvery = interval
		}
	}
}

// WithStaleGrace overrides the stale-run grace period.
func WithStaleGrace(grace time.Duration) Option {
	return func(s *Scheduler) {
		if grace > 0 {
			s.staleGraceOverride = grace
		}
	}
}

// New builds a scheduler around the supplied runner.
func New(cfg *config.Config, st *store.Store, runner Runner, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scheduler{
		cfg:             cfg,
		store:           st,
		runner:          runner,
		logger:          logging.NewComponentLogger(logger, "scheduler"),
		collectionEvery: time.Hour,
		now:             time.Now,
	}
	if cfg.Scheduler.CollectionIntervalMinutes > 0 {
		s.collectionEvery = time.Duration(cfg.Scheduler.CollectionIntervalMinutes) * time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives both loops until the context is canceled. Runs left behind by
// a crashed process are reaped once up front so a restart does not wait a
// full cadence before the gate reopens.
func (s *Scheduler) Run(ctx context.Context) error {
	s.reapStale(ctx, s.logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.collectionLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.generationLoop(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) collectionLoop(ctx context.Context) {
	ticker := time.NewTicker(s.collectionEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, store.RunKindCollection)
		}
	}
}

func (s *Scheduler) generationLoop(ctx context.Context) {
	for {
		next := NextAnchor(s.now().UTC(), s.cfg.Scheduler.GenerationHourUTC)
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx, store.RunKindGeneration)
		}
	}
}

// fire reaps stale runs, then invokes the runner for the kind. A busy gate
// or an empty window is routine and logged at INFO; the runner has already
// recorded any real failure in the ledger.
func (s *Scheduler) fire(ctx context.Context, kind store.RunKind) {
	logger := s.logger.With(logging.String(logging.FieldKind, string(kind)))

	s.reapStale(ctx, logger)

	var runErr error
	switch kind {
	case store.RunKindCollection:
		_, runErr = s.runner.RunCollection(ctx)
	case store.RunKindGeneration:
		_, runErr = s.runner.RunGeneration(ctx)
	}

	switch {
	case runErr == nil:
	case errors.Is(runErr, store.ErrBusy):
		logger.Info("run already in progress, tick skipped")
	case errors.Is(runErr, pipeline.ErrNoCandidates):
		logger.Info("no candidates in window")
	case errors.Is(runErr, context.Canceled):
	default:
		logger.Error("run failed", logging.Error(runErr))
	}
}

func (s *Scheduler) reapStale(ctx context.Context, logger *slog.Logger) {
	reaped, err := s.store.ReapStaleRuns(ctx, s.staleGrace())
	if err != nil {
		logger.Error("reap stale runs failed", logging.Error(err))
		return
	}
	for _, run := range reaped {
		logger.Warn("reaped stale run",
			logging.String(logging.FieldRunID, run.ID),
			logging.String("stale_kind", string(run.Kind)))
	}
}

func (s *Scheduler) staleGrace() time.Duration {
	if s.staleGraceOverride > 0 {
		return s.staleGraceOverride
	}
	if s.cfg.Scheduler.StaleRunGraceMinutes > 0 {
		return time.Duration(s.cfg.Scheduler.StaleRunGraceMinutes) * time.Minute
	}
	return 30 * time.Minute
}

// NextAnchor returns the next daily firing time for the given UTC hour,
// strictly after now.
func NextAnchor(now time.Time, hourUTC int) time.Time {
	now = now.UTC()
	anchor := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !anchor.After(now) {
		anchor = anchor.Add(24 * time.Hour)
	}
	return anchor
}
