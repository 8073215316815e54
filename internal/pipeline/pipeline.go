package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"feedcast/internal/config"
	"feedcast/internal/logging"
	"feedcast/internal/metrics"
	"feedcast/internal/services"
	"feedcast/internal/services/curator"
	"feedcast/internal/services/feed"
	"feedcast/internal/services/voice"
	"feedcast/internal/store"
)

// ErrNoCandidates indicates a generation run found nothing to cover in its
// window. The run ledger records it as a failed run with reason
// no_candidates; it is an expected condition, not an outage.
var ErrNoCandidates = errors.New("no candidate items in window")

// SourceFactory builds a feed source for one timeline definition.
type SourceFactory func(cfg config.Feed, def feed.SourceDef) feed.Source

// SessionResolver resolves the feed session from configuration.
type SessionResolver func(cfg config.Feed) (feed.Session, error)

// Pipeline coordinates collection and generation runs against the store.
type Pipeline struct {
	cfg     *config.Config
	store   *store.Store
	logger  *slog.Logger
	metrics *metrics.Collector

	curator        curator.Curator
	synth          voice.Synthesizer
	newSource      SourceFactory
	resolveSession SessionResolver

	retry retryPolicy
	now   func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithCurator overrides the curation client.
func WithCurator(c curator.Curator) Option {
	return func(p *Pipeline) { p.curator = c }
}

// WithSynthesizer overrides the speech client.
func WithSynthesizer(s voice.Synthesizer) Option {
	return func(p *Pipeline) { p.synth = s }
}

// WithSourceFactory overrides how timeline sources are constructed.
func WithSourceFactory(factory SourceFactory) Option {
	return func(p *Pipeline) { p.newSource = factory }
}

// WithSessionResolver overrides feed session resolution.
func WithSessionResolver(resolver SessionResolver) Option {
	return func(p *Pipeline) { p.resolveSession = resolver }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(p *Pipeline) { p.metrics = collector }
}

// WithClock overrides the pipeline clock.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRetryBackoff overrides the in-run retry backoff.
func WithRetryBackoff(backoff time.Duration) Option {
	return func(p *Pipeline) { p.retry.backoff = backoff }
}

// New builds a pipeline with production collaborators unless overridden.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		cfg:            cfg,
		store:          st,
		logger:         logging.NewComponentLogger(logger, "pipeline"),
		curator:        curator.NewClient(curatorConfig(cfg)),
		resolveSession: feed.ResolveSession,
		newSource: func(feedCfg config.Feed, def feed.SourceDef) feed.Source {
			return feed.NewClient(feedCfg, def)
		},
		synth: voice.NewClient(cfg.Voice),
		retry: retryPolicy{attempts: 2, backoff: 5 * time.Second},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func curatorConfig(cfg *config.Config) curator.Config {
	return curator.Config{
		APIKey:         cfg.Curator.APIKey,
		BaseURL:        cfg.Curator.BaseURL,
		Model:          cfg.Curator.Model,
		Referer:        cfg.Curator.Referer,
		Title:          cfg.Curator.Title,
		TimeoutSeconds: cfg.Curator.TimeoutSeconds,
	}
}

func (p *Pipeline) stepTimeout() time.Duration {
	if p.cfg.Scheduler.StepTimeoutSeconds > 0 {
		return time.Duration(p.cfg.Scheduler.StepTimeoutSeconds) * time.Second
	}
	return 5 * time.Minute
}

func (p *Pipeline) heartbeatInterval() time.Duration {
	if p.cfg.Scheduler.HeartbeatIntervalSeconds > 0 {
		return time.Duration(p.cfg.Scheduler.HeartbeatIntervalSeconds) * time.Second
	}
	return 30 * time.Second
}

// withHeartbeat refreshes the run's heartbeat while fn executes so a crashed
// process can be told apart from a long step.
func (p *Pipeline) withHeartbeat(ctx context.Context, runID string, fn func(context.Context) error) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go p.heartbeatLoop(hbCtx, &hbWG, runID)

	err := fn(ctx)
	hbCancel()
	hbWG.Wait()
	return err
}

func (p *Pipeline) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, runID string) {
	defer wg.Done()
	ticker := time.NewTicker(p.heartbeatInterval())
	defer ticker.Stop()

	logger := logging.WithContext(ctx, p.logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.store.HeartbeatRun(ctx, runID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}

// step runs fn under the per-step timeout with one bounded retry for
// retryable provider failures.
func (p *Pipeline) step(ctx context.Context, fn func(context.Context) error) error {
	return p.retry.do(ctx, func(ctx context.Context) error {
		stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout())
		defer cancel()
		return fn(stepCtx)
	})
}

type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

func (r retryPolicy) do(ctx context.Context, fn func(context.Context) error) error {
	attempts := r.attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || attempt == attempts {
			return err
		}
		if !services.IsRetryable(err) {
			return err
		}
		if r.backoff > 0 {
			timer := time.NewTimer(r.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// classifyReason maps a run failure onto the ledger's error_reason values.
func classifyReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoCandidates):
		return store.ReasonNoCandidates
	case errors.Is(err, services.ErrAuthExpired):
		return store.ReasonAuthExpired
	case errors.Is(err, services.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return store.ReasonTimeout
	case errors.Is(err, services.ErrUnavailable):
		return store.ReasonUnavailable
	default:
		var provErr *services.ProviderError
		if errors.As(err, &provErr) {
			return store.ReasonProvider
		}
		return store.ReasonInternal
	}
}

// finish records the run outcome in the ledger and metrics.
func (p *Pipeline) finish(ctx context.Context, run *store.Run, runErr error) error {
	status := store.RunStatusSucceeded
	reason := ""
	message := ""
	if runErr != nil {
		status = store.RunStatusFailed
		reason = classifyReason(runErr)
		message = runErr.Error()
	}
	// The finish record must land even when the run failed on a canceled
	// or timed-out context.
	if err := p.store.FinishRun(context.WithoutCancel(ctx), run.ID, status, reason, message); err != nil {
		return err
	}
	p.metrics.RunFinished(string(run.Kind), string(status), p.now().Sub(run.StartedAt))
	return nil
}
