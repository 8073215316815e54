package pipeline

import (
	"context"
	"fmt"

	"feedcast/internal/logging"
	"feedcast/internal/services"
	"feedcast/internal/services/feed"
	"feedcast/internal/store"
)

// RunCollection executes one collection run: resolve the feed session, page
// through every configured timeline up to the post budget, and upsert each
// post. Posts stored before a failure stay stored; the run is resumable by
// the next tick.
func (p *Pipeline) RunCollection(ctx context.Context) (*store.Run, error) {
	run, err := p.store.TryStart(ctx, store.RunKindCollection)
	if err != nil {
		return nil, err
	}

	ctx = services.WithRunID(ctx, run.ID)
	ctx = services.WithRunKind(ctx, string(run.Kind))
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("collection run started")

	var observed, stored int64
	runErr := p.withHeartbeat(ctx, run.ID, func(ctx context.Context) error {
		session, err := p.resolveSession(p.cfg.Feed)
		if err != nil {
			return fmt.Errorf("resolve session: %w", err)
		}
		defs, err := feed.LoadSources(p.cfg.Feed.SourcesFile)
		if err != nil {
			return fmt.Errorf("load sources: %w", err)
		}

		budget := int64(p.cfg.Feed.PostBudget)
		for _, def := range defs {
			if budget > 0 && observed >= budget {
				break
			}
			collected, kept, err := p.collectTimeline(ctx, run.ID, session, def, budget-observed)
			observed += collected
			stored += kept
			if err != nil {
				return fmt.Errorf("timeline %s: %w", def.Label(), err)
			}
			logger.Info("timeline collected",
				logging.String("timeline", def.Label()),
				logging.Int64("observed", collected),
				logging.Int64("new", kept))
		}
		return p.store.SetRunCounts(ctx, run.ID, observed, stored)
	})

	p.metrics.ItemsCollected(int(observed), int(stored))
	if err := p.finish(ctx, run, runErr); err != nil {
		logger.Error("finish collection run", logging.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		logger.Warn("collection run failed",
			logging.String("reason", classifyReason(runErr)),
			logging.Error(runErr))
		return run, runErr
	}
	logger.Info("collection run succeeded",
		logging.Int64("observed", observed),
		logging.Int64("new", stored))
	return run, nil
}

// collectTimeline pages one timeline until the feed ends or the remaining
// budget is spent. A zero or negative budget means unlimited.
func (p *Pipeline) collectTimeline(ctx context.Context, runID string, session feed.Session, def feed.SourceDef, remaining int64) (int64, int64, error) {
	source := p.newSource(p.cfg.Feed, def)

	var observed, stored int64
	cursor := ""
	unlimited := p.cfg.Feed.PostBudget <= 0
	for {
		var page feed.Page
		err := p.step(ctx, func(ctx context.Context) error {
			var fetchErr error
			page, fetchErr = source.FetchPage(ctx, session, cursor)
			return fetchErr
		})
		if err != nil {
			return observed, stored, err
		}

		for _, post := range page.Posts {
			if !unlimited && observed >= remaining {
				return observed, stored, nil
			}
			observed++
			_, created, err := p.store.Upsert(ctx, post, runID)
			if err != nil {
				return observed, stored, fmt.Errorf("upsert %s: %w", post.SourceID, err)
			}
			if created {
				stored++
			}
		}

		cursor = page.NextCursor
		if cursor == "" || (!unlimited && observed >= remaining) {
			return observed, stored, nil
		}
	}
}
