package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"feedcast/internal/logging"
	"feedcast/internal/services"
	"feedcast/internal/services/curator"
	"feedcast/internal/services/voice"
	"feedcast/internal/stage"
	"feedcast/internal/store"
)

// Spoken delivery pace used to estimate episode duration from the script.
const wordsPerMinute = 150

// RunGeneration executes one generation run: select the trailing window,
// curate, script, synthesize, and finalize the episode. Stage and score
// writes made before a failure stay put; the next window re-picks anything
// below rendered.
func (p *Pipeline) RunGeneration(ctx context.Context) (*store.Run, error) {
	run, err := p.store.TryStart(ctx, store.RunKindGeneration)
	if err != nil {
		return nil, err
	}

	ctx = services.WithRunID(ctx, run.ID)
	ctx = services.WithRunKind(ctx, string(run.Kind))
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("generation run started")

	var episode *store.Episode
	runErr := p.withHeartbeat(ctx, run.ID, func(ctx context.Context) error {
		var err error
		episode, err = p.generateEpisode(ctx, logger, run)
		return err
	})

	if err := p.finish(ctx, run, runErr); err != nil {
		logger.Error("finish generation run", logging.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		logger.Warn("generation run failed",
			logging.String("reason", classifyReason(runErr)),
			logging.Error(runErr))
		return run, runErr
	}
	p.metrics.EpisodeRendered()
	logger.Info("generation run succeeded",
		logging.String(logging.FieldEpisodeID, episode.ID),
		logging.Int64("items", episode.ItemCount))
	return run, nil
}

func (p *Pipeline) generateEpisode(ctx context.Context, logger *slog.Logger, run *store.Run) (*store.Episode, error) {
	windowEnd := p.now().UTC()
	windowStart := windowEnd.Add(-p.windowDuration())

	selected, err := p.store.SelectWindow(ctx, windowStart, windowEnd, stage.Collected, 0)
	if err != nil {
		return nil, fmt.Errorf("select window: %w", err)
	}
	candidates := make([]*store.Item, 0, len(selected))
	for _, item := range selected {
		// Items already in a published episode are done.
		if item.Stage == stage.Rendered {
			continue
		}
		candidates = append(candidates, item)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	logger.Info("window selected", logging.Int("candidates", len(candidates)))

	result, err := p.curateCandidates(ctx, candidates)
	if err != nil {
		return nil, err
	}

	picked, err := p.applyCuration(ctx, candidates, result)
	if err != nil {
		return nil, err
	}
	if len(picked) == 0 {
		return nil, ErrNoCandidates
	}
	logger.Info("lineup curated", logging.Int("selected", len(picked)))

	if err := p.store.SetRunCounts(ctx, run.ID, int64(len(candidates)), int64(len(picked))); err != nil {
		return nil, fmt.Errorf("record counts: %w", err)
	}

	audio, err := p.synthesizeScript(ctx, result.Script)
	if err != nil {
		return nil, err
	}

	episode, err := p.writeEpisode(ctx, run, result, picked, audio, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return episode, nil
}

func (p *Pipeline) curateCandidates(ctx context.Context, candidates []*store.Item) (*curator.Result, error) {
	req := curator.Request{
		MaxSelected:  p.cfg.Curator.MaxItemsPerEpisode,
		PodcastTitle: p.cfg.Podcast.Title,
		HostA:        p.cfg.Podcast.HostA,
		HostB:        p.cfg.Podcast.HostB,
	}
	for _, item := range candidates {
		req.Items = append(req.Items, curator.ItemInput{
			SourceID: item.SourceID,
			Author:   item.Author,
			Body:     item.Body,
			Likes:    item.Likes,
			Reposts:  item.Reposts,
			Replies:  item.Replies,
			Views:    item.Views,
		})
	}

	var result *curator.Result
	err := p.step(ctx, func(ctx context.Context) error {
		var curateErr error
		result, curateErr = p.curator.Curate(ctx, req)
		return curateErr
	})
	if err != nil {
		return nil, fmt.Errorf("curate: %w", err)
	}
	return result, nil
}

// applyCuration records scores and advances stages. Items re-picked from an
// earlier failed run arrive at curated or scripted already and keep their
// recorded score and stage. Returns the selected source IDs that clear the
// minimum interest score, advanced to scripted.
func (p *Pipeline) applyCuration(ctx context.Context, candidates []*store.Item, result *curator.Result) ([]string, error) {
	byID := make(map[string]*store.Item, len(candidates))
	for _, item := range candidates {
		byID[item.SourceID] = item
	}

	scores := make(map[string]float64, len(result.Assessments))
	for _, assessment := range result.Assessments {
		item, ok := byID[assessment.SourceID]
		if !ok {
			continue
		}
		if stage.Rank(item.Stage) >= stage.Rank(stage.Curated) {
			// Re-picked from an earlier failed run: the recorded score wins.
			if item.InterestScore != nil {
				scores[assessment.SourceID] = *item.InterestScore
			}
			continue
		}
		scores[assessment.SourceID] = assessment.Score
		curation := store.Curation{
			Score:   assessment.Score,
			Topics:  assessment.Topics,
			Summary: assessment.Summary,
		}
		if err := p.store.SetCuration(ctx, assessment.SourceID, curation); err != nil {
			return nil, fmt.Errorf("record curation %s: %w", assessment.SourceID, err)
		}
		if err := p.store.AdvanceStage(ctx, assessment.SourceID, stage.Curated); err != nil {
			return nil, fmt.Errorf("advance %s to curated: %w", assessment.SourceID, err)
		}
		item.Stage = stage.Curated
	}

	minScore := p.cfg.Curator.MinInterestScore
	var picked []string
	for _, sourceID := range result.Selected {
		item, ok := byID[sourceID]
		if !ok {
			continue
		}
		if score, scored := scores[sourceID]; scored && score < minScore {
			continue
		}
		if item.Stage == stage.Curated {
			if err := p.store.AdvanceStage(ctx, sourceID, stage.Scripted); err != nil {
				return nil, fmt.Errorf("advance %s to scripted: %w", sourceID, err)
			}
			item.Stage = stage.Scripted
		}
		if item.Stage == stage.Scripted {
			picked = append(picked, sourceID)
		}
	}
	return picked, nil
}

func (p *Pipeline) synthesizeScript(ctx context.Context, script string) ([]byte, error) {
	spec := voice.RenderSpec{
		HostA:      p.cfg.Podcast.HostA,
		HostB:      p.cfg.Podcast.HostB,
		HostAVoice: p.cfg.Voice.HostAVoice,
		HostBVoice: p.cfg.Voice.HostBVoice,
	}
	var audio []byte
	err := p.step(ctx, func(ctx context.Context) error {
		var synthErr error
		audio, synthErr = p.synth.Synthesize(ctx, script, spec)
		return synthErr
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	return audio, nil
}

func (p *Pipeline) writeEpisode(ctx context.Context, run *store.Run, result *curator.Result, picked []string, audio []byte, windowStart, windowEnd time.Time) (*store.Episode, error) {
	episodeID := uuid.NewString()
	baseName := fmt.Sprintf("episode-%s-%s", windowEnd.Format("20060102"), episodeID[:8])
	audioPath := filepath.Join(p.cfg.Paths.OutputDir, baseName+"."+p.audioExtension())
	transcriptPath := filepath.Join(p.cfg.Paths.OutputDir, baseName+".txt")

	if err := os.MkdirAll(p.cfg.Paths.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	if err := os.WriteFile(transcriptPath, []byte(result.Script), 0o644); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}

	episode := &store.Episode{
		ID:              episodeID,
		Title:           p.episodeTitle(result.Title, windowEnd),
		Description:     result.Description,
		Script:          result.Script,
		AudioPath:       audioPath,
		TranscriptPath:  transcriptPath,
		ItemCount:       int64(len(picked)),
		DurationSeconds: int64(voice.WordCount(result.Script)) * 60 / wordsPerMinute,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
		GenerationRunID: run.ID,
	}
	if err := p.store.FinalizeEpisode(ctx, episode, picked); err != nil {
		return nil, fmt.Errorf("finalize episode: %w", err)
	}
	return episode, nil
}

var titleCaser = cases.Title(language.English)

func (p *Pipeline) episodeTitle(title string, windowEnd time.Time) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = fmt.Sprintf("%s for %s", p.cfg.Podcast.Title, windowEnd.Format("January 2, 2006"))
	}
	// Models occasionally hand back all-lowercase headlines.
	if title == strings.ToLower(title) {
		title = titleCaser.String(title)
	}
	return title
}

func (p *Pipeline) windowDuration() time.Duration {
	hours := p.cfg.Scheduler.WindowHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func (p *Pipeline) audioExtension() string {
	format := strings.TrimSpace(strings.ToLower(p.cfg.Voice.Format))
	if format == "" {
		return "mp3"
	}
	return format
}
