package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"feedcast/internal/stage"
	"feedcast/internal/store"
	"feedcast/internal/testsupport"
)

func seedScripted(t *testing.T, st *store.Store, sourceID string, observedAt time.Time) {
	t.Helper()
	testsupport.SeedItem(t, st, sourceID, "alice", "body for "+sourceID, observedAt)
	ctx := context.Background()
	for _, next := range []stage.Stage{stage.Curated, stage.Scripted} {
		if err := st.AdvanceStage(ctx, sourceID, next); err != nil {
			t.Fatalf("AdvanceStage %s -> %s: %v", sourceID, next, err)
		}
	}
}

func TestFinalizeEpisodeRendersSelectedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := time.Now().UTC()

	seedScripted(t, st, "p1", now)
	seedScripted(t, st, "p2", now)

	episode := &store.Episode{
		ID:              "ep-1",
		Title:           "Daily Brief for August 25",
		Description:     "Two stories",
		Script:          "Alex: hello\nJordan: hi",
		AudioPath:       "/tmp/ep-1.mp3",
		TranscriptPath:  "/tmp/ep-1.txt",
		DurationSeconds: 120,
		WindowStart:     now.Add(-24 * time.Hour),
		WindowEnd:       now,
		GenerationRunID: "run-9",
	}
	if err := st.FinalizeEpisode(ctx, episode, []string{"p1", "p2"}); err != nil {
		t.Fatalf("FinalizeEpisode: %v", err)
	}

	stored, err := st.GetEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if stored.ItemCount != 2 {
		t.Fatalf("expected item count 2, got %d", stored.ItemCount)
	}
	if stored.Script == "" || stored.Title != episode.Title {
		t.Fatalf("unexpected stored episode: %+v", stored)
	}

	for _, sourceID := range []string{"p1", "p2"} {
		item, err := st.GetBySourceID(ctx, sourceID)
		if err != nil {
			t.Fatalf("GetBySourceID: %v", err)
		}
		if item.Stage != stage.Rendered {
			t.Fatalf("expected %s rendered, got %s", sourceID, item.Stage)
		}
		if item.EpisodeID != "ep-1" {
			t.Fatalf("expected %s assigned to episode, got %q", sourceID, item.EpisodeID)
		}
	}

	items, err := st.EpisodeItems(ctx, "ep-1")
	if err != nil {
		t.Fatalf("EpisodeItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 episode items, got %d", len(items))
	}
}

func TestFinalizeEpisodeRollsBackOnStaleItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := time.Now().UTC()

	seedScripted(t, st, "good", now)
	testsupport.SeedItem(t, st, "still-collected", "bob", "never scripted", now)

	episode := &store.Episode{
		ID:          "ep-1",
		Title:       "Broken Episode",
		Script:      "script",
		AudioPath:   "/tmp/ep-1.mp3",
		WindowStart: now.Add(-24 * time.Hour),
		WindowEnd:   now,
	}
	err := st.FinalizeEpisode(ctx, episode, []string{"good", "still-collected"})
	if !errors.Is(err, store.ErrStaleTransition) {
		t.Fatalf("expected ErrStaleTransition, got %v", err)
	}

	// Nothing from the failed transaction is visible.
	if _, err := st.GetEpisode(ctx, "ep-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no episode row, got %v", err)
	}
	item, err := st.GetBySourceID(ctx, "good")
	if err != nil {
		t.Fatalf("GetBySourceID: %v", err)
	}
	if item.Stage != stage.Scripted || item.EpisodeID != "" {
		t.Fatalf("expected scripted item untouched, got stage=%s episode=%q", item.Stage, item.EpisodeID)
	}
}

func TestListEpisodesOrdersByRecency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := time.Now().UTC()

	seedScripted(t, st, "p1", now)
	seedScripted(t, st, "p2", now)

	older := &store.Episode{
		ID: "ep-old", Title: "Older", Script: "s", AudioPath: "/tmp/a.mp3",
		WindowStart: now.Add(-48 * time.Hour), WindowEnd: now.Add(-24 * time.Hour),
		CreatedAt: now.Add(-24 * time.Hour),
	}
	newer := &store.Episode{
		ID: "ep-new", Title: "Newer", Script: "s", AudioPath: "/tmp/b.mp3",
		WindowStart: now.Add(-24 * time.Hour), WindowEnd: now,
		CreatedAt: now,
	}
	if err := st.FinalizeEpisode(ctx, older, []string{"p1"}); err != nil {
		t.Fatalf("FinalizeEpisode: %v", err)
	}
	if err := st.FinalizeEpisode(ctx, newer, []string{"p2"}); err != nil {
		t.Fatalf("FinalizeEpisode: %v", err)
	}

	episodes, err := st.ListEpisodes(ctx, 10)
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if len(episodes) != 2 || episodes[0].ID != "ep-new" {
		t.Fatalf("expected newest first, got %v", episodes)
	}
}
