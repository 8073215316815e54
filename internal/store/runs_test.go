package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"feedcast/internal/store"
	"feedcast/internal/testsupport"
)

func TestTryStartExcludesSameKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := st.TryStart(ctx, store.RunKindCollection)
	if err != nil {
		t.Fatalf("TryStart: %v", err)
	}
	if run.Status != store.RunStatusRunning {
		t.Fatalf("expected running status, got %s", run.Status)
	}

	if _, err := st.TryStart(ctx, store.RunKindCollection); !errors.Is(err, store.ErrBusy) {
		t.Fatalf("expected ErrBusy for concurrent collection, got %v", err)
	}

	// Different kinds may overlap.
	genRun, err := st.TryStart(ctx, store.RunKindGeneration)
	if err != nil {
		t.Fatalf("TryStart generation: %v", err)
	}

	if err := st.FinishRun(ctx, run.ID, store.RunStatusSucceeded, "", "done"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := st.FinishRun(ctx, genRun.ID, store.RunStatusFailed, store.ReasonNoCandidates, "empty window"); err != nil {
		t.Fatalf("FinishRun generation: %v", err)
	}

	// Gate reopens after finish.
	if _, err := st.TryStart(ctx, store.RunKindCollection); err != nil {
		t.Fatalf("TryStart after finish: %v", err)
	}
}

func TestTryStartGateSharedAcrossConnections(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := testsupport.MustOpenStore(t, cfg)
	second := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := first.TryStart(ctx, store.RunKindGeneration); err != nil {
		t.Fatalf("TryStart: %v", err)
	}
	if _, err := second.TryStart(ctx, store.RunKindGeneration); !errors.Is(err, store.ErrBusy) {
		t.Fatalf("expected ErrBusy through separate connection, got %v", err)
	}
}

func TestFinishRunIsIdempotentPerStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := st.TryStart(ctx, store.RunKindCollection)
	if err != nil {
		t.Fatalf("TryStart: %v", err)
	}

	if err := st.FinishRun(ctx, run.ID, store.RunStatusSucceeded, "", "collected 12"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := st.FinishRun(ctx, run.ID, store.RunStatusSucceeded, "", "collected 12"); err != nil {
		t.Fatalf("expected repeated finish with same status to be a no-op, got %v", err)
	}
	if err := st.FinishRun(ctx, run.ID, store.RunStatusFailed, store.ReasonInternal, "late failure"); !errors.Is(err, store.ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished, got %v", err)
	}

	if err := st.FinishRun(ctx, "missing", store.RunStatusFailed, "", ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.FinishRun(ctx, run.ID, store.RunStatusRunning, "", ""); err == nil {
		t.Fatal("expected non-terminal finish to be rejected")
	}
}

func TestReapStaleRunsFailsOnlyQuietRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stale, err := st.TryStart(ctx, store.RunKindCollection)
	if err != nil {
		t.Fatalf("TryStart: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	live, err := st.TryStart(ctx, store.RunKindGeneration)
	if err != nil {
		t.Fatalf("TryStart generation: %v", err)
	}
	if err := st.HeartbeatRun(ctx, live.ID); err != nil {
		t.Fatalf("HeartbeatRun: %v", err)
	}

	reaped, err := st.ReapStaleRuns(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("ReapStaleRuns: %v", err)
	}
	if len(reaped) != 1 || reaped[0].ID != stale.ID {
		t.Fatalf("expected exactly the quiet run to be reaped, got %v", reaped)
	}
	if reaped[0].ErrorReason != store.ReasonStale {
		t.Fatalf("expected reason %q, got %q", store.ReasonStale, reaped[0].ErrorReason)
	}

	got, err := st.GetRun(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != store.RunStatusFailed {
		t.Fatalf("expected reaped run failed, got %s", got.Status)
	}

	// The reaped kind is startable again; the live run still holds its gate.
	if _, err := st.TryStart(ctx, store.RunKindCollection); err != nil {
		t.Fatalf("TryStart after reap: %v", err)
	}
	if _, err := st.TryStart(ctx, store.RunKindGeneration); !errors.Is(err, store.ErrBusy) {
		t.Fatalf("expected live generation run to keep its gate, got %v", err)
	}
}

func TestReapStaleRunsResolvesSubSecondGrace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := st.TryStart(ctx, store.RunKindCollection)
	if err != nil {
		t.Fatalf("TryStart: %v", err)
	}

	// Quiet for well under a second; a sub-second grace must still see it.
	time.Sleep(60 * time.Millisecond)

	reaped, err := st.ReapStaleRuns(ctx, 25*time.Millisecond)
	if err != nil {
		t.Fatalf("ReapStaleRuns: %v", err)
	}
	if len(reaped) != 1 || reaped[0].ID != run.ID {
		t.Fatalf("expected run stale by tens of milliseconds to be reaped, got %v", reaped)
	}

	fresh, err := st.TryStart(ctx, store.RunKindCollection)
	if err != nil {
		t.Fatalf("TryStart after reap: %v", err)
	}
	reaped, err = st.ReapStaleRuns(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ReapStaleRuns fresh: %v", err)
	}
	if len(reaped) != 0 {
		t.Fatalf("expected fresh run %s to survive a generous grace, got %v", fresh.ID, reaped)
	}
}

func TestLastSuccessfulRunAndRecentRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if run, err := st.LastSuccessfulRun(ctx, store.RunKindCollection); err != nil || run != nil {
		t.Fatalf("expected no successful run yet, got %v / %v", run, err)
	}

	first, err := st.TryStart(ctx, store.RunKindCollection)
	if err != nil {
		t.Fatalf("TryStart: %v", err)
	}
	if err := st.SetRunCounts(ctx, first.ID, 30, 12); err != nil {
		t.Fatalf("SetRunCounts: %v", err)
	}
	if err := st.FinishRun(ctx, first.ID, store.RunStatusSucceeded, "", ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	second, err := st.TryStart(ctx, store.RunKindCollection)
	if err != nil {
		t.Fatalf("TryStart: %v", err)
	}
	if err := st.FinishRun(ctx, second.ID, store.RunStatusFailed, store.ReasonUnavailable, "feed down"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	last, err := st.LastSuccessfulRun(ctx, store.RunKindCollection)
	if err != nil {
		t.Fatalf("LastSuccessfulRun: %v", err)
	}
	if last == nil || last.ID != first.ID {
		t.Fatalf("expected first run as last success, got %v", last)
	}
	if last.ItemsCollected != 30 || last.ItemsNew != 12 {
		t.Fatalf("expected counts to persist, got %d/%d", last.ItemsCollected, last.ItemsNew)
	}

	recent, err := st.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(recent))
	}
}
