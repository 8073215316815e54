package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"feedcast/internal/services"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	return slog.New(newPrettyHandler(buf, levelVar, false))
}

func TestPrettyHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(newTestLogger(&buf), "scheduler")

	logger.Info("tick fired", String("kind", "collection"), Int("items", 3))

	line := buf.String()
	if !strings.Contains(line, " INFO scheduler: tick fired") {
		t.Fatalf("unexpected line format: %q", line)
	}
	if !strings.Contains(line, "kind=collection") || !strings.Contains(line, "items=3") {
		t.Fatalf("expected key=value fields, got %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Warn("run failed", String("reason", "no candidates"))

	if !strings.Contains(buf.String(), `reason="no candidates"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestWithContextAddsRunFields(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf)

	ctx := services.WithRunID(context.Background(), "run-42")
	ctx = services.WithRunKind(ctx, "generation")

	WithContext(ctx, base).Info("step complete")

	line := buf.String()
	if !strings.Contains(line, "run_id=run-42") || !strings.Contains(line, "kind=generation") {
		t.Fatalf("expected run fields, got %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug {
		t.Fatal("expected debug level")
	}
	if parseLevel("") != slog.LevelInfo {
		t.Fatal("expected default info level")
	}
	if parseLevel("ERROR") != slog.LevelError {
		t.Fatal("expected error level")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Fatal("expected fallback to info")
	}
}
