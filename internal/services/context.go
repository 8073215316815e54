package services

import (
	"context"
	"strings"
)

type contextKey int

const (
	runIDContextKey contextKey = iota
	runKindContextKey
)

// WithRunID annotates the context with the active run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDContextKey, runID)
}

// RunIDFromContext extracts the active run identifier, if set.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDContextKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// WithRunKind annotates the context with the active run kind.
func WithRunKind(ctx context.Context, kind string) context.Context {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return ctx
	}
	return context.WithValue(ctx, runKindContextKey, kind)
}

// RunKindFromContext extracts the active run kind, if set.
func RunKindFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	kind, ok := ctx.Value(runKindContextKey).(string)
	if !ok || kind == "" {
		return "", false
	}
	return kind, true
}
