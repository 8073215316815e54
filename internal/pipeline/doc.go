// Package pipeline coordinates collection and generation runs: it opens a
// ledger entry, keeps its heartbeat fresh, drives the feed, curator, and
// voice collaborators under per-step timeouts, and records the classified
// outcome. Manual CLI invocations and scheduler ticks share the same entry
// points and therefore the same single-run-per-kind gate.
package pipeline
