package stage

import "strings"

// Stage represents how far an item has progressed through the pipeline.
type Stage string

const (
	Collected Stage = "collected"
	Curated   Stage = "curated"
	Scripted  Stage = "scripted"
	Rendered  Stage = "rendered"
)

var ordered = []Stage{Collected, Curated, Scripted, Rendered}

var ranks = func() map[Stage]int {
	m := make(map[Stage]int, len(ordered))
	for i, s := range ordered {
		m[s] = i
	}
	return m
}()

// All returns the known stages in pipeline order.
func All() []Stage {
	cp := make([]Stage, len(ordered))
	copy(cp, ordered)
	return cp
}

// Parse converts a string into a known Stage.
func Parse(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := ranks[normalized]
	return normalized, ok
}

// Rank returns the ordinal position of a stage, or -1 for an unknown stage.
func Rank(s Stage) int {
	if r, ok := ranks[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether the stage is one of the known values.
func Valid(s Stage) bool {
	_, ok := ranks[s]
	return ok
}

// CanAdvance reports whether next is exactly one step forward from current.
// Items never skip stages and never move backwards.
func CanAdvance(current, next Stage) bool {
	cr, ok := ranks[current]
	if !ok {
		return false
	}
	nr, ok := ranks[next]
	if !ok {
		return false
	}
	return nr == cr+1
}
