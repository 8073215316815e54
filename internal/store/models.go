package store

import (
	"errors"
	"strings"
	"time"

	"feedcast/internal/stage"
)

var (
	// ErrNotFound indicates the referenced item, run, or episode does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleTransition indicates a stage write that would regress or skip a step.
	ErrStaleTransition = errors.New("stale stage transition")
	// ErrBusy indicates a run of the same kind is already in progress.
	ErrBusy = errors.New("run already in progress")
	// ErrAlreadyFinished indicates a finished run was asked to finish with a
	// different terminal status.
	ErrAlreadyFinished = errors.New("run already finished")
)

// RunKind identifies which pipeline a run belongs to.
type RunKind string

const (
	RunKindCollection RunKind = "collection"
	RunKindGeneration RunKind = "generation"
)

// ParseRunKind converts a string into a known RunKind.
func ParseRunKind(value string) (RunKind, bool) {
	normalized := RunKind(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case RunKindCollection, RunKindGeneration:
		return normalized, true
	}
	return "", false
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Classified failure reasons recorded on failed runs.
const (
	ReasonAuthExpired  = "auth_expired"
	ReasonUnavailable  = "unavailable"
	ReasonNoCandidates = "no_candidates"
	ReasonProvider     = "provider"
	ReasonTimeout      = "timeout"
	ReasonInternal     = "internal"
	ReasonStale        = "stale"
)

// Post is a single feed post as observed during collection.
type Post struct {
	SourceID   string
	Author     string
	Body       string
	URL        string
	PostedAt   time.Time
	ObservedAt time.Time
	Likes      int64
	Reposts    int64
	Replies    int64
	Views      int64
}

// Item is a stored post together with its pipeline state.
type Item struct {
	ID              int64
	SourceID        string
	Author          string
	Body            string
	URL             string
	PostedAt        time.Time
	ObservedAt      time.Time
	Likes           int64
	Reposts         int64
	Replies         int64
	Views           int64
	Stage           stage.Stage
	InterestScore   *float64
	Topics          []string
	Summary         string
	CollectionRunID string
	EpisodeID       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Curation captures the analyzer output recorded against an item.
type Curation struct {
	Score   float64
	Topics  []string
	Summary string
}

// Run is one ledger entry for a collection or generation execution.
type Run struct {
	ID             string
	Kind           RunKind
	Status         RunStatus
	StartedAt      time.Time
	HeartbeatAt    *time.Time
	FinishedAt     *time.Time
	ErrorReason    string
	Message        string
	ItemsCollected int64
	ItemsNew       int64
}

// Episode is a rendered daily episode.
type Episode struct {
	ID              string
	Title           string
	Description     string
	Script          string
	AudioPath       string
	TranscriptPath  string
	ItemCount       int64
	DurationSeconds int64
	WindowStart     time.Time
	WindowEnd       time.Time
	GenerationRunID string
	CreatedAt       time.Time
}
