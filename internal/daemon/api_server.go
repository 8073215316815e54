package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"feedcast/internal/config"
	"feedcast/internal/logging"
	"feedcast/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

type runPayload struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	ErrorReason    string     `json:"error_reason,omitempty"`
	Message        string     `json:"message,omitempty"`
	ItemsCollected int64      `json:"items_collected"`
	ItemsNew       int64      `json:"items_new"`
}

type statusPayload struct {
	Running      bool         `json:"running"`
	DatabasePath string       `json:"database_path"`
	LockFilePath string       `json:"lock_file_path"`
	ActiveRuns   []runPayload `json:"active_runs"`
}

type statsPayload struct {
	TotalItems     int64            `json:"total_items"`
	ItemsToday     int64            `json:"items_today"`
	CountsByStage  map[string]int64 `json:"counts_by_stage"`
	AverageScore   float64          `json:"average_score"`
	ScoredItems    int64            `json:"scored_items"`
	EpisodeCount   int64            `json:"episode_count"`
	LastCollection *runPayload      `json:"last_collection,omitempty"`
	LastGeneration *runPayload      `json:"last_generation,omitempty"`
}

type episodePayload struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	AudioPath       string    `json:"audio_path"`
	TranscriptPath  string    `json:"transcript_path"`
	ItemCount       int64     `json:"item_count"`
	DurationSeconds int64     `json:"duration_seconds"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	CreatedAt       time.Time `json:"created_at"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/stats", authMiddleware(token, srv.handleStats))
	mux.HandleFunc("/api/episodes", authMiddleware(token, srv.handleEpisodes))
	if d.metrics != nil {
		mux.Handle("/metrics", d.metrics.Handler())
	}

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := statusPayload{
		Running:      status.Running,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		ActiveRuns:   make([]runPayload, 0, len(status.ActiveRuns)),
	}
	for _, run := range status.ActiveRuns {
		payload.ActiveRuns = append(payload.ActiveRuns, convertRun(run))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.daemon.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := statsPayload{
		TotalItems:    stats.TotalItems,
		ItemsToday:    stats.ItemsToday,
		CountsByStage: make(map[string]int64, len(stats.CountsByStage)),
		AverageScore:  stats.AverageScore,
		ScoredItems:   stats.ScoredItems,
		EpisodeCount:  stats.EpisodeCount,
	}
	for st, count := range stats.CountsByStage {
		payload.CountsByStage[string(st)] = count
	}
	if stats.LastCollection != nil {
		converted := convertRun(stats.LastCollection)
		payload.LastCollection = &converted
	}
	if stats.LastGeneration != nil {
		converted := convertRun(stats.LastGeneration)
		payload.LastGeneration = &converted
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	episodes, err := s.daemon.store.ListEpisodes(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := make([]episodePayload, 0, len(episodes))
	for _, episode := range episodes {
		payload = append(payload, episodePayload{
			ID:              episode.ID,
			Title:           episode.Title,
			Description:     episode.Description,
			AudioPath:       episode.AudioPath,
			TranscriptPath:  episode.TranscriptPath,
			ItemCount:       episode.ItemCount,
			DurationSeconds: episode.DurationSeconds,
			WindowStart:     episode.WindowStart,
			WindowEnd:       episode.WindowEnd,
			CreatedAt:       episode.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string][]episodePayload{"episodes": payload})
}

func convertRun(run *store.Run) runPayload {
	return runPayload{
		ID:             run.ID,
		Kind:           string(run.Kind),
		Status:         string(run.Status),
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
		ErrorReason:    run.ErrorReason,
		Message:        run.Message,
		ItemsCollected: run.ItemsCollected,
		ItemsNew:       run.ItemsNew,
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
