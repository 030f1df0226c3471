package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/apexf1/pitwall/internal/collector"
	"github.com/apexf1/pitwall/internal/replay"
	"github.com/apexf1/pitwall/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	collector *collector.Service
	aligner   *replay.Aligner
	logger    *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(collectorService *collector.Service, aligner *replay.Aligner, log *logger.Logger) *Handler {
	return &Handler{
		collector: collectorService,
		aligner:   aligner,
		logger:    log.Named("api-handler"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

func (h *Handler) sessionKey(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "sessionKey"))
}

// GetHealth returns the service health status
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetSessions returns the race calendar for the current season
func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.collector.RaceCalendar(r.Context())
	if err != nil {
		h.logger.Error("Failed to get race calendar", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to get race calendar")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// GetTrainingData returns the joined lap dataset for one session
func (h *Handler) GetTrainingData(w http.ResponseWriter, r *http.Request) {
	sessionKey, err := h.sessionKey(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid session key")
		return
	}

	rows, persisted, err := h.collector.TrainingData(r.Context(), sessionKey)
	if err != nil {
		h.logger.Error("Failed to get training data",
			logger.Error(err),
			logger.Int("session_key", sessionKey))
		h.writeError(w, http.StatusInternalServerError, "failed to get training data")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_key": sessionKey,
		"persisted":   persisted,
		"count":       len(rows),
		"laps":        rows,
	})
}

// GetReplay returns the session's position series aligned to a shared
// one-second timeline
func (h *Handler) GetReplay(w http.ResponseWriter, r *http.Request) {
	sessionKey, err := h.sessionKey(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid session key")
		return
	}

	rows, persisted, err := h.collector.Telemetry(r.Context(), sessionKey)
	if err != nil {
		h.logger.Error("Failed to get telemetry",
			logger.Error(err),
			logger.Int("session_key", sessionKey))
		h.writeError(w, http.StatusInternalServerError, "failed to get telemetry")
		return
	}

	drivers, err := h.collector.Drivers(r.Context(), sessionKey)
	if err != nil {
		h.logger.Warn("Failed to get drivers for replay",
			logger.Error(err),
			logger.Int("session_key", sessionKey))
	}

	frames := h.aligner.Align(rows, drivers)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_key": sessionKey,
		"persisted":   persisted,
		"count":       len(frames),
		"frames":      frames,
	})
}

// GetLeaderboard returns the standings at one tick of the replay
// timeline, selected with the t query parameter (default 0)
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	sessionKey, err := h.sessionKey(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid session key")
		return
	}

	tick := 0
	if raw := r.URL.Query().Get("t"); raw != "" {
		tick, err = strconv.Atoi(raw)
		if err != nil || tick < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid timeline tick")
			return
		}
	}

	rows, _, err := h.collector.Telemetry(r.Context(), sessionKey)
	if err != nil {
		h.logger.Error("Failed to get telemetry",
			logger.Error(err),
			logger.Int("session_key", sessionKey))
		h.writeError(w, http.StatusInternalServerError, "failed to get telemetry")
		return
	}

	drivers, err := h.collector.Drivers(r.Context(), sessionKey)
	if err != nil {
		h.logger.Warn("Failed to get drivers for leaderboard",
			logger.Error(err),
			logger.Int("session_key", sessionKey))
	}

	frames := h.aligner.Align(rows, drivers)
	standings := h.aligner.Leaderboard(frames, tick)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_key": sessionKey,
		"race_time":   tick,
		"standings":   standings,
	})
}
