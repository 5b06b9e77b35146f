package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"quotepulse/internal/repository"
	"quotepulse/internal/service"
	"quotepulse/internal/transport/rest/middleware"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

// SurveyHandler handles per-user survey history endpoints
type SurveyHandler struct {
	targeter *service.SurveyTargeter
	events   repository.SurveyEventRepo
}

// NewSurveyHandler creates a new survey handler. events may be nil.
func NewSurveyHandler(targeter *service.SurveyTargeter, events repository.SurveyEventRepo) *SurveyHandler {
	return &SurveyHandler{
		targeter: targeter,
		events:   events,
	}
}

// GetHistory handles GET /v1/users/{userId}/survey-history
func (h *SurveyHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := selfOnly(w, r)
	if !ok {
		return
	}

	shown, err := h.targeter.ShownSurveys(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to load survey history")
		writeError(w, http.StatusInternalServerError, "failed to load survey history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":  userID,
		"shown":   shown,
		"pending": h.targeter.Pending(userID),
	})
}

// ResetHistory handles DELETE /v1/users/{userId}/survey-history
func (h *SurveyHandler) ResetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := selfOnly(w, r)
	if !ok {
		return
	}

	if err := h.targeter.ResetUserHistory(r.Context(), userID); err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to reset survey history")
		writeError(w, http.StatusInternalServerError, "failed to reset survey history")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListEvents handles GET /v1/users/{userId}/survey-events
func (h *SurveyHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := selfOnly(w, r)
	if !ok {
		return
	}
	if h.events == nil {
		writeError(w, http.StatusNotImplemented, "event store not configured")
		return
	}

	limit := int64(defaultEventLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	list, err := h.events.ListByUser(r.Context(), userID, limit)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to list survey events")
		writeError(w, http.StatusInternalServerError, "failed to list survey events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": list})
}

func selfOnly(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := middleware.GetUserID(r.Context())
	userID := mux.Vars(r)["userId"]
	if caller == "" || caller != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return userID, true
}
