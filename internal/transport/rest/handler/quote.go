package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"quotepulse/internal/model"
	"quotepulse/internal/service"
	"quotepulse/internal/transport/rest/middleware"
)

// QuoteHandler handles quote complexity endpoints
type QuoteHandler struct {
	complexitySvc *service.ComplexityService
	targeter      *service.SurveyTargeter
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(complexitySvc *service.ComplexityService, targeter *service.SurveyTargeter) *QuoteHandler {
	return &QuoteHandler{
		complexitySvc: complexitySvc,
		targeter:      targeter,
	}
}

// AnalyzeRequest is the request body for analyzing an unsaved quote
type AnalyzeRequest struct {
	Quote   *model.Quote        `json:"quote"`
	Library []model.LibraryItem `json:"library,omitempty"`
	// User, when present, lets the analysis trigger a survey
	User *model.UserContext `json:"user,omitempty"`
}

// AnalyzeResponse is returned by the analyze endpoint. Drafts are never cached.
type AnalyzeResponse struct {
	Analysis        *model.ComplexityAnalysis `json:"analysis"`
	SurveyTriggered bool                      `json:"surveyTriggered"`
}

// ComplexityResponse is returned for a stored quote
type ComplexityResponse struct {
	Analysis  *model.ComplexityAnalysis `json:"analysis"`
	FromCache bool                      `json:"fromCache"`
}

// SurveyResponse is returned by the survey trigger endpoint
type SurveyResponse struct {
	Triggered bool                           `json:"triggered"`
	Context   *model.ComplexitySurveyContext `json:"context"`
}

// Analyze handles POST /v1/quotes/analyze
func (h *QuoteHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quote == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quote.UserID == "" {
		req.Quote.UserID = userID
	}
	if req.Quote.UserID != userID {
		writeError(w, http.StatusForbidden, "quote belongs to another user")
		return
	}

	analysis := h.complexitySvc.AnalyzeDraft(req.Quote, req.Library)

	resp := AnalyzeResponse{Analysis: analysis}
	if req.User != nil && h.targeter != nil {
		user := *req.User
		user.UserID = userID
		resp.SurveyTriggered = h.targeter.TriggerComplexityBasedSurvey(r.Context(), analysis, req.Quote, user)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Save handles PUT /v1/quotes/{quoteId}
func (h *QuoteHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	quoteID := mux.Vars(r)["quoteId"]

	var quote model.Quote
	if err := json.NewDecoder(r.Body).Decode(&quote); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quote.ID = quoteID
	quote.UserID = userID

	err := h.complexitySvc.SaveQuote(r.Context(), &quote)
	if errors.Is(err, service.ErrQuoteNotOwned) {
		writeError(w, http.StatusForbidden, "quote belongs to another user")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("quoteId", quoteID).Msg("Failed to save quote")
		writeError(w, http.StatusInternalServerError, "failed to save quote")
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// GetComplexity handles GET /v1/quotes/{quoteId}/complexity
func (h *QuoteHandler) GetComplexity(w http.ResponseWriter, r *http.Request) {
	_, analysis, fromCache, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, ComplexityResponse{Analysis: analysis, FromCache: fromCache})
}

// InvalidateComplexity handles DELETE /v1/quotes/{quoteId}/complexity
func (h *QuoteHandler) InvalidateComplexity(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	quoteID := mux.Vars(r)["quoteId"]

	quote, err := h.complexitySvc.GetQuote(r.Context(), quoteID)
	if err != nil && !errors.Is(err, service.ErrQuoteNotFound) {
		log.Error().Err(err).Str("quoteId", quoteID).Msg("Failed to load quote")
		writeError(w, http.StatusInternalServerError, "failed to load quote")
		return
	}
	if quote == nil || quote.UserID != userID {
		writeError(w, http.StatusNotFound, "quote not found")
		return
	}
	removed := h.complexitySvc.Invalidate(quoteID)
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": removed})
}

// TriggerSurvey handles POST /v1/quotes/{quoteId}/survey
func (h *QuoteHandler) TriggerSurvey(w http.ResponseWriter, r *http.Request) {
	var user model.UserContext
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, analysis, _, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	user.UserID = quote.UserID

	// Survey failures never surface to the caller; they read as "no survey"
	sc, err := h.targeter.DetermineSurvey(r.Context(), analysis, quote, user)
	if err != nil {
		log.Warn().Err(err).Str("quoteId", quote.ID).Msg("Failed to determine survey")
		writeJSON(w, http.StatusOK, SurveyResponse{})
		return
	}
	if sc == nil {
		writeJSON(w, http.StatusOK, SurveyResponse{})
		return
	}

	triggered := h.targeter.Trigger(r.Context(), sc)
	writeJSON(w, http.StatusOK, SurveyResponse{Triggered: triggered, Context: sc})
}

func (h *QuoteHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*model.Quote, *model.ComplexityAnalysis, bool, bool) {
	userID := middleware.GetUserID(r.Context())
	quoteID := mux.Vars(r)["quoteId"]

	quote, analysis, fromCache, err := h.complexitySvc.GetQuoteComplexity(r.Context(), quoteID)
	if errors.Is(err, service.ErrQuoteNotFound) {
		writeError(w, http.StatusNotFound, "quote not found")
		return nil, nil, false, false
	}
	if err != nil {
		log.Error().Err(err).Str("quoteId", quoteID).Msg("Failed to analyze quote")
		writeError(w, http.StatusInternalServerError, "failed to analyze quote")
		return nil, nil, false, false
	}
	if quote.UserID != userID {
		writeError(w, http.StatusNotFound, "quote not found")
		return nil, nil, false, false
	}
	return quote, analysis, fromCache, true
}
