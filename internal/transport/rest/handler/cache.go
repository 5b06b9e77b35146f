package handler

import (
	"net/http"

	"quotepulse/internal/service"
)

// CacheHandler exposes analysis cache diagnostics
type CacheHandler struct {
	complexitySvc *service.ComplexityService
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(complexitySvc *service.ComplexityService) *CacheHandler {
	return &CacheHandler{complexitySvc: complexitySvc}
}

// Stats handles GET /v1/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.complexitySvc.CacheStats())
}
