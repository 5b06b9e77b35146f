package rest

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"quotepulse/internal/repository"
	"quotepulse/internal/service"
	"quotepulse/internal/transport/rest/handler"
	"quotepulse/internal/transport/rest/middleware"
	"quotepulse/internal/transport/ws"
)

const maxBodyBytes = 1 << 20

// CORSConfig holds the allowed CORS values; empty fields take defaults
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods string
	AllowedHeaders string
}

// Container holds all dependencies for the router
type Container struct {
	AuthService       *service.AuthService
	ComplexityService *service.ComplexityService
	SurveyTargeter    *service.SurveyTargeter
	SurveyEvents      repository.SurveyEventRepo
	WSHub             *ws.Hub
	CORS              CORSConfig
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	quoteHandler := handler.NewQuoteHandler(c.ComplexityService, c.SurveyTargeter)
	surveyHandler := handler.NewSurveyHandler(c.SurveyTargeter, c.SurveyEvents)
	cacheHandler := handler.NewCacheHandler(c.ComplexityService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.CORS))
	r.Use(middleware.RequestLogger)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.MaxBodySize(maxBodyBytes))

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	if c.WSHub != nil {
		wsHandler := ws.NewHandler(c.WSHub, c.AuthService)
		v1.HandleFunc("/ws/users/{userId}", wsHandler.UserWS).Methods("GET")
	}

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// User routes (require user auth)
	userRoutes := v1.NewRoute().Subrouter()
	userRoutes.Use(authMW.RequireUser)

	userRoutes.HandleFunc("/quotes/analyze", quoteHandler.Analyze).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/quotes/{quoteId}", quoteHandler.Save).Methods("PUT", "OPTIONS")
	userRoutes.HandleFunc("/quotes/{quoteId}/complexity", quoteHandler.GetComplexity).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/quotes/{quoteId}/complexity", quoteHandler.InvalidateComplexity).Methods("DELETE", "OPTIONS")
	userRoutes.HandleFunc("/quotes/{quoteId}/survey", quoteHandler.TriggerSurvey).Methods("POST", "OPTIONS")

	userRoutes.HandleFunc("/users/{userId}/survey-history", surveyHandler.GetHistory).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/users/{userId}/survey-history", surveyHandler.ResetHistory).Methods("DELETE", "OPTIONS")
	userRoutes.HandleFunc("/users/{userId}/survey-events", surveyHandler.ListEvents).Methods("GET", "OPTIONS")

	userRoutes.HandleFunc("/cache/stats", cacheHandler.Stats).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(cfg CORSConfig) mux.MiddlewareFunc {
	allowedMethods := cfg.AllowedMethods
	if allowedMethods == "" {
		allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	allowedHeaders := cfg.AllowedHeaders
	if allowedHeaders == "" {
		allowedHeaders = "Content-Type, Authorization, X-Request-ID"
	}
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[strings.TrimSpace(o)] = true
	}
	wildcard := len(origins) == 0 || origins["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case wildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origins[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
