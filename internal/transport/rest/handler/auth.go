package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"quotepulse/internal/model"
	"quotepulse/internal/service"
)

// Authenticator exchanges operator credentials for a bearer token
type Authenticator interface {
	Login(username, password string) (*model.LoginResponse, error)
}

// AuthHandler serves the login endpoint
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login handles POST /v1/auth/login. Only bad credentials are a 401;
// anything else is an internal failure and its cause stays in the logs.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	resp, err := h.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		log.Info().Str("username", req.Username).Msg("Rejected login")
		writeError(w, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
		return
	case err != nil:
		log.Error().Err(err).Str("username", req.Username).Msg("Login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	log.Info().Str("userId", resp.UserID).Msg("User logged in")
	writeJSON(w, http.StatusOK, resp)
}
