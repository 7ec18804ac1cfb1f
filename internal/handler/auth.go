package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"swiftpay/internal/auth"
	"swiftpay/internal/middleware"
)

type AuthHandler struct {
	service   *auth.Service
	blacklist middleware.TokenBlacklist
	logger    Logger
}

func NewAuthHandler(service *auth.Service, blacklist middleware.TokenBlacklist, log Logger) *AuthHandler {
	return &AuthHandler{service: service, blacklist: blacklist, logger: log}
}

// Login authenticates a user and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.logger.Warn("Login failed", map[string]interface{}{"username": req.Username})
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Logout revokes the presented token. The blacklist entry lives only until
// the token would have expired on its own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	token, ok := middleware.TokenFromContext(r.Context())
	if !ok || token.Raw == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := h.blacklist.Blacklist(r.Context(), token.Raw, ttl); err != nil {
		h.logger.Error("Failed to revoke token", map[string]interface{}{"error": err.Error(), "user_id": p.ID})
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": p})
}
