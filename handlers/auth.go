package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/CrowderSoup/kanban/database"
	"github.com/CrowderSoup/kanban/services"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles authentication-related endpoints
type AuthHandler struct {
	authService *services.AuthService
	dataService *database.DataService
	exposeLink  bool
}

// NewAuthHandler builds the auth endpoints. With exposeLink set the login response
// carries the magic link itself, for development without SMTP.
func NewAuthHandler(authService *services.AuthService, dataService *database.DataService, exposeLink bool) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		dataService: dataService,
		exposeLink:  exposeLink,
	}
}

// Login handles the login request (sending a magic link)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	// Parse request body
	var req struct {
		Email string `json:"email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	// Validate the email
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		http.Error(w, "Invalid email address", http.StatusBadRequest)
		return
	}

	// Build the base URL for the link
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	// Generate and send the magic link
	magicLink, err := h.authService.GenerateMagicLink(req.Email, baseURL)
	if err != nil {
		log.Error().Err(err).Str("email", req.Email).Msg("failed to generate magic link")
		http.Error(w, "Failed to generate login link", http.StatusInternalServerError)
		return
	}

	// Return the link itself only in development
	resp := map[string]string{
		"status":  "success",
		"message": "Magic link has been sent",
	}
	if h.exposeLink {
		resp["magicLink"] = magicLink
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMagicLink processes a magic link token and redirects to the frontend
func (h *AuthHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	// Verify the token
	email, err := h.authService.VerifyMagicLinkToken(token)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusBadRequest)
		return
	}

	// Record the user
	if h.dataService != nil {
		if err := h.dataService.EnsureUser(r.Context(), email); err != nil {
			log.Error().Err(err).Str("email", email).Msg("failed to record user")
			http.Error(w, "Authentication error", http.StatusInternalServerError)
			return
		}
	}

	// Create a session token
	jwtToken, err := h.authService.CreateJWT(email)
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("failed to create session token")
		http.Error(w, "Authentication error", http.StatusInternalServerError)
		return
	}

	// Redirect to the frontend with the token
	redirectURL := fmt.Sprintf("/?token=%s&email=%s", url.QueryEscape(jwtToken), url.QueryEscape(email))
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// VerifyToken checks if a JWT token is valid
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := bearerToken(r)
	if !ok {
		http.Error(w, "Missing authorization header", http.StatusUnauthorized)
		return
	}

	// Verify the token
	email, err := h.authService.VerifyJWT(tokenString)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"email":  email,
		"status": "valid",
	})
}
