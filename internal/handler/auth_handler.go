package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/auth"
	"github.com/openshelf/openshelf/internal/domain"
	"github.com/openshelf/openshelf/internal/service"
)

// AuthHandler handles registration and token endpoints.
type AuthHandler struct {
	userService *service.UserService
	tokens      *auth.TokenManager
	refresh     *auth.RefreshStore
	logger      zerolog.Logger
}

// AuthHandlerConfig contains configuration for the auth handler.
type AuthHandlerConfig struct {
	UserService *service.UserService
	Tokens      *auth.TokenManager
	Refresh     *auth.RefreshStore
	Logger      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		userService: cfg.UserService,
		tokens:      cfg.Tokens,
		refresh:     cfg.Refresh,
		logger:      cfg.Logger.With().Str("handler", "auth").Logger(),
	}
}

// RegisterRoutes registers auth routes. All of them are public.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/token/refresh", h.handleRefresh)
}

// registerRequest is the body for POST /auth/register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse is the body for successful login and refresh.
type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

// handleRegister creates a new account. Self-registration never grants
// admin; promotion happens through the admin CLI.
func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// loginRequest is the body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin verifies credentials and issues a token pair.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.issueTokens(w, r, user.ID, func() (*tokenResponse, error) {
		accessToken, expiresAt, err := h.tokens.IssueAccess(user)
		if err != nil {
			return nil, err
		}
		return &tokenResponse{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			ExpiresAt:   expiresAt,
		}, nil
	})
}

// refreshRequest is the body for POST /auth/token/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh rotates a refresh token and issues a new access token.
func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	userID, nextRefresh, err := h.refresh.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		// A token for a deleted account answers like an unknown token.
		if errors.Is(err, domain.ErrUserNotFound) {
			err = auth.ErrRefreshTokenNotFound
		}
		writeError(w, h.logger, err)
		return
	}

	accessToken, expiresAt, err := h.tokens.IssueAccess(user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresAt:    expiresAt,
		RefreshToken: nextRefresh,
	})
}

// issueTokens pairs an access token with a fresh refresh token.
func (h *AuthHandler) issueTokens(w http.ResponseWriter, r *http.Request, userID int64, makeAccess func() (*tokenResponse, error)) {
	resp, err := makeAccess()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	refreshToken, err := h.refresh.Issue(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp.RefreshToken = refreshToken

	writeJSON(w, http.StatusOK, resp)
}
