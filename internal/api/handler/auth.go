package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/api/models"
	"github.com/heyysiri/EcoTrail/internal/api/response"
	"github.com/heyysiri/EcoTrail/internal/auth"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *auth.Service
	logger      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *auth.Service, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Signup handles POST /v1/auth/signup - create an account.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req auth.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	tokenResp, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(w, r, "validation error", fieldErrors(verr.Fields))
		case errors.Is(err, auth.ErrUserExists):
			response.Conflict(w, r, "username already taken")
		default:
			h.logger.Error().Err(err).Msg("signup failed")
			response.InternalError(w, r, "signup failed")
		}
		return
	}

	response.Created(w, r, "/v1/me/points", tokenResp)
}

// Login handles POST /v1/auth/login - exchange credentials for tokens.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	tokenResp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Unauthorized(w, r, "invalid username or password")
			return
		}
		h.logger.Error().Err(err).Msg("login failed")
		response.InternalError(w, r, "login failed")
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// UpdatePassword handles POST /v1/auth/password - change the caller's password.
// All sessions are signed out; the client must log in again.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var req auth.UpdatePasswordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	err := h.authService.UpdatePassword(r.Context(), userID, req)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(w, r, "validation error", fieldErrors(verr.Fields))
		case errors.Is(err, auth.ErrInvalidCredentials):
			response.Unauthorized(w, r, "current password is incorrect")
		case errors.Is(err, auth.ErrUserNotFound):
			response.Unauthorized(w, r, "user not found")
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("password update failed")
			response.InternalError(w, r, "password update failed")
		}
		return
	}

	response.NoContent(w, r)
}

// RefreshToken handles POST /v1/auth/refresh - refresh access token.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req auth.RefreshTokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", fieldErrors(errs))
		return
	}

	tokenResp, err := h.authService.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			response.Unauthorized(w, r, "invalid refresh token")
			return
		}
		if errors.Is(err, auth.ErrRefreshTokenExpired) {
			response.Unauthorized(w, r, "refresh token has expired")
			return
		}
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Unauthorized(w, r, "user not found")
			return
		}

		h.logger.Error().Err(err).Msg("token refresh failed")
		response.InternalError(w, r, "token refresh failed")
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// Logout handles POST /v1/auth/logout - revoke current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req auth.RefreshTokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if req.RefreshToken == "" {
		response.BadRequest(w, r, "refreshToken is required", nil)
		return
	}

	if err := h.authService.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		h.logger.Error().Err(err).Msg("logout failed")
		response.InternalError(w, r, "logout failed")
		return
	}

	response.NoContent(w, r)
}

// LogoutAll handles POST /v1/auth/logout-all - revoke all sessions for the user.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	if err := h.authService.RevokeAllTokens(r.Context(), userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("logout-all failed")
		response.InternalError(w, r, "logout failed")
		return
	}

	response.NoContent(w, r)
}

func fieldErrors(errs []auth.FieldError) []models.FieldError {
	out := make([]models.FieldError, len(errs))
	for i, e := range errs {
		out[i] = models.FieldError{
			Field:   e.Field,
			Message: e.Message,
			Code:    e.Code,
		}
	}
	return out
}
