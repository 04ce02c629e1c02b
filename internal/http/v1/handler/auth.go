package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"devpulse/internal/apperrors"
	"devpulse/internal/domain/models"
	"devpulse/internal/http/v1/middleware"
	"devpulse/internal/lib/logger/sl"
	"devpulse/internal/service"
)

type (
	SignupResponse struct {
		Success bool   `json:"success"`
		UserID  string `json:"userId"`
	}

	LoginResponse struct {
		Token     string      `json:"token"`
		ExpiresAt time.Time   `json:"expiresAt"`
		User      models.User `json:"user"`
	}
)

type AuthHandler struct {
	authService *service.AuthService
	log         *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	const op = "handler.auth.Signup"

	log := h.log.With(slog.String("op", op))

	var req service.SignupInput
	if err := decodeJSON(r, w, &req); err != nil {
		log.Warn("invalid request body", sl.Err(err))
		writeError(w, log, http.StatusBadRequest, msgInvalidBody)
		return
	}

	user, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		status, msg := signupError(err)
		if status == http.StatusInternalServerError {
			log.Error("signup failed", sl.Err(err))
		}
		writeError(w, log, status, msg)
		return
	}

	writeJSON(w, log, http.StatusOK, SignupResponse{Success: true, UserID: user.ID})
}

func signupError(err error) (int, string) {
	if msg, ok := inputMessage(err); ok {
		return http.StatusBadRequest, msg
	}

	switch {
	case errors.Is(err, apperrors.ErrDuplicateAccount):
		return http.StatusConflict, "An account with this email already exists"
	case errors.Is(err, apperrors.ErrAlreadyMember):
		return http.StatusConflict, "This account already belongs to a team"
	case errors.Is(err, apperrors.ErrInvitationNotFound):
		return http.StatusBadRequest, "Invalid invitation link"
	case errors.Is(err, apperrors.ErrInvitationUsed):
		return http.StatusBadRequest, "This invitation has already been used"
	case errors.Is(err, apperrors.ErrInvitationExpired):
		return http.StatusBadRequest, "This invitation link has expired"
	case errors.Is(err, apperrors.ErrTeamFull):
		return http.StatusBadRequest, "This team has reached the maximum of 10 members"
	}
	return http.StatusInternalServerError, msgInternal
}

// Login returns the session token in the body and also sets it as an
// HTTP-only cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handler.auth.Login"

	log := h.log.With(slog.String("op", op))

	var req service.LoginInput
	if err := decodeJSON(r, w, &req); err != nil {
		log.Warn("invalid request body", sl.Err(err))
		writeError(w, log, http.StatusBadRequest, msgInvalidBody)
		return
	}

	session, err := h.authService.Login(r.Context(), req)
	if err != nil {
		if msg, ok := inputMessage(err); ok {
			writeError(w, log, http.StatusBadRequest, msg)
			return
		}
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			writeError(w, log, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		log.Error("login failed", sl.Err(err))
		writeError(w, log, http.StatusInternalServerError, msgInternal)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, log, http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
	})
}
