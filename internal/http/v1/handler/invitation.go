package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"devpulse/internal/apperrors"
	"devpulse/internal/domain/models"
	"devpulse/internal/http/v1/middleware"
	"devpulse/internal/lib/logger/sl"
	"devpulse/internal/service"
)

type ValidateInvitationResponse struct {
	Valid    bool                    `json:"valid"`
	TeamName string                  `json:"teamName,omitempty"`
	Email    string                  `json:"email,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Reason   models.InvitationReason `json:"reason,omitempty"`
}

var invalidReasonMessages = map[models.InvitationReason]string{
	models.ReasonNotFound:    "Invalid invitation link",
	models.ReasonAlreadyUsed: "This invitation has already been used",
	models.ReasonExpired:     "This invitation has expired",
}

type InvitationHandler struct {
	invitationService *service.InvitationService
	log               *slog.Logger
}

func NewInvitationHandler(invitationService *service.InvitationService, log *slog.Logger) *InvitationHandler {
	return &InvitationHandler{
		invitationService: invitationService,
		log:               log,
	}
}

func (h *InvitationHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	const op = "handler.invitation.CreateInvitation"

	log := h.log.With(slog.String("op", op))

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, log, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req service.CreateInvitationInput
	if err := decodeJSON(r, w, &req); err != nil {
		log.Warn("invalid request body", sl.Err(err))
		writeError(w, log, http.StatusBadRequest, msgInvalidBody)
		return
	}

	link, err := h.invitationService.CreateInvitation(r.Context(), principal, req)
	if err != nil {
		if msg, ok := inputMessage(err); ok {
			writeError(w, log, http.StatusBadRequest, msg)
			return
		}
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			writeError(w, log, http.StatusForbidden, "Only team owners and admins can send invitations")
		case errors.Is(err, apperrors.ErrTeamFull):
			writeError(w, log, http.StatusBadRequest, "Your team has reached the maximum of 10 members")
		default:
			log.Error("failed to create invitation", sl.Err(err))
			writeError(w, log, http.StatusInternalServerError, msgInternal)
		}
		return
	}

	writeJSON(w, log, http.StatusOK, link)
}

// ValidateInvitation answers 200 for any well-formed request; an unusable
// token is reported in the body.
func (h *InvitationHandler) ValidateInvitation(w http.ResponseWriter, r *http.Request) {
	const op = "handler.invitation.ValidateInvitation"

	log := h.log.With(slog.String("op", op))

	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, log, http.StatusBadRequest, "Token is required")
		return
	}

	status, err := h.invitationService.ValidateInvitation(r.Context(), token)
	if err != nil {
		log.Error("failed to validate invitation", sl.Err(err))
		writeError(w, log, http.StatusInternalServerError, msgInternal)
		return
	}

	resp := ValidateInvitationResponse{
		Valid:    status.Valid,
		TeamName: status.TeamName,
		Email:    status.Email,
	}
	if !status.Valid {
		resp.Reason = status.Reason
		resp.Error = invalidReasonMessages[status.Reason]
	}

	writeJSON(w, log, http.StatusOK, resp)
}
