package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"devpulse/internal/apperrors"
	"devpulse/internal/http/v1/middleware"
	"devpulse/internal/lib/logger/sl"
	"devpulse/internal/service"
)

type TeamHandler struct {
	teamService *service.TeamService
	log         *slog.Logger
}

func NewTeamHandler(teamService *service.TeamService, log *slog.Logger) *TeamHandler {
	return &TeamHandler{
		teamService: teamService,
		log:         log,
	}
}

func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	const op = "handler.team.GetTeam"

	log := h.log.With(slog.String("op", op))

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, log, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	overview, err := h.teamService.GetTeamOverview(r.Context(), principal)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotTeamMember) {
			writeError(w, log, http.StatusNotFound, "You are not a member of any team")
			return
		}
		log.Error("failed to get team", sl.Err(err))
		writeError(w, log, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, log, http.StatusOK, overview)
}
