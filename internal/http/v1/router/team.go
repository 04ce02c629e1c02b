package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"devpulse/internal/http/v1/handler"
	"devpulse/internal/service"
)

type TeamRouter struct {
	handler *handler.TeamHandler
	auth    func(http.Handler) http.Handler
}

func NewTeamRouter(teamService *service.TeamService, auth func(http.Handler) http.Handler, log *slog.Logger) *TeamRouter {
	return &TeamRouter{
		handler: handler.NewTeamHandler(teamService, log),
		auth:    auth,
	}
}

func (tr *TeamRouter) SetupRoutes(r chi.Router) {
	r.With(tr.auth).Get("/team", tr.handler.GetTeam)
}
