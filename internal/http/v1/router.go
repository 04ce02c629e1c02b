package v1

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"devpulse/internal/http/v1/handler"
	"devpulse/internal/http/v1/middleware"
	"devpulse/internal/http/v1/router"
	"devpulse/internal/service"
)

type Router interface {
	SetupRoutes(r chi.Router)
}

type RouterDependencies struct {
	AuthService       *service.AuthService
	TeamService       *service.TeamService
	InvitationService *service.InvitationService
	Sessions          middleware.TokenParser
	DB                handler.Pinger
	RequestTimeout    time.Duration
}

func SetupRoutes(r chi.Router, deps *RouterDependencies, log *slog.Logger) {
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimw.Recoverer)
	if deps.RequestTimeout > 0 {
		r.Use(chimw.Timeout(deps.RequestTimeout))
	}

	auth := middleware.Auth(deps.Sessions, log)

	routers := []Router{
		router.NewHealthRouter(deps.DB, log),
		router.NewAuthRouter(deps.AuthService, log),
		router.NewInvitationRouter(deps.InvitationService, auth, log),
		router.NewTeamRouter(deps.TeamService, auth, log),
	}

	for _, serviceRouter := range routers {
		serviceRouter.SetupRoutes(r)
	}
}
