package router

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"devpulse/internal/http/v1/handler"
	"devpulse/internal/service"
)

type AuthRouter struct {
	handler *handler.AuthHandler
}

func NewAuthRouter(authService *service.AuthService, log *slog.Logger) *AuthRouter {
	return &AuthRouter{
		handler: handler.NewAuthHandler(authService, log),
	}
}

func (ar *AuthRouter) SetupRoutes(r chi.Router) {
	r.Post("/signup", ar.handler.Signup)
	r.Post("/login", ar.handler.Login)
}
