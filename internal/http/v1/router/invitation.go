package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"devpulse/internal/http/v1/handler"
	"devpulse/internal/service"
)

type InvitationRouter struct {
	handler *handler.InvitationHandler
	auth    func(http.Handler) http.Handler
}

func NewInvitationRouter(invitationService *service.InvitationService, auth func(http.Handler) http.Handler, log *slog.Logger) *InvitationRouter {
	return &InvitationRouter{
		handler: handler.NewInvitationHandler(invitationService, log),
		auth:    auth,
	}
}

func (ir *InvitationRouter) SetupRoutes(r chi.Router) {
	r.Get("/invitations", ir.handler.ValidateInvitation)
	r.With(ir.auth).Post("/invitations", ir.handler.CreateInvitation)
}
