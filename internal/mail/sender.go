// Package mail delivers invitation emails outside the request path.
package mail

import (
	"context"
	"log/slog"

	"devpulse/internal/domain/models"
)

// Sender delivers a single invitation email.
type Sender interface {
	Send(ctx context.Context, notice models.InvitationNotice) error
}

// LogSender writes invitations to the log instead of sending them. It is
// used when no mail provider is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, notice models.InvitationNotice) error {
	s.log.Info("invitation email (not sent)",
		slog.String("to", notice.To),
		slog.String("team", notice.TeamName),
		slog.String("url", notice.URL),
	)
	return nil
}
