package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"devpulse/internal/domain/models"
)

// ResendSender delivers invitations through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) Send(ctx context.Context, notice models.InvitationNotice) error {
	const op = "mail.resend.Send"

	html, err := renderInvitation(notice)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{notice.To},
		Subject: invitationSubject(notice),
		Html:    html,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
