package mail

import (
	"bytes"
	"fmt"
	"html/template"

	"devpulse/internal/domain/models"
)

var invitationTmpl = template.Must(template.New("invitation").Parse(`<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto;">
  <h2 style="color: #22c55e;">You've been invited to DevPulse</h2>
  <p>
    <strong>{{.InviterName}}</strong> has invited you to join
    <strong>{{.TeamName}}</strong> on DevPulse, the developer health &amp; burnout radar.
  </p>
  <p>This invitation expires on {{.ExpiresAt.Format "January 2, 2006"}}.</p>
  <a href="{{.URL}}" style="display: inline-block; background: #22c55e; color: #000; padding: 12px 24px; border-radius: 6px; text-decoration: none; font-weight: 600; margin: 16px 0;">
    Accept Invitation
  </a>
  <p style="color: #64748b; font-size: 13px;">Or copy this link: {{.URL}}</p>
</div>
`))

func invitationSubject(notice models.InvitationNotice) string {
	return fmt.Sprintf("You're invited to join %s on DevPulse", notice.TeamName)
}

func renderInvitation(notice models.InvitationNotice) (string, error) {
	var buf bytes.Buffer
	if err := invitationTmpl.Execute(&buf, notice); err != nil {
		return "", fmt.Errorf("mail.renderInvitation: %w", err)
	}
	return buf.String(), nil
}
