package models

import (
	"time"

	"devpulse/internal/apperrors"
)

// InvitationTTL is how long an invitation stays consumable after creation.
const InvitationTTL = 7 * 24 * time.Hour

type Invitation struct {
	Token     string
	TeamID    string
	TeamName  string
	InviterID string
	Email     string
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Check reports why the invitation cannot be redeemed at now, or nil.
// Team capacity is checked separately since it depends on the team state.
func (i Invitation) Check(now time.Time) error {
	if i.UsedAt != nil {
		return apperrors.ErrInvitationUsed
	}
	if now.After(i.ExpiresAt) {
		return apperrors.ErrInvitationExpired
	}
	return nil
}

type InvitationReason string

const (
	ReasonNotFound    InvitationReason = "not_found"
	ReasonAlreadyUsed InvitationReason = "already_used"
	ReasonExpired     InvitationReason = "expired"
)

// InvitationStatus is the read-only view of a token used to prefill signup.
type InvitationStatus struct {
	Valid    bool
	TeamName string
	Email    string
	Reason   InvitationReason
}

// InvitationLink is returned to the inviter.
type InvitationLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// InvitationNotice is the payload handed to the email dispatcher.
type InvitationNotice struct {
	To          string
	TeamName    string
	InviterName string
	URL         string
	ExpiresAt   time.Time
}
