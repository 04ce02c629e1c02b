package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"devpulse/internal/apperrors"
	"devpulse/internal/domain/models"
	"devpulse/internal/lib/logger/sl"
	"devpulse/internal/lib/token"
	"devpulse/internal/lib/validate"
)

type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv models.Invitation) error
	GetInvitation(ctx context.Context, token string) (*models.Invitation, error)
	ConsumeInvitation(ctx context.Context, token string, user models.User, now time.Time) (*models.Membership, error)
}

type MembershipProvider interface {
	GetMembershipByUser(ctx context.Context, userID string) (*models.Membership, error)
	CountMembers(ctx context.Context, teamID string) (int, error)
}

// Notifier hands an invitation email to the outbound delivery queue.
// Enqueue must not block; it reports false when the notice was dropped.
type Notifier interface {
	Enqueue(notice models.InvitationNotice) bool
}

type CreateInvitationInput struct {
	Email string      `json:"email" validate:"omitempty,email"`
	Role  models.Role `json:"role" validate:"omitempty,oneof=member admin"`
}

type InvitationService struct {
	log         *slog.Logger
	invitations InvitationStore
	memberships MembershipProvider
	notifier    Notifier
	baseURL     string
	newToken    func() (string, error)
	now         func() time.Time
}

func NewInvitationService(
	log *slog.Logger,
	invitations InvitationStore,
	memberships MembershipProvider,
	notifier Notifier,
	baseURL string) *InvitationService {
	return &InvitationService{
		log:         log,
		invitations: invitations,
		memberships: memberships,
		notifier:    notifier,
		baseURL:     strings.TrimRight(baseURL, "/"),
		newToken:    token.New,
		now:         time.Now,
	}
}

func (s *InvitationService) WithClock(now func() time.Time) *InvitationService {
	s.now = now
	return s
}

// InviteURL is the signup link that carries tok.
func (s *InvitationService) InviteURL(tok string) string {
	return s.baseURL + "/signup?invite=" + url.QueryEscape(tok)
}

func (s *InvitationService) CreateInvitation(ctx context.Context, principal models.Principal, input CreateInvitationInput) (*models.InvitationLink, error) {
	const op = "service.invitation.CreateInvitation"

	log := s.log.With(
		slog.String("op", op),
		slog.String("user_id", principal.UserID),
	)

	input.Email = normalizeEmail(input.Email)
	if err := validate.Struct(input); err != nil {
		log.Warn("invalid invitation input", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if input.Role == "" {
		input.Role = models.RoleMember
	}

	membership, err := s.memberships.GetMembershipByUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotTeamMember) {
			log.Warn("caller has no team")
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrForbidden)
		}
		log.Error("failed to get membership", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !membership.Role.CanInvite() {
		log.Warn("caller may not invite", slog.String("role", string(membership.Role)))
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrForbidden)
	}

	count, err := s.memberships.CountMembers(ctx, membership.TeamID)
	if err != nil {
		log.Error("failed to count members", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if count >= models.MaxTeamMembers {
		log.Warn("team is full", slog.Int("member_count", count))
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrTeamFull)
	}

	tok, err := s.newToken()
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	inv := models.Invitation{
		Token:     tok,
		TeamID:    membership.TeamID,
		InviterID: principal.UserID,
		Email:     input.Email,
		Role:      input.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(models.InvitationTTL),
	}

	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		log.Error("failed to create invitation", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	link := &models.InvitationLink{
		Token:     tok,
		URL:       s.InviteURL(tok),
		ExpiresAt: inv.ExpiresAt,
	}

	if inv.Email != "" {
		s.notify(ctx, log, principal, inv, link)
	}

	log.Info("invitation created", slog.String("team_id", inv.TeamID))

	return link, nil
}

// notify queues the invitation email. Failures are logged only.
func (s *InvitationService) notify(ctx context.Context, log *slog.Logger, principal models.Principal, inv models.Invitation, link *models.InvitationLink) {
	stored, err := s.invitations.GetInvitation(ctx, inv.Token)
	if err != nil {
		log.Error("failed to load invitation for email", sl.Err(err))
		return
	}

	notice := models.InvitationNotice{
		To:          inv.Email,
		TeamName:    stored.TeamName,
		InviterName: inviterName(principal),
		URL:         link.URL,
		ExpiresAt:   link.ExpiresAt,
	}
	if !s.notifier.Enqueue(notice) {
		log.Warn("invitation email dropped")
	}
}

func inviterName(p models.Principal) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return "Your team lead"
}

// ValidateInvitation reports whether token can currently be redeemed. It
// never mutates the invitation.
func (s *InvitationService) ValidateInvitation(ctx context.Context, tok string) (models.InvitationStatus, error) {
	const op = "service.invitation.ValidateInvitation"

	log := s.log.With(slog.String("op", op))

	inv, err := s.invitations.GetInvitation(ctx, tok)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvitationNotFound) {
			return models.InvitationStatus{Reason: models.ReasonNotFound}, nil
		}
		log.Error("failed to get invitation", sl.Err(err))
		return models.InvitationStatus{}, fmt.Errorf("%s: %w", op, err)
	}

	switch err := inv.Check(s.now()); {
	case errors.Is(err, apperrors.ErrInvitationUsed):
		return models.InvitationStatus{Reason: models.ReasonAlreadyUsed}, nil
	case errors.Is(err, apperrors.ErrInvitationExpired):
		return models.InvitationStatus{Reason: models.ReasonExpired}, nil
	}

	return models.InvitationStatus{
		Valid:    true,
		TeamName: inv.TeamName,
		Email:    inv.Email,
	}, nil
}

// ConsumeInvitation creates user and joins it to the invitation's team.
// All checks are repeated inside the store transaction.
func (s *InvitationService) ConsumeInvitation(ctx context.Context, tok string, user models.User) (*models.Membership, error) {
	const op = "service.invitation.ConsumeInvitation"

	log := s.log.With(
		slog.String("op", op),
		slog.String("user_id", user.ID),
	)

	membership, err := s.invitations.ConsumeInvitation(ctx, tok, user, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvitationNotFound),
			errors.Is(err, apperrors.ErrInvitationUsed),
			errors.Is(err, apperrors.ErrInvitationExpired),
			errors.Is(err, apperrors.ErrTeamFull),
			errors.Is(err, apperrors.ErrDuplicateAccount),
			errors.Is(err, apperrors.ErrAlreadyMember):
			log.Warn("invitation rejected", sl.Err(err))
		default:
			log.Error("failed to consume invitation", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("invitation consumed",
		slog.String("team_id", membership.TeamID),
		slog.String("role", string(membership.Role)))

	return membership, nil
}
