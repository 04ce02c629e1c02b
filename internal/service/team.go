package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"devpulse/internal/apperrors"
	"devpulse/internal/domain/models"
	"devpulse/internal/lib/logger/sl"
	"devpulse/internal/lib/slug"
)

// maxSlugAttempts bounds how many slugs are tried for one team name.
const maxSlugAttempts = 5

const msgTeamNameRequired = "Team name is required when creating a new team"

type TeamStore interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateTeamWithOwner(ctx context.Context, team models.Team, owner models.User) error
	AddMember(ctx context.Context, membership models.Membership) error
	GetMembershipByUser(ctx context.Context, userID string) (*models.Membership, error)
	GetTeamWithMembers(ctx context.Context, teamID string) (*models.Team, error)
}

type TeamService struct {
	log   *slog.Logger
	teams TeamStore
	now   func() time.Time
}

func NewTeamService(
	log *slog.Logger,
	teams TeamStore) *TeamService {
	return &TeamService{
		log:   log,
		teams: teams,
		now:   time.Now,
	}
}

func (s *TeamService) WithClock(now func() time.Time) *TeamService {
	s.now = now
	return s
}

// CreateTeamWithOwner creates owner together with a new team it owns. The
// slug is derived from teamName; on a collision a random suffix is appended
// and the insert is retried.
func (s *TeamService) CreateTeamWithOwner(ctx context.Context, owner models.User, teamName string) (*models.Team, error) {
	const op = "service.team.CreateTeamWithOwner"

	teamName = strings.TrimSpace(teamName)

	log := s.log.With(
		slog.String("op", op),
		slog.String("team_name", teamName),
	)

	if teamName == "" {
		log.Warn("team name is required")
		return nil, fmt.Errorf("%s: %w", op, apperrors.NewInputError(msgTeamNameRequired))
	}

	base := slug.Make(teamName)
	candidate := base

	exists, err := s.teams.SlugExists(ctx, base)
	if err != nil {
		log.Error("failed to check slug", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		candidate = slug.WithSuffix(base)
	}

	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		team := models.Team{
			ID:        uuid.NewString(),
			Name:      teamName,
			Slug:      candidate,
			CreatedAt: s.now().UTC(),
		}

		err := s.teams.CreateTeamWithOwner(ctx, team, owner)
		if err == nil {
			team.Members = []models.Member{{
				UserID:   owner.ID,
				Name:     owner.Name,
				Email:    owner.Email,
				Role:     models.RoleOwner,
				JoinedAt: team.CreatedAt,
			}}
			log.Info("team created", slog.String("slug", team.Slug), slog.Int("attempt", attempt))
			return &team, nil
		}

		if !errors.Is(err, apperrors.ErrSlugTaken) {
			if errors.Is(err, apperrors.ErrDuplicateAccount) {
				log.Warn("owner account already exists")
			} else {
				log.Error("failed to create team", sl.Err(err))
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		log.Debug("slug taken, retrying", slog.String("slug", candidate))
		candidate = slug.WithSuffix(base)
	}

	log.Error("no free slug found", slog.Int("attempts", maxSlugAttempts))
	return nil, fmt.Errorf("%s: %w", op, apperrors.ErrSlugTaken)
}

// AddMember joins an existing user to teamID. Owners are only assigned at
// team creation.
func (s *TeamService) AddMember(ctx context.Context, teamID, userID string, role models.Role) (*models.Membership, error) {
	const op = "service.team.AddMember"

	log := s.log.With(
		slog.String("op", op),
		slog.String("team_id", teamID),
		slog.String("user_id", userID),
	)

	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() || role == models.RoleOwner {
		log.Warn("invalid role", slog.String("role", string(role)))
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidRole)
	}

	membership := models.Membership{
		TeamID:   teamID,
		UserID:   userID,
		Role:     role,
		JoinedAt: s.now().UTC(),
	}

	if err := s.teams.AddMember(ctx, membership); err != nil {
		if errors.Is(err, apperrors.ErrTeamFull) || errors.Is(err, apperrors.ErrAlreadyMember) {
			log.Warn("member not added", sl.Err(err))
		} else {
			log.Error("failed to add member", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("member added", slog.String("role", string(role)))

	return &membership, nil
}

func (s *TeamService) GetTeamOverview(ctx context.Context, principal models.Principal) (*models.TeamOverview, error) {
	const op = "service.team.GetTeamOverview"

	log := s.log.With(
		slog.String("op", op),
		slog.String("user_id", principal.UserID),
	)

	membership, err := s.teams.GetMembershipByUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotTeamMember) {
			log.Warn("caller has no team")
		} else {
			log.Error("failed to get membership", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	team, err := s.teams.GetTeamWithMembers(ctx, membership.TeamID)
	if err != nil {
		log.Error("failed to get team", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TeamOverview{
		Team:      *team,
		Role:      membership.Role,
		SpotsLeft: team.SpotsLeft(),
		CanInvite: membership.Role.CanInvite(),
	}, nil
}
