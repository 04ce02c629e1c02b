package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"devpulse/internal/apperrors"
	"devpulse/internal/domain/models"
	"devpulse/internal/lib/logger/sl"
	"devpulse/internal/lib/validate"
)

type SignupInput struct {
	Name        string `json:"name" label:"Name" validate:"required,min=2,max=50"`
	Email       string `json:"email" label:"Email" validate:"required,email"`
	Password    string `json:"password" label:"Password" validate:"required,min=8"`
	TeamName    string `json:"teamName" label:"Team name" validate:"omitempty,min=2,max=50"`
	InviteToken string `json:"inviteToken"`
}

type LoginInput struct {
	Email    string `json:"email" label:"Email" validate:"required,email"`
	Password string `json:"password" label:"Password" validate:"required"`
}

type AccountProvider interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type InvitationConsumer interface {
	ConsumeInvitation(ctx context.Context, token string, user models.User) (*models.Membership, error)
}

type TeamCreator interface {
	CreateTeamWithOwner(ctx context.Context, owner models.User, teamName string) (*models.Team, error)
}

type SessionIssuer interface {
	Issue(user models.User) (string, time.Time, error)
}

type AuthService struct {
	log         *slog.Logger
	users       AccountProvider
	invitations InvitationConsumer
	teams       TeamCreator
	sessions    SessionIssuer
	bcryptCost  int
	now         func() time.Time
}

func NewAuthService(
	log *slog.Logger,
	users AccountProvider,
	invitations InvitationConsumer,
	teams TeamCreator,
	sessions SessionIssuer,
	bcryptCost int) *AuthService {
	return &AuthService{
		log:         log,
		users:       users,
		invitations: invitations,
		teams:       teams,
		sessions:    sessions,
		bcryptCost:  bcryptCost,
		now:         time.Now,
	}
}

func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Signup registers a new account. With an invite token the account joins
// the inviting team; otherwise it becomes the owner of a new team.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	const op = "service.auth.Signup"

	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	input.TeamName = strings.TrimSpace(input.TeamName)
	input.InviteToken = strings.TrimSpace(input.InviteToken)

	log := s.log.With(
		slog.String("op", op),
		slog.Bool("invited", input.InviteToken != ""),
	)

	if err := validate.Struct(input); err != nil {
		log.Warn("invalid signup input", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := s.users.EmailExists(ctx, input.Email)
	if err != nil {
		log.Error("failed to check email", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		log.Warn("email already registered")
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrDuplicateAccount)
	}

	if input.InviteToken == "" && input.TeamName == "" {
		log.Warn("team name is required")
		return nil, fmt.Errorf("%s: %w", op, apperrors.NewInputError(msgTeamNameRequired))
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(input.Password), s.bcryptCost)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}

	if input.InviteToken != "" {
		if _, err := s.invitations.ConsumeInvitation(ctx, input.InviteToken, user); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if _, err := s.teams.CreateTeamWithOwner(ctx, user, input.TeamName); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("user signed up", slog.String("user_id", user.ID))

	return &user, nil
}

// Login checks the password and issues a session token. Accounts without a
// password cannot log in this way.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*models.Session, error) {
	const op = "service.auth.Login"

	input.Email = normalizeEmail(input.Email)

	log := s.log.With(slog.String("op", op))

	if err := validate.Struct(input); err != nil {
		log.Warn("invalid login input", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			log.Warn("unknown email")
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidCredentials)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.PasswordHash == "" {
		log.Warn("account has no password", slog.String("user_id", user.ID))
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), bcryptInput(input.Password)); err != nil {
		log.Warn("password mismatch", slog.String("user_id", user.ID))
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvalidCredentials)
	}

	tok, expiresAt, err := s.sessions.Issue(*user)
	if err != nil {
		log.Error("failed to issue session", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("user_id", user.ID))

	return &models.Session{
		Token:     tok,
		ExpiresAt: expiresAt,
		User:      *user,
	}, nil
}

// bcryptMaxBytes is the longest input bcrypt hashes.
const bcryptMaxBytes = 72

// bcryptInput truncates password to the bytes bcrypt actually uses, so
// longer passwords keep working instead of being rejected.
func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptMaxBytes {
		return b[:bcryptMaxBytes]
	}
	return b
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
