package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"devpulse/internal/apperrors"
	"devpulse/internal/domain/models"
)

type invitationRow struct {
	Token     string         `db:"token"`
	TeamID    string         `db:"team_id"`
	TeamName  string         `db:"team_name"`
	InviterID string         `db:"inviter_id"`
	Email     sql.NullString `db:"email"`
	Role      string         `db:"role"`
	CreatedAt int64          `db:"created_at"`
	ExpiresAt int64          `db:"expires_at"`
	UsedAt    sql.NullInt64  `db:"used_at"`
}

func (r invitationRow) toModel() models.Invitation {
	inv := models.Invitation{
		Token:     r.Token,
		TeamID:    r.TeamID,
		TeamName:  r.TeamName,
		InviterID: r.InviterID,
		Email:     r.Email.String,
		Role:      models.Role(r.Role),
		CreatedAt: fromMillis(r.CreatedAt),
		ExpiresAt: fromMillis(r.ExpiresAt),
	}
	if r.UsedAt.Valid {
		usedAt := fromMillis(r.UsedAt.Int64)
		inv.UsedAt = &usedAt
	}
	return inv
}

const selectInvitation = `
	SELECT
		i.token,
		i.team_id,
		t.name AS team_name,
		i.inviter_id,
		i.email,
		i.role,
		i.created_at,
		i.expires_at,
		i.used_at
	FROM invitations i
	JOIN teams t ON t.id = i.team_id
	WHERE i.token = ?
`

type InvitationRepo struct {
	storage *sqlx.DB
	teams   *TeamRepo
}

func NewInvitationRepo(storage *sqlx.DB) *InvitationRepo {
	return &InvitationRepo{
		storage: storage,
		teams:   NewTeamRepo(storage),
	}
}

func (r *InvitationRepo) CreateInvitation(ctx context.Context, inv models.Invitation) error {
	const op = "repo.invitation.CreateInvitation"

	query := r.storage.Rebind(`
		INSERT INTO invitations (token, team_id, inviter_id, email, role, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.storage.ExecContext(ctx, query,
		inv.Token, inv.TeamID, inv.InviterID, nullString(inv.Email), string(inv.Role),
		toMillis(inv.CreatedAt), toMillis(inv.ExpiresAt))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *InvitationRepo) GetInvitation(ctx context.Context, token string) (*models.Invitation, error) {
	const op = "repo.invitation.GetInvitation"

	var row invitationRow
	if err := r.storage.GetContext(ctx, &row, r.storage.Rebind(selectInvitation), token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvitationNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inv := row.toModel()
	return &inv, nil
}

// ConsumeInvitation redeems token for user in a single transaction. The
// invitation row and the team row stay locked until commit, so a token is
// redeemed at most once and the seat limit holds under concurrent joins.
func (r *InvitationRepo) ConsumeInvitation(ctx context.Context, token string, user models.User, now time.Time) (*models.Membership, error) {
	const op = "repo.invitation.ConsumeInvitation"

	tx, err := r.storage.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	var row invitationRow
	lockQuery := tx.Rebind(selectInvitation + lockClauseOf(r.storage, "i"))
	if err := tx.GetContext(ctx, &row, lockQuery, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvitationNotFound)
		}
		return nil, fmt.Errorf("%s: failed to load invitation: %w", op, err)
	}

	inv := row.toModel()
	if err := inv.Check(now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := r.teams.reserveSeat(ctx, tx, inv.TeamID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := insertUser(ctx, tx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	membership := models.Membership{
		TeamID:   inv.TeamID,
		UserID:   user.ID,
		Role:     inv.Role,
		JoinedAt: now,
	}
	if err := insertMembership(ctx, tx, membership); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	markQuery := tx.Rebind(`UPDATE invitations SET used_at = ? WHERE token = ? AND used_at IS NULL`)
	res, err := tx.ExecContext(ctx, markQuery, toMillis(now), token)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to mark invitation used: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%s: %w", op, apperrors.ErrInvitationUsed)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return &membership, nil
}
