package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"devpulse/internal/apperrors"
	"devpulse/internal/domain/models"
)

type membershipRow struct {
	TeamID   string `db:"team_id"`
	UserID   string `db:"user_id"`
	Role     string `db:"role"`
	JoinedAt int64  `db:"joined_at"`
}

func (r membershipRow) toModel() models.Membership {
	return models.Membership{
		TeamID:   r.TeamID,
		UserID:   r.UserID,
		Role:     models.Role(r.Role),
		JoinedAt: fromMillis(r.JoinedAt),
	}
}

type memberRow struct {
	UserID   string `db:"user_id"`
	Name     string `db:"name"`
	Email    string `db:"email"`
	Role     string `db:"role"`
	JoinedAt int64  `db:"joined_at"`
}

type teamRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Slug      string `db:"slug"`
	CreatedAt int64  `db:"created_at"`
}

type TeamRepo struct {
	storage *sqlx.DB
}

func NewTeamRepo(storage *sqlx.DB) *TeamRepo {
	return &TeamRepo{storage: storage}
}

func (r *TeamRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	const op = "repo.team.SlugExists"

	query := r.storage.Rebind(`SELECT COUNT(*) FROM teams WHERE slug = ?`)

	var count int
	if err := r.storage.GetContext(ctx, &count, query, slug); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return count > 0, nil
}

// CreateTeamWithOwner creates owner, team and the owner membership in one
// transaction. A taken slug yields ErrSlugTaken and nothing is persisted.
func (r *TeamRepo) CreateTeamWithOwner(ctx context.Context, team models.Team, owner models.User) error {
	const op = "repo.team.CreateTeamWithOwner"

	tx, err := r.storage.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	if err := insertUser(ctx, tx, owner); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	teamQuery := tx.Rebind(`INSERT INTO teams (id, name, slug, created_at) VALUES (?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, teamQuery, team.ID, team.Name, team.Slug, toMillis(team.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, apperrors.ErrSlugTaken)
		}
		return fmt.Errorf("%s: failed to create team: %w", op, err)
	}

	membership := models.Membership{
		TeamID:   team.ID,
		UserID:   owner.ID,
		Role:     models.RoleOwner,
		JoinedAt: team.CreatedAt,
	}
	if err := insertMembership(ctx, tx, membership); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

// AddMember atomically checks the seat limit and inserts the membership.
func (r *TeamRepo) AddMember(ctx context.Context, membership models.Membership) error {
	const op = "repo.team.AddMember"

	tx, err := r.storage.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	if err := r.addMemberTx(ctx, tx, membership); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

func (r *TeamRepo) addMemberTx(ctx context.Context, tx *sqlx.Tx, membership models.Membership) error {
	if err := r.reserveSeat(ctx, tx, membership.TeamID); err != nil {
		return err
	}
	return insertMembership(ctx, tx, membership)
}

// reserveSeat locks the team row and fails with ErrTeamFull when no seat is
// left. The lock is held until tx ends, so concurrent joins on the same team
// serialize between the count and the insert.
func (r *TeamRepo) reserveSeat(ctx context.Context, tx *sqlx.Tx, teamID string) error {
	lockQuery := tx.Rebind(`SELECT id FROM teams WHERE id = ?` + lockClause(r.storage))

	var locked string
	if err := tx.GetContext(ctx, &locked, lockQuery, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.ErrTeamNotFound
		}
		return fmt.Errorf("failed to lock team: %w", err)
	}

	count, err := countMembers(ctx, tx, teamID)
	if err != nil {
		return err
	}
	if count >= models.MaxTeamMembers {
		return apperrors.ErrTeamFull
	}
	return nil
}

func insertMembership(ctx context.Context, tx *sqlx.Tx, m models.Membership) error {
	query := tx.Rebind(`INSERT INTO memberships (team_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`)

	_, err := tx.ExecContext(ctx, query, m.TeamID, m.UserID, string(m.Role), toMillis(m.JoinedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyMember
		}
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// rebindQueryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type rebindQueryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func countMembers(ctx context.Context, q rebindQueryer, teamID string) (int, error) {
	query := q.Rebind(`SELECT COUNT(*) FROM memberships WHERE team_id = ?`)

	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, teamID); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func (r *TeamRepo) CountMembers(ctx context.Context, teamID string) (int, error) {
	const op = "repo.team.CountMembers"

	count, err := countMembers(ctx, r.storage, teamID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

func (r *TeamRepo) GetMembershipByUser(ctx context.Context, userID string) (*models.Membership, error) {
	const op = "repo.team.GetMembershipByUser"

	query := r.storage.Rebind(`SELECT team_id, user_id, role, joined_at FROM memberships WHERE user_id = ?`)

	var row membershipRow
	if err := r.storage.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrNotTeamMember)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	membership := row.toModel()
	return &membership, nil
}

func (r *TeamRepo) GetTeamWithMembers(ctx context.Context, teamID string) (*models.Team, error) {
	const op = "repo.team.GetTeamWithMembers"

	teamQuery := r.storage.Rebind(`SELECT id, name, slug, created_at FROM teams WHERE id = ?`)

	var tr teamRow
	if err := r.storage.GetContext(ctx, &tr, teamQuery, teamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrTeamNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	membersQuery := r.storage.Rebind(`
		SELECT
			u.id AS user_id,
			u.name,
			u.email,
			m.role,
			m.joined_at
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.team_id = ?
		ORDER BY m.joined_at, u.name
	`)

	var rows []memberRow
	if err := r.storage.SelectContext(ctx, &rows, membersQuery, teamID); err != nil {
		return nil, fmt.Errorf("%s: failed to get team members: %w", op, err)
	}

	members := make([]models.Member, len(rows))
	for i, row := range rows {
		members[i] = models.Member{
			UserID:   row.UserID,
			Name:     row.Name,
			Email:    row.Email,
			Role:     models.Role(row.Role),
			JoinedAt: fromMillis(row.JoinedAt),
		}
	}

	return &models.Team{
		ID:        tr.ID,
		Name:      tr.Name,
		Slug:      tr.Slug,
		CreatedAt: fromMillis(tr.CreatedAt),
		Members:   members,
	}, nil
}
