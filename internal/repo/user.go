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

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Email        string         `db:"email"`
	PasswordHash sql.NullString `db:"password_hash"`
	CreatedAt    int64          `db:"created_at"`
}

func (r userRow) toModel() models.User {
	return models.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash.String,
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

type UserRepo struct {
	storage *sqlx.DB
}

func NewUserRepo(storage *sqlx.DB) *UserRepo {
	return &UserRepo{storage: storage}
}

func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	const op = "repo.user.EmailExists"

	query := r.storage.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`)

	var count int
	if err := r.storage.GetContext(ctx, &count, query, email); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return count > 0, nil
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "repo.user.GetUserByEmail"

	query := r.storage.Rebind(`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`)

	var row userRow
	if err := r.storage.GetContext(ctx, &row, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperrors.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := row.toModel()
	return &user, nil
}

func insertUser(ctx context.Context, tx *sqlx.Tx, user models.User) error {
	query := tx.Rebind(`
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	_, err := tx.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, nullString(user.PasswordHash), toMillis(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateAccount
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}
