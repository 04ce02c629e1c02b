package migrator

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"devpulse/internal/config"
	pgstorage "devpulse/internal/storage/postgresql"
)

//go:embed migrations/*.sql
var fs embed.FS

// RunMigrations up migrations files from embed.FS - fs, over a dedicated
// connection that is closed afterwards.
func RunMigrations(cfg config.PostgresConfig, log *slog.Logger) error {
	const op = "migrator.RunMigrations"

	migrationDB, err := sqlx.Connect("postgres", pgstorage.DSN(cfg))
	if err != nil {
		return fmt.Errorf("%s: failed to connect: %w", op, err)
	}
	defer migrationDB.Close()

	driver, err := postgres.WithInstance(migrationDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("%s: failed to create driver: %w", op, err)
	}

	m, err := newMigrate(driver, "postgres")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	return up(m, log, op)
}

// RunSQLiteMigrations applies migrations to an already open SQLite database.
// The migrate instance is not closed, since that would close db.
func RunSQLiteMigrations(db *sqlx.DB, log *slog.Logger) error {
	const op = "migrator.RunSQLiteMigrations"

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("%s: failed to create driver: %w", op, err)
	}

	m, err := newMigrate(driver, "sqlite")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return up(m, log, op)
}

func newMigrate(driver database.Driver, name string) (*migrate.Migrate, error) {
	source, err := iofs.New(fs, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, name, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

func up(m *migrate.Migrate, log *slog.Logger, op string) error {
	log.Info("applying database migrations", slog.String("op", op))
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: migration failed: %w", op, err)
	}
	return nil
}
