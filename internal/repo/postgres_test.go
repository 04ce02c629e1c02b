package repo

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jmoiron/sqlx"

	"devpulse/internal/config"
	"devpulse/internal/lib/migrator"
	"devpulse/internal/storage/postgresql"
)

// newPostgresTestDB connects to the database described by the PG_*
// variables and empties it. Tests are skipped when PG_HOST is unset.
func newPostgresTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	if os.Getenv("PG_HOST") == "" {
		t.Skip("PG_HOST is not set, skipping postgres test")
	}

	var env struct {
		Postgres config.PostgresConfig `env-prefix:"PG_"`
	}
	if err := cleanenv.ReadEnv(&env); err != nil {
		t.Fatalf("read postgres config: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := migrator.RunMigrations(env.Postgres, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storage := postgresql.Init(env.Postgres)
	t.Cleanup(func() { storage.Close() })

	db := storage.GetDB()
	if _, err := db.Exec(`TRUNCATE invitations, memberships, teams, users CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

func TestPostgresConsumeInvitationConcurrentSameToken(t *testing.T) {
	raceSameToken(t, newPostgresTestDB(t))
}

func TestPostgresConsumeInvitationConcurrentLastSeats(t *testing.T) {
	raceLastSeats(t, newPostgresTestDB(t))
}
