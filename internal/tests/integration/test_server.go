package integration

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"devpulse/internal/config"
	"devpulse/internal/domain/models"
	v1 "devpulse/internal/http/v1"
	"devpulse/internal/lib/jwt"
	"devpulse/internal/lib/migrator"
	"devpulse/internal/mail"
	"devpulse/internal/repo"
	"devpulse/internal/service"
	"devpulse/internal/storage/sqlite"
)

const testBaseURL = "http://devpulse.test"

type TestServer struct {
	DB         *sqlx.DB
	Server     *httptest.Server
	Dispatcher *mail.Dispatcher
	Outbox     *RecordingSender

	storage *sqlite.Storage
}

// RecordingSender keeps every invitation email instead of sending it.
type RecordingSender struct {
	mu      sync.Mutex
	notices []models.InvitationNotice
}

func (s *RecordingSender) Send(_ context.Context, notice models.InvitationNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, notice)
	return nil
}

func (s *RecordingSender) Notices() []models.InvitationNotice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.InvitationNotice(nil), s.notices...)
}

func NewTestServer() (*TestServer, error) {
	storage, err := sqlite.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	if err := migrator.RunSQLiteMigrations(storage.GetDB(), log); err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db := storage.GetDB()

	userRepo := repo.NewUserRepo(db)
	teamRepo := repo.NewTeamRepo(db)
	invitationRepo := repo.NewInvitationRepo(db)

	outbox := &RecordingSender{}
	dispatcher := mail.NewDispatcher(log, outbox, config.MailConfig{
		SendTimeout:   time.Second,
		QueueSize:     16,
		Workers:       1,
		MaxAttempts:   1,
		RetryInterval: time.Millisecond,
	})
	dispatcher.Start()

	sessions := jwt.New("integration-secret", time.Hour)

	teamService := service.NewTeamService(log, teamRepo)
	invitationService := service.NewInvitationService(log, invitationRepo, teamRepo, dispatcher, testBaseURL)
	authService := service.NewAuthService(log, userRepo, invitationService, teamService, sessions, bcrypt.MinCost)

	r := chi.NewRouter()
	v1.SetupRoutes(r, &v1.RouterDependencies{
		AuthService:       authService,
		TeamService:       teamService,
		InvitationService: invitationService,
		Sessions:          sessions,
		DB:                db,
		RequestTimeout:    5 * time.Second,
	}, log)

	ts := httptest.NewServer(r)

	return &TestServer{
		DB:         db,
		Server:     ts,
		Dispatcher: dispatcher,
		Outbox:     outbox,
		storage:    storage,
	}, nil
}

// DrainMail waits until every queued email has been handed to the outbox.
func (s *TestServer) DrainMail() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Dispatcher.Stop(ctx)
}

func (s *TestServer) Close() {
	s.Server.Close()
	_ = s.DrainMail()
	s.storage.Close()
}
