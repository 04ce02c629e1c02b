package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"devpulse/internal/app/rest"
	"devpulse/internal/config"
	v1 "devpulse/internal/http/v1"
	"devpulse/internal/lib/jwt"
	"devpulse/internal/lib/logger/sl"
	"devpulse/internal/lib/migrator"
	"devpulse/internal/mail"
	"devpulse/internal/repo"
	"devpulse/internal/service"
	"devpulse/internal/storage/postgresql"
	"devpulse/internal/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	log        *slog.Logger
	storage    io.Closer
	dispatcher *mail.Dispatcher
	restApp    *rest.App
}

func MustNew(log *slog.Logger, cfg *config.Config) *App {
	db, storage := mustOpenStorage(log, cfg)

	userRepo := repo.NewUserRepo(db)
	teamRepo := repo.NewTeamRepo(db)
	invitationRepo := repo.NewInvitationRepo(db)

	dispatcher := mail.NewDispatcher(log, newSender(log, cfg.Mail), cfg.Mail)
	sessions := jwt.New(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)

	teamService := service.NewTeamService(log, teamRepo)
	invitationService := service.NewInvitationService(log, invitationRepo, teamRepo, dispatcher, cfg.BaseURL)
	authService := service.NewAuthService(log, userRepo, invitationService, teamService, sessions, cfg.Auth.BcryptCost)

	routerDependencies := v1.RouterDependencies{
		AuthService:       authService,
		TeamService:       teamService,
		InvitationService: invitationService,
		Sessions:          sessions,
		DB:                db,
		RequestTimeout:    cfg.Server.Timeout,
	}

	restApp := rest.New(
		log,
		&routerDependencies,
		cfg.Server,
	)

	return &App{
		log:        log,
		storage:    storage,
		dispatcher: dispatcher,
		restApp:    restApp,
	}
}

func mustOpenStorage(log *slog.Logger, cfg *config.Config) (*sqlx.DB, io.Closer) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		storage, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			log.Error("failed to open sqlite", sl.Err(err))
			panic(err)
		}
		if err := migrator.RunSQLiteMigrations(storage.GetDB(), log); err != nil {
			log.Error("failed to run migrations", sl.Err(err))
			panic(err)
		}
		return storage.GetDB(), storage

	case config.DriverPostgres:
		if err := migrator.RunMigrations(cfg.Postgres, log); err != nil {
			log.Error("failed to run migrations", sl.Err(err))
			panic(err)
		}
		storage := postgresql.Init(cfg.Postgres)
		return storage.GetDB(), storage
	}

	panic("unknown storage driver: " + cfg.Storage.Driver)
}

func newSender(log *slog.Logger, cfg config.MailConfig) mail.Sender {
	if cfg.ResendAPIKey == "" {
		log.Warn("MAIL_RESEND_API_KEY is not set, invitation emails will only be logged")
		return mail.NewLogSender(log)
	}
	return mail.NewResendSender(cfg.ResendAPIKey, cfg.From)
}

// MustRun blocks serving HTTP until the server is stopped.
func (a *App) MustRun() {
	const op = "app.MustRun"
	a.log.With(slog.String("op", op)).Info("starting application")

	a.dispatcher.Start()

	if err := a.restApp.Run(); err != nil {
		panic(err)
	}
}

func (a *App) GracefulShutdown() {
	const op = "app.GracefulShutdown"
	log := a.log.With(slog.String("op", op))
	log.Info("shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.restApp.Stop(ctx); err != nil {
		log.Error("failed to stop HTTP server", sl.Err(err))
	}

	if err := a.dispatcher.Stop(ctx); err != nil {
		log.Error("failed to drain mail queue", sl.Err(err))
	}

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			log.Error("failed to close database", sl.Err(err))
		}
		log.Info("database connection closed")
	}
}
