// Package server wires the filegate core together: database, repositories,
// external directory, blob store, services, and the periodic expiry sweeps.
// The request-facing surface (HTTP or otherwise) sits above this package and
// calls the services directly.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dkovalov/filegate/internal/logging"
	"github.com/dkovalov/filegate/internal/server/blob"
	"github.com/dkovalov/filegate/internal/server/config"
	"github.com/dkovalov/filegate/internal/server/directory"
	"github.com/dkovalov/filegate/internal/server/repositories/repomanager"
	"github.com/dkovalov/filegate/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	Auth   *services.AuthService
	Grants *services.GrantService
	Access *services.AccessService
	Files  *services.FileService
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	creds := directory.NewPostgresCredentialDirectory(db)
	membership := directory.NewPostgresGroupMembership(db)
	blobs := blob.NewS3Store(blob.S3Config{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})

	auth := services.NewAuthService(db, rm, creds, membership, cfg)
	grants := services.NewGrantService(db, rm, membership, logger, cfg)
	access := services.NewAccessService(db, rm, auth, membership, blobs, cfg)
	files := services.NewFileService(db, rm, blobs, cfg)

	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		Auth:   auth,
		Grants: grants,
		Access: access,
		Files:  files,
	}, nil
}

// RunExpirySweep runs both reconciliation passes once: expired sessions are
// dropped and expired role grants are detached from the live membership.
func (app *App) RunExpirySweep(ctx context.Context) {
	sessions, err := app.Auth.SweepSessions(ctx)
	if err != nil {
		app.logger.Error(ctx, "session sweep failed", "error", err)
	} else {
		app.logger.Info(ctx, "session sweep finished", "deleted", sessions)
	}

	report, err := app.Grants.Sweep(ctx)
	if err != nil {
		app.logger.Error(ctx, "grant sweep failed", "error", err)
	} else {
		app.logger.Info(ctx, "grant sweep finished",
			"expired", report.ExpiredCount, "users", len(report.GroupsRemoved))
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the periodic sweep scheduler and blocks until the context is
// canceled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting filegate", "sweep_interval", app.config.SweepInterval.String())

	app.initSignalHandler(cancelFunc)

	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			app.logger.Info(ctx, "shutting down")
			app.Close()
			return
		case <-ticker.C:
			app.RunExpirySweep(ctx)
		}
	}
}

func (app *App) Close() {
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
}
