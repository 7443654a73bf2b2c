// Package app wires the borrow service components shared by the server and
// cronjob binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"borrow-service/internal/config"
	"borrow-service/internal/events"
	"borrow-service/internal/gateway"
	"borrow-service/internal/logger"
	"borrow-service/internal/repository/postgres"
	"borrow-service/internal/service"
)

// App holds the wired components and the resources to release on shutdown.
type App struct {
	DB       *sqlx.DB
	Store    *postgres.Store
	Gateways *gateway.Gateways
	Borrows  service.BorrowService

	closeSink func() error
}

// New connects to the database, optionally runs migrations, and builds the
// gateways, event emitter and borrow service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.RunMigrations {
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Database migrations applied")
	}

	sqlxDB := sqlx.NewDb(db, "postgres")
	store := postgres.NewStore(sqlxDB)

	gateways, err := gateway.New(cfg.Services)
	if err != nil {
		sqlxDB.Close()
		return nil, err
	}

	sink, closeSink, err := events.NewSink(ctx, cfg.Events)
	if err != nil {
		sqlxDB.Close()
		return nil, err
	}
	emitter := events.NewEmitter(sink, events.TopicsFromConfig(cfg.Events.Topics), cfg.Events.PublishTimeout())

	borrows := service.NewBorrowService(
		store,
		store.Repos,
		gateways.Users,
		gateways.Books,
		emitter,
		service.PolicyFromConfig(cfg.Borrow),
	)

	return &App{
		DB:        sqlxDB,
		Store:     store,
		Gateways:  gateways,
		Borrows:   borrows,
		closeSink: closeSink,
	}, nil
}

// Close releases the event sink and database connections.
func (a *App) Close() {
	if err := a.closeSink(); err != nil {
		logger.Warn("Failed to close event sink", "error", err)
	}
	if err := a.DB.Close(); err != nil {
		logger.Warn("Failed to close database", "error", err)
	}
}
