package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"gigflow/auth"
	"gigflow/bid"
	"gigflow/config"
	"gigflow/db"
	"gigflow/gig"
	"gigflow/hiring"
	"gigflow/notify"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(".")
	if err != nil {
		logger.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	if err := runDBMigration(cfg.MigrationURL, cfg.DatabaseURL); err != nil {
		logger.Error("run migrations", slog.Any("err", err))
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("bootstrap database pool", slog.Any("err", err))
		os.Exit(1)
	}
	defer pool.Close()

	hub := notify.NewHub(logger)

	authService := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)
	bidService := bid.NewService(pool, bid.NewRepository(pool), hub, logger)
	gigService := gig.NewService(pool, gig.NewRepository(pool), bidService)
	coordinator := hiring.NewCoordinator(pool, hiring.NewRepository(), hub, logger)

	server := NewServer(authService, gigService, bidService, coordinator, hub, cfg.ClientOrigin, logger)

	logger.Info("server listening", slog.String("addr", cfg.ServerAddress))
	if err := http.ListenAndServe(cfg.ServerAddress, server.Routes()); err != nil {
		logger.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func runDBMigration(migrationURL, dbSource string) error {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		return err
	}
	if err := migration.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	slog.Info("database migrated")
	return nil
}
