package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"carbone2pdf/internal/app"
	"carbone2pdf/internal/carbone"
	"carbone2pdf/internal/documents"
	"carbone2pdf/internal/handlers"
	"carbone2pdf/internal/storage"
	u "carbone2pdf/internal/utils"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the dispatcher over HTTP",
		Long:  "Start the HTTP API that renders templates from the templates directory and stores the results.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), u.GetConfig())
		},
	}
}

func runServe(ctx context.Context, cfg u.Config) error {
	token, err := u.ResolveCredential(cfg.Carbone)
	if err != nil {
		return fmt.Errorf("%w: set %s or carbone.api_key", err, u.CredentialEnv)
	}
	renderer := carbone.NewClientFromConfig(cfg.Carbone, token)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RenderCacheDB,
		})
		defer rdb.Close()
	}

	repo, err := documentRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer u.ClosePostgres()

	loadAPIKeys(ctx, cfg)

	svc := handlers.NewDocumentService(cfg, renderer, store, repo, rdb)
	return startServer(ctx, app.SetupApp(cfg, svc), cfg)
}

func documentRepository(ctx context.Context, cfg u.Config) (documents.Repository, error) {
	if !cfg.Postgres.Enabled() {
		u.Warn("No database configured, document records are kept in memory")
		return documents.NewMemoryRepository(), nil
	}
	db, err := u.PostgresDB(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	repo, err := documents.NewPostgresRepository(ctx, db)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// loadAPIKeys fills the key cache from Postgres when configured and keeps it
// fresh; otherwise the static keys of the config file are used.
func loadAPIKeys(ctx context.Context, cfg u.Config) {
	if !cfg.Postgres.Enabled() {
		u.LoadAPIKeysFromMap(cfg.Auth.APIKeys)
		return
	}
	if err := u.LoadAPIKeysFromPostgres(ctx, cfg.Postgres); err != nil {
		u.Error("Failed to load API keys", "error", err)
	}
	go u.RefreshAPIKeysPeriodically(ctx, cfg.Postgres, cfg.Auth.TokenRefreshInterval)
}

// startServer serves until ctx is cancelled, then shuts down gracefully.
func startServer(ctx context.Context, app *fiber.App, cfg u.Config) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Server.Host + cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			u.Error("Server error", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	u.Warn("Shutdown signal received, closing server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		u.Error("Server forced to shutdown", "error", err)
		return err
	}

	u.Info("Server stopped cleanly")
	return nil
}
