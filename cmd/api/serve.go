package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/notesapp/notes-api/internal/config"
	"github.com/notesapp/notes-api/internal/handler"
	"github.com/notesapp/notes-api/internal/logging"
	"github.com/notesapp/notes-api/internal/repository"
	"github.com/notesapp/notes-api/internal/repository/memory"
	"github.com/notesapp/notes-api/internal/service"
	"github.com/notesapp/notes-api/internal/storage"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, notes, db, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	media, uploadDir, err := openMedia(ctx, cfg)
	if err != nil {
		return err
	}

	router := handler.NewRouter(handler.RouterConfig{
		Auth:           service.NewAuthService(users, cfg.JWTSecret, cfg.JWTExpiry),
		Notes:          service.NewNoteService(notes, media),
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		UploadDir:      uploadDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"port", cfg.Port,
			"env", cfg.Env,
			"store", cfg.StoreBackend,
			"storage", cfg.StorageBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// openStores returns the user and note stores for cfg.StoreBackend. db is
// nil for the memory backend.
func openStores(ctx context.Context, cfg config.Config) (service.UserStore, service.NoteStore, *sql.DB, error) {
	if cfg.StoreBackend == config.StoreMemory {
		slog.Warn("using in-memory store, data is lost on restart")
		return memory.NewUserRepository(), memory.NewNoteRepository(), nil, nil
	}

	db, err := repository.NewDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return repository.NewUserRepository(db), repository.NewNoteRepository(db), db, nil
}

// openMedia returns the media store and, for the disk backend, the directory
// to serve at /uploads.
func openMedia(ctx context.Context, cfg config.Config) (storage.MediaStore, string, error) {
	if cfg.StorageBackend == config.StorageS3 {
		s3Store, err := storage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, "", fmt.Errorf("configuring s3 storage: %w", err)
		}
		return s3Store, "", nil
	}

	disk, err := storage.NewDiskStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	return disk, disk.Root(), nil
}
