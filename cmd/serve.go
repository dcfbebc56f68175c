package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"dreamsun/api"
	"dreamsun/config"
	"dreamsun/history"
	"dreamsun/imagehost"
	"dreamsun/middleware"
	"dreamsun/uploads"
)

const (
	historyTTL      = 30 * 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

// RunServer starts the HTTP server and blocks until the command context is done.
func RunServer(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Settings.SessionSecret == config.DefaultSessionSecret {
		log.Println("Warning: SESSION_SECRET is not set, using the built-in default")
	}
	middleware.InitSessionStore(cfg.Settings.SessionSecret)

	uploader, err := imagehost.New(cfg)
	if err != nil {
		return err
	}
	log.Printf("Upload backend: %s", cfg.Settings.UploadBackend)

	service, err := newService(ctx, cfg, uploader)
	if err != nil {
		return err
	}

	store, closeStore, err := newHistoryStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tracker := uploads.NewTracker(uploader, cfg.Settings.MaxConcurrentUploads)
	defer tracker.Shutdown()

	if cfg.APIKeys.DreamSun == "" {
		log.Println("DREAMSUN_API_KEY is not set, /v1 routes are disabled")
	}
	srv := api.NewServer(service, uploader, tracker, store, api.Options{
		WebPassword:    cfg.Settings.WebPassword,
		APIKey:         cfg.APIKeys.DreamSun,
		StaticDir:      cfg.Settings.StaticDir,
		MaxUploadBytes: cfg.Settings.MaxUploadBytes,
		RequestTimeout: cfg.Settings.RequestTimeout.Std(),
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s...", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newHistoryStore uses Redis when REDIS_ADDR is set and memory otherwise.
func newHistoryStore(ctx context.Context, cfg *config.Config) (history.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		log.Println("History is kept in memory")
		return history.NewMemoryStore(cfg.Settings.HistoryLimit), func() {}, nil
	}
	rdb, err := history.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}
	return history.NewRedisStore(rdb, cfg.Settings.HistoryLimit, historyTTL), closeFn, nil
}
