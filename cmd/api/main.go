package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"journal/api/internal/app"
	"journal/api/internal/comments"
	"journal/api/internal/config"
	"journal/api/internal/events"
	"journal/api/internal/logging"
	"journal/api/internal/search"
	"journal/api/internal/session"
	"journal/api/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "journal api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	dataStore := store.NewPostgresStore(db)

	var sessions session.Store = dataStore
	var redisStore *session.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err = session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisStore.Close()
		sessions = redisStore
		logger.Info("using redis for session storage")
	} else {
		logger.Info("using postgres for session storage")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db), logger)

	var publisher events.Publisher = events.NoopPublisher{}
	if strings.TrimSpace(cfg.NATSURL) != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		publisher = natsPublisher
		logger.Info("publishing comment events", zap.String("nats_url", cfg.NATSURL))
	}
	defer publisher.Close()

	commentService := comments.NewService(dataStore, dataStore, searchService, publisher, logger)
	service := app.New(cfg, dataStore, sessions, commentService, searchService, logger)
	if redisStore != nil {
		service.AddReadinessCheck("redis", redisStore.Ping)
	}
	if meiliClient != nil {
		service.AddReadinessCheck("meilisearch", func(context.Context) error {
			if !meiliClient.Healthy() {
				return errors.New("meilisearch unavailable")
			}
			return nil
		})
		go searchService.ReindexAllFromPG(ctx)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, cfg.CORSOrigin, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("journal api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	logger.Info("journal api stopped")
	return nil
}
