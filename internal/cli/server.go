package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doubledutch-sync/internal/app"
	"doubledutch-sync/internal/config"
	"doubledutch-sync/internal/course"
	"doubledutch-sync/internal/docstore"
	"doubledutch-sync/internal/infra/memory"
	"doubledutch-sync/internal/infra/postgres"
	redisstore "doubledutch-sync/internal/infra/redis"
	transport "doubledutch-sync/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var loader course.Loader = course.NewFileLoader(cfg.Course.Path)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = postgres.NewCourseLoader(pool)
	} else if cfg.Course.Path == "" {
		loader = memory.NewStaticCourseLoader(course.Course{})
	}
	content, err := loader.LoadCourse(ctx)
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}

	docs, closeDocs, err := openDocStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDocs()

	service := app.NewService(docs, content, app.Options{
		AppID:            cfg.App.ID,
		LeaderboardLimit: cfg.Leaderboard.Limit,
		Logger:           logger,
	})
	wsHandler := transport.NewWSHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting sync server", "port", finalPort, "levels", len(content.Levels))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	wsHandler.Wait()
	return err
}

// openDocStore picks the document store backend. A redis backend without an
// address yields a nil store: sessions then run without sync.
func openDocStore(cfg config.Config, logger *slog.Logger) (docstore.Store, func(), error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return memory.NewDocStore(), func() {}, nil
	case "redis":
		if cfg.Redis.Addr == "" {
			logger.Error("redis backend selected without redis.addr")
			return nil, func() {}, nil
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisstore.NewDocStore(client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
