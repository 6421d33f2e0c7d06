package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msomdec/todo-api/internal/config"
	"github.com/msomdec/todo-api/internal/handler"
	"github.com/msomdec/todo-api/internal/repository"
	"github.com/msomdec/todo-api/internal/service"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	slog.SetDefault(newLogger(cfg.LogFormat, level, os.Stdout, os.Stderr))

	ctx := context.Background()

	store, err := repository.Open(ctx, cfg.Storage, cfg.Ledger)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied", "driver", cfg.Storage.Driver, "ledger", cfg.Ledger.Backend)

	tokens, err := service.NewTokenCodec([]byte(cfg.JWTSecret))
	if err != nil {
		slog.Error("failed to create token codec", "error", err)
		os.Exit(1)
	}

	authService := service.NewAuthService(store.Users, store.Sessions, tokens, service.NewBcryptHasher(cfg.BcryptCost))
	todoService := service.NewTodoService(store.Todos)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, authService, todoService, store)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.SecurityHeaders(handler.RequestLogger(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCtx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func newLogger(format string, level slog.Level, stdout, stderr io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case config.LogFormatText:
		return slog.New(slog.NewTextHandler(stdout, opts))
	case config.LogFormatJSON:
		return slog.New(slog.NewJSONHandler(stdout, opts))
	default:
		return slog.New(slog.NewMultiHandler(
			slog.NewTextHandler(stdout, opts),
			slog.NewJSONHandler(stderr, opts),
		))
	}
}
