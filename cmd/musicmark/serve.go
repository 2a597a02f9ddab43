package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/musicmark/internal/config"
	"github.com/maruel/musicmark/internal/server"
	"github.com/maruel/musicmark/internal/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("musicmark %s\n", buildVersion())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func serve(parent context.Context) error {
	cfg := loadConfig()
	if err := setupLogging(cfg.LogLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	serverCfg, err := config.LoadServerConfig(cfg.DataDir)
	if err != nil {
		return err
	}

	users := storage.NewUserService(store)
	seeded, err := users.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	if seeded {
		slog.InfoContext(ctx, "Seeded admin user; change the password soon", "username", cfg.AdminUsername)
	}

	// Watch own executable for modifications (for development restarts).
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	svc := &server.Services{
		Users:   users,
		Listens: storage.NewListenService(store),
		Stats:   storage.NewStatsService(store),
	}
	handler := server.NewRouter(svc, &server.Config{
		JWTSecret:           serverCfg.JWTSecret,
		MaxRequestBodyBytes: serverCfg.MaxRequestBodyBytes,
		SiteName:            cfg.SiteName,
		Version:             buildVersion(),
		RateLimitRPM:        cfg.RateLimitRPM,
		RateBurst:           cfg.RateBurst,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", cfg.HTTPAddr, "db", store.Path(), "site", cfg.SiteName)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// watchExecutable watches the current executable for modifications and
// calls stop to trigger graceful shutdown when detected. This enables
// seamless restarts during development.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
