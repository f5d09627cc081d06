package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkazarov/landpick/internal/api"
	"github.com/dkazarov/landpick/internal/catalog"
	"github.com/dkazarov/landpick/internal/config"
	"github.com/dkazarov/landpick/internal/fields"
	"github.com/dkazarov/landpick/internal/selector"
	"github.com/dkazarov/landpick/internal/session"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	logicPath := flag.String("logic", "configs/selection.yaml", "Path to selection-logic YAML config")
	catalogPath := flag.String("catalog", "configs/templates.yaml", "Path to template catalog YAML")
	sessionTTL := flag.Duration("session-ttl", session.DefaultTTL, "Idle session lifetime")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load configuration ───────────────────────────────────────────────────
	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "err", err)
		os.Exit(1)
	}
	loader, err := config.NewLoader(*logicPath)
	if err != nil {
		slog.Error("failed to load selection logic", "err", err)
		os.Exit(1)
	}
	logic := loader.Logic()
	if err := config.Validate(logic, cat.IDs()); err != nil {
		slog.Error("selection logic validation failed", "err", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "templates", len(cat.Templates), "steps", len(logic.DecisionTree), "rules", len(logic.Rules()))

	// ── Engine and sessions ──────────────────────────────────────────────────
	eng := selector.New(logic, cat)
	store := session.NewStore(eng, *sessionTTL)
	stopJanitor := store.Janitor(time.Minute)
	defer stopJanitor()

	collector := fields.NewCollector(cat)

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	loader.SetValidate(func(newLogic *config.Logic) error {
		return config.Validate(newLogic, cat.IDs())
	})
	loader.OnChange(func(newLogic *config.Logic) {
		eng.SwapLogic(newLogic)
		slog.Info("selection logic hot-reloaded", "steps", len(newLogic.DecisionTree))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("logic watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	handler := api.New(eng, store, loader, collector)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	slog.Info("goodbye")
}
