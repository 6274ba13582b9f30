package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"moveout/pkg/analysis"
	"moveout/pkg/config"
	"moveout/pkg/drafts"
	"moveout/pkg/handlers"
	"moveout/pkg/logger"
	"moveout/pkg/services"
	"moveout/pkg/session"
	"moveout/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", "console")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	log.Info().
		Str("backend", cfg.Backend).
		Str("data_path", cfg.DataPath).
		Str("config_file", config.GetConfigFilePath()).
		Dur("draft_debounce", cfg.DraftDebounce).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	analyzer := newAnalyzer(ctx, cfg)
	if closer, ok := analyzer.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	draftManager := drafts.NewManager(store, cfg.DraftDebounce)
	items := services.NewItemService(store, draftManager, analyzer)

	if _, err := draftManager.CheckForPending(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not read pending draft")
	}

	if w, ok := store.(storage.Watchable); ok {
		if err := w.Watch(items.MarkStale); err != nil {
			log.Warn().Err(err).Msg("File watching disabled")
		}
	}

	sess, err := session.NewManager(filepath.Join(cfg.DataPath, session.PreferencesFile))
	if err != nil {
		return err
	}

	api := handlers.NewAPIHandlers(items, sess, store, cfg.PublicURL)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.NewRouter(api, cfg.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Graceful shutdown incomplete")
	}

	// An edit made just before shutdown is still inside its quiet window
	if draftManager.Flush() {
		log.Info().Msg("Flushed pending draft save")
	}
	return nil
}

func newAnalyzer(ctx context.Context, cfg *config.Config) analysis.Analyzer {
	if !cfg.AnalysisEnabled() {
		log.Warn().Msg("GEMINI_API_KEY not set, listings will use the fallback template")
		return analysis.Unavailable{}
	}

	g, err := analysis.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Error().Err(err).Msg("Gemini analyzer unavailable, using fallback template")
		return analysis.Unavailable{}
	}
	log.Info().Str("model", cfg.Gemini.Model).Msg("Gemini analyzer enabled")
	return g
}
