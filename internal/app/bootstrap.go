package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"meal-buddy/internal/config"
	"meal-buddy/internal/database"
	"meal-buddy/internal/llm"
	"meal-buddy/internal/metrics"
	"meal-buddy/internal/storage"
	"meal-buddy/internal/store"
)

// Services bundles an App with the resources it was built on.
type Services struct {
	App *App
	// Metrics is nil for the memory backend.
	Metrics *metrics.Store
	// DataDir is where persisted bytes live, for health reporting.
	DataDir string

	closers []io.Closer
}

// Open wires the store backend, metrics and model client selected by cfg.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	factory, err := llm.NewFactory(llm.ProviderConfig{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
	})
	if err != nil {
		return nil, err
	}

	svc := &Services{}
	var backend store.Backend

	switch cfg.StoreBackend {
	case config.BackendMemory:
		backend = store.NewMemoryBackend()

	case config.BackendSQLite, config.BackendFile:
		db, err := database.NewDB(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		svc.closers = append(svc.closers, db)
		svc.Metrics = metrics.NewStore(db.SQL)
		svc.DataDir = filepath.Dir(cfg.DatabasePath)
		backend = database.NewCollectionStore(db.SQL)

		if cfg.StoreBackend == config.BackendFile {
			fs, err := storage.NewFileStore(cfg.StoreDir)
			if err != nil {
				svc.Close()
				return nil, err
			}
			if err := fs.RemoveStaleTemps(); err != nil {
				logger.Warn("failed to remove stale temp files", "dir", cfg.StoreDir, "error", err)
			}
			svc.DataDir = cfg.StoreDir
			backend = fs
		}

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	handle := llm.NewHandle(factory)
	svc.closers = append(svc.closers, handle)

	var recorder MetricsRecorder
	if svc.Metrics != nil {
		recorder = svc.Metrics
	}
	svc.App = NewApp(store.New(backend, logger), handle, recorder, logger)

	if err := svc.App.SeedCredential(ctx, cfg.APIKey); err != nil {
		svc.Close()
		return nil, err
	}

	logger.Debug("services ready",
		"backend", cfg.StoreBackend,
		"provider", cfg.LLMProvider,
		"data_dir", svc.DataDir,
	)
	return svc, nil
}

// Close releases the model client and the database, newest first.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
