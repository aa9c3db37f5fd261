package main

import (
	"fmt"

	"github.com/lifesignal/backend/internal/config"
	"github.com/lifesignal/backend/internal/logger"
	"github.com/lifesignal/backend/internal/repository"
	"github.com/lifesignal/backend/internal/service"
	"github.com/lifesignal/backend/pkg/supabase"
)

// newLogger builds and installs the global logger from config.
func newLogger(cfg *config.Config) logger.Logger {
	log := logger.NewSlogLogger(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	logger.SetDefault(log)
	return log
}

// newEngine wires the repositories and pipeline components for the
// configured store backend. The returned closer is nil for backends
// without resources to release.
func newEngine(cfg *config.Config, log logger.Logger) (*service.Engine, func() error, error) {
	var (
		eventRepo       repository.EventRepository
		insightRepo     repository.InsightRepository
		computationRepo repository.ComputationRepository
		closer          func() error
	)

	switch cfg.Store.Backend {
	case config.BackendSupabase:
		client := supabase.NewClient(cfg.Store.Supabase.URL, cfg.Store.Supabase.ServiceKey)
		eventRepo = repository.NewEventRepository(client)
		insightRepo = repository.NewInsightRepository(client)
		computationRepo = repository.NewComputationRepository(client)
	case config.BackendSQLite:
		store, err := repository.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		eventRepo = store
		insightRepo = store
		computationRepo = store
		closer = store.Close
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	extractor := service.NewMetricExtractor(eventRepo, log)

	calculator := service.NewCorrelationCalculator()
	calculator.MaxLag = cfg.Engine.MaxLagDays
	if cfg.Engine.Workers > 0 {
		calculator.Workers = cfg.Engine.Workers
	}

	engine := service.NewEngine(
		extractor,
		calculator,
		service.NewInsightLifecycleManager(),
		insightRepo,
		computationRepo,
		log,
	)
	engine.SetWindowDays(cfg.Engine.WindowDays)

	return engine, closer, nil
}
