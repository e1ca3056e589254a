package cmd

import (
	"fmt"
	"sync"

	"modloader/core/combo"
	"modloader/core/config"
	"modloader/core/database"
	"modloader/core/loader"
	"modloader/core/logger"
	"modloader/core/manifest"
	"modloader/core/metrics"
	"modloader/core/module"
	"modloader/core/storage"
	"modloader/core/transport"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// services holds the components shared by the commands.
type services struct {
	cfg       *config.Config
	log       *zap.Logger
	metrics   *metrics.Collector
	planner   *combo.Planner
	catalog   *manifest.Catalog
	transport combo.Transport
	loader    *loader.Loader

	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error
}

// bootstrap loads the configuration and builds the loader stack.
func bootstrap() (*services, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	s := &services{
		cfg:     cfg,
		log:     logg,
		metrics: metrics.New(),
		planner: combo.NewPlanner(cfg.Combo),
		catalog: manifest.NewCatalog(),
	}

	s.transport, err = transport.New(cfg.Transport, transport.Backends{
		Storage:     s.storage,
		Bucket:      cfg.Storage.Bucket,
		Concurrency: cfg.Storage.Concurrency,
		Database:    s.database,
	})
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	dispatcher := combo.NewDispatcher(s.planner, s.transport, s.catalog,
		combo.WithLogger(logg),
		combo.WithMetrics(s.metrics),
		combo.WithTimeout(cfg.Loader.RoundTimeout),
	)
	reg := module.NewRegistry(module.WithPackageFunc(func(id string) string {
		return s.planner.PackageOf(id).Name
	}))
	s.loader = loader.New(reg, dispatcher,
		loader.WithConfig(cfg.Loader),
		loader.WithLogger(logg),
		loader.WithMetrics(s.metrics),
		loader.WithCallbackPanicHandler(func(session string, recovered any) {
			logg.Error("Recovered callback panic", zap.String("session", session), zap.Any("panic", recovered))
		}),
	)

	logg.Debug("Loader ready",
		zap.String("transport", cfg.Transport.Kind),
		zap.Duration("round_timeout", cfg.Loader.RoundTimeout),
		zap.Int("max_rounds", cfg.Loader.MaxRounds))
	return s, nil
}

func (s *services) storage() (storage.Client, error) {
	return storage.NewClient(s.cfg.Storage)
}

// database connects once and reuses the connection.
func (s *services) database() (*gorm.DB, error) {
	s.dbOnce.Do(func() {
		s.db, s.dbErr = database.Connect(s.cfg.Database)
	})
	return s.db, s.dbErr
}

func (s *services) close() {
	_ = s.loader.Close()
	_ = s.log.Sync()
}
