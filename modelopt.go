package modelopt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/paretolabs/modelopt/cache"
	"github.com/paretolabs/modelopt/config"
	"github.com/paretolabs/modelopt/history"
	"github.com/paretolabs/modelopt/optimizer"
	"github.com/paretolabs/modelopt/profile"
	"github.com/paretolabs/modelopt/registry"
	"github.com/paretolabs/modelopt/replay"
)

// RubricVersion tags cached evaluations with the judge rubric revision.
// Bump it when the judge prompt or criteria change.
const RubricVersion = "1.0.0"

// System bundles the wired components of one optimizer deployment.
type System struct {
	Orchestrator *optimizer.Orchestrator
	Registry     *registry.Registry
	Cache        *cache.Manager
	History      *history.Service
	Profiles     profile.Store

	watcher *registry.Watcher
	db      *gorm.DB
}

// Open wires a complete system from configuration: gateway collaborators,
// catalog, stores, cache with version-cascade hooks, and the orchestrator.
// Call Close when done.
func Open(cfg config.Config, logger *slog.Logger) (*System, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gatewayCfg, err := replay.GatewayConfigFromEnv()
	if err != nil {
		return nil, err
	}
	gatewayCfg.Logger = logger
	collab, err := replay.New(cfg.Collaborator.Name, gatewayCfg)
	if err != nil {
		return nil, fmt.Errorf("collaborator %q: %w", cfg.Collaborator.Name, err)
	}

	entries, version := registry.DefaultCatalog(), registry.DefaultCatalogVersion
	if cfg.Registry.CatalogPath != "" {
		entries, version, err = registry.LoadCatalog(cfg.Registry.CatalogPath)
		if err != nil {
			return nil, err
		}
	}
	reg := registry.New(entries, version, registry.WithLogger(logger))

	var (
		db           *gorm.DB
		cacheStore   cache.Store   = cache.NewMemStore()
		profileStore profile.Store = profile.NewMemStore()
		historyStore history.Store = history.NewMemStore()
	)
	switch cfg.Cache.Backend {
	case "", "memory":
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Cache.Path), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Cache.Path, err)
		}
		if cacheStore, err = cache.NewSQLStore(db); err != nil {
			return nil, err
		}
		if profileStore, err = profile.NewSQLStore(db); err != nil {
			return nil, err
		}
		if historyStore, err = history.NewSQLStore(db); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	mgr := cache.NewManager(cacheStore,
		cache.WithLogger(logger),
		cache.WithVersions(version, cfg.Registry.PricingVersion, RubricVersion))
	reg.OnVersionChange(mgr.HandleVersionChange)

	histOpts := []history.ServiceOption{history.WithLogger(logger)}
	if collab.Embedder != nil {
		histOpts = append(histOpts,
			history.WithVectorIndex(history.NewVectorIndex(collab.Embedder)))
	}
	hist := history.NewService(historyStore, histOpts...)

	thresholds := cfg.Thresholds
	if thresholds.VerificationCacheTTL == 0 {
		thresholds.VerificationCacheTTL = cfg.Cache.DefaultTTL
	}

	orch := optimizer.New(optimizer.Deps{
		Registry: reg,
		Profiles: profileStore,
		Cache:    mgr,
		History:  hist,
		Replayer: collab.Replayer,
		Judge:    collab.Judge,
		Tracker:  registry.NewTracker(),
		Logger:   logger,
	}, thresholds)

	var watcher *registry.Watcher
	if cfg.Registry.Watch && cfg.Registry.CatalogPath != "" {
		watcher, err = registry.NewWatcher(reg, cfg.Registry.CatalogPath, logger)
		if err != nil {
			return nil, err
		}
	}

	return &System{
		Orchestrator: orch,
		Registry:     reg,
		Cache:        mgr,
		History:      hist,
		Profiles:     profileStore,
		watcher:      watcher,
		db:           db,
	}, nil
}

// WatchCatalog blocks reloading the catalog on file changes until the
// context is cancelled. Requires registry.watch and a catalog path.
func (s *System) WatchCatalog(ctx context.Context) error {
	if s.watcher == nil {
		return errors.New("catalog watching not configured")
	}
	return s.watcher.Run(ctx)
}

// Close releases the database handle, if any.
func (s *System) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
