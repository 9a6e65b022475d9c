package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"armory/internal/catalog/ports"
	"armory/internal/catalog/store/memory"
	"armory/internal/catalog/store/postgres"
	"armory/internal/intel/cache"
	"armory/internal/intel/equivalence"
	"armory/internal/intel/extract"
	"armory/internal/intel/metrics"
	"armory/internal/intel/resultcache"
	"armory/internal/intel/sampler"
	"armory/internal/intel/scoring"
	"armory/internal/intel/service"
	"armory/internal/platform/config"
	"armory/internal/platform/redis"
	"armory/pkg/platform/circuit"
)

// engine is the assembled intelligence stack plus what must be closed.
type engine struct {
	svc       *service.Service
	holder    *equivalence.Holder
	extractor *extract.Extractor
	catalog   ports.Repository
	// memCatalog is set when the catalog is held in process and can take
	// change events directly.
	memCatalog *memory.InMemoryCatalog
	closers    []func() error
}

func (e *engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

// loadRegistry returns a holder over the configured registry file or the
// embedded default.
func loadRegistry(ctx context.Context, cfg config.RegistryConfig, logger *slog.Logger, m *metrics.Metrics) (*equivalence.Holder, error) {
	var (
		reg *equivalence.Registry
		err error
	)
	if cfg.Path != "" {
		reg, err = equivalence.LoadFile(ctx, cfg.Path)
	} else {
		reg, err = equivalence.Default()
	}
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "equivalence registry loaded",
		"version", reg.Version(),
		"hash", reg.Hash(),
		"path", cfg.Path,
	)
	return equivalence.NewHolder(reg, equivalence.WithLogger(logger), equivalence.WithMetrics(m))
}

// openCatalog connects the configured catalog source. A memory catalog may
// be overridden by an explicit snapshot file.
func openCatalog(ctx context.Context, cfg config.CatalogConfig, file string) (ports.Repository, *memory.InMemoryCatalog, func() error, error) {
	if file == "" {
		file = cfg.File
	}
	if cfg.Source == config.CatalogPostgres && file == "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		return postgres.New(db), nil, db.Close, nil
	}

	mem := memory.New()
	if file != "" {
		loaded, err := memory.LoadFile(file)
		if err != nil {
			return nil, nil, nil, err
		}
		mem = loaded
	}
	return mem, mem, func() error { return nil }, nil
}

// buildEngine wires registry, catalog, extractor, scorer, cache and result
// cache into a service. m may be nil.
func buildEngine(ctx context.Context, cfg config.Config, catalogFile string, logger *slog.Logger, m *metrics.Metrics) (*engine, error) {
	e := &engine{}
	ok := false
	defer func() {
		if !ok {
			_ = e.Close()
		}
	}()

	holder, err := loadRegistry(ctx, cfg.Registry, logger, m)
	if err != nil {
		return nil, err
	}
	e.holder = holder

	repo, mem, closeCatalog, err := openCatalog(ctx, cfg.Catalog, catalogFile)
	if err != nil {
		return nil, err
	}
	e.catalog, e.memCatalog = repo, mem
	e.closers = append(e.closers, closeCatalog)

	e.extractor, err = extract.New(holder)
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.New(holder, cfg.Intel.Weights)
	if err != nil {
		return nil, err
	}
	c, err := cache.New(e.extractor,
		cache.WithWorkers(cfg.Intel.BuildWorkers),
		cache.WithLogger(logger),
		cache.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	var results service.ResultCache = resultcache.Noop{}
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		e.closers = append(e.closers, rc.Close)
		store, err := resultcache.NewRedis(rc.Client, cfg.Redis.ResultTTL)
		if err != nil {
			return nil, err
		}
		results, err = resultcache.NewGuarded(store, circuit.New("result-cache"), logger)
		if err != nil {
			return nil, err
		}
	}

	e.svc, err = service.New(repo, c, scorer, e.extractor,
		service.WithConfig(service.Config{
			SampleSize:    cfg.Intel.SampleSize,
			MinScore:      cfg.Intel.MinScore,
			DefaultLimit:  cfg.Intel.DefaultLimit,
			MaxLimit:      cfg.Intel.MaxLimit,
			QueryTimeout:  cfg.Intel.QueryTimeout,
			ScoreWorkers:  cfg.Intel.ScoreWorkers,
			BuildOnDemand: cfg.Intel.BuildOnDemand,
		}),
		service.WithSampler(sampler.New(cfg.Intel.Seed)),
		service.WithResultCache(results),
		service.WithRegistry(holder),
		service.WithLogger(logger),
		service.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	ok = true
	return e, nil
}
