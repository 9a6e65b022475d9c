// Package service answers related-products queries over the intelligence
// cache: sample candidates, score them, keep the best, resolve records.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/singleflight"

	"armory/internal/catalog/ports"
	"armory/internal/intel/cache"
	"armory/internal/intel/equivalence"
	"armory/internal/intel/metrics"
	"armory/internal/intel/models"
	"armory/internal/intel/resultcache"
	"armory/internal/intel/sampler"
	"armory/internal/intel/scoring"
	id "armory/pkg/domain"
	dErrors "armory/pkg/domain-errors"
)

// Type aliases for shared interfaces.
type (
	Catalog     = ports.Repository
	ResultCache = resultcache.Store
)

// Scorer compares two attribute sets.
type Scorer interface {
	Score(target, candidate models.AttributeSet) models.Score
}

// Extractor derives attributes from free text.
type Extractor interface {
	ExtractText(name, manufacturer string) models.AttributeSet
}

// Config tunes recall against latency.
type Config struct {
	SampleSize    int
	MinScore      int
	DefaultLimit  int
	MaxLimit      int
	QueryTimeout  time.Duration
	ScoreWorkers  int
	BuildOnDemand bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SampleSize:    200,
		MinScore:      30,
		DefaultLimit:  8,
		MaxLimit:      50,
		QueryTimeout:  250 * time.Millisecond,
		ScoreWorkers:  runtime.GOMAXPROCS(0),
		BuildOnDemand: true,
	}
}

type Service struct {
	catalog   Catalog
	cache     *cache.Cache
	scorer    Scorer
	extractor Extractor
	sampler   *sampler.Sampler
	results   ResultCache
	registry  *equivalence.Holder
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// profile captures the settings that shape a ranking; it is part of
	// every result-cache key.
	profile string
	builds  singleflight.Group
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

func WithSampler(sm *sampler.Sampler) Option {
	return func(s *Service) {
		s.sampler = sm
	}
}

func WithResultCache(rc ResultCache) Option {
	return func(s *Service) {
		s.results = rc
	}
}

// WithRegistry lets Status report the active registry version.
func WithRegistry(h *equivalence.Holder) Option {
	return func(s *Service) {
		s.registry = h
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(catalog Catalog, c *cache.Cache, scorer Scorer, extractor Extractor, opts ...Option) (*Service, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if c == nil {
		return nil, fmt.Errorf("intelligence cache is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}

	svc := &Service{
		catalog:   catalog,
		cache:     c,
		scorer:    scorer,
		extractor: extractor,
		sampler:   sampler.New(0),
		results:   resultcache.Noop{},
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.cfg.SampleSize <= 0 || svc.cfg.DefaultLimit <= 0 || svc.cfg.MaxLimit <= 0 {
		return nil, fmt.Errorf("sample size and limits must be positive")
	}
	if svc.cfg.DefaultLimit > svc.cfg.MaxLimit {
		return nil, fmt.Errorf("default limit %d exceeds max limit %d", svc.cfg.DefaultLimit, svc.cfg.MaxLimit)
	}
	if svc.cfg.ScoreWorkers <= 0 {
		svc.cfg.ScoreWorkers = 1
	}
	if svc.sampler == nil {
		svc.sampler = sampler.New(0)
	}
	svc.profile = scoringProfile(svc.scorer, svc.cfg, svc.sampler)
	return svc, nil
}

func scoringProfile(scorer Scorer, cfg Config, sm *sampler.Sampler) string {
	weights := fmt.Sprintf("%T", scorer)
	if w, ok := scorer.(interface{ Weights() scoring.Weights }); ok {
		weights = fmt.Sprintf("%+v", w.Weights())
	}
	return fmt.Sprintf("%s|min=%d|n=%d|seed=%d", weights, cfg.MinScore, cfg.SampleSize, sm.Seed())
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// Refresh rebuilds the cache from the catalog. Concurrent callers share one
// build; the build itself is not cancelled when a waiting caller gives up.
func (s *Service) Refresh(ctx context.Context) (models.CacheStatus, error) {
	ch := s.builds.DoChan("build", func() (any, error) {
		bctx := context.WithoutCancel(ctx)
		records, err := s.catalog.All(bctx)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		snap, err := s.cache.Build(bctx, records)
		if err != nil {
			return nil, err
		}
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return models.CacheStatus{}, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "refresh abandoned")
	case res := <-ch:
		if res.Err != nil {
			s.logger.ErrorContext(ctx, "intelligence cache refresh failed", "error", res.Err)
			return models.CacheStatus{}, dErrors.Wrap(res.Err, dErrors.CodeUnavailable, "failed to refresh intelligence cache")
		}
		return s.cache.Status(), nil
	}
}

// Status describes the cache and the active registry.
func (s *Service) Status() models.EngineStatus {
	st := models.EngineStatus{Cache: s.cache.Status()}
	if s.registry != nil {
		reg := s.registry.Current()
		st.RegistryVersion = reg.Version()
		st.RegistryHash = reg.Hash()
	}
	return st
}

// Ready reports whether queries can be answered without a build.
func (s *Service) Ready() bool {
	return s.cache.Ready()
}

// Attributes returns the cached attributes of a product.
func (s *Service) Attributes(ctx context.Context, pid id.ProductID) (models.AttributeSet, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return models.AttributeSet{}, err
	}
	attrs, err := snap.Get(pid)
	if err != nil {
		return models.AttributeSet{}, dErrors.Wrap(err, dErrors.CodeNotFound, "product not found")
	}
	return attrs, nil
}

// Extract runs the extractor over ad hoc text.
func (s *Service) Extract(name, manufacturer string) models.AttributeSet {
	return s.extractor.ExtractText(name, manufacturer)
}

// snapshot returns the current cache snapshot, building it first when
// on-demand builds are enabled.
func (s *Service) snapshot(ctx context.Context) (*cache.Snapshot, error) {
	snap, err := s.cache.Snapshot()
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, cache.ErrNotReady) || !s.cfg.BuildOnDemand {
		return nil, dErrors.Wrap(err, dErrors.CodeNotReady, "intelligence cache is not ready")
	}

	s.logger.InfoContext(ctx, "building intelligence cache on demand")
	if _, err := s.Refresh(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotReady, "intelligence cache is not ready")
	}
	snap, err = s.cache.Snapshot()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotReady, "intelligence cache is not ready")
	}
	return snap, nil
}
