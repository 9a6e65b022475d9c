package service

//go:generate mockgen -source=../../catalog/ports/ports.go -destination=mocks/catalog.go -package=mocks Repository
//go:generate mockgen -source=../resultcache/resultcache.go -destination=mocks/resultcache.go -package=mocks Store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	catalog "armory/internal/catalog/models"
	"armory/internal/catalog/store/memory"
	"armory/internal/intel/cache"
	"armory/internal/intel/equivalence"
	"armory/internal/intel/extract"
	"armory/internal/intel/models"
	"armory/internal/intel/resultcache"
	"armory/internal/intel/sampler"
	"armory/internal/intel/scoring"
	"armory/internal/intel/service/mocks"
	id "armory/pkg/domain"
	dErrors "armory/pkg/domain-errors"
	"armory/pkg/platform/sentinel"
)

// =============================================================================
// Related Products Service Test Suite
// =============================================================================
// The catalog repository and result cache are mocked; extraction, caching,
// sampling and scoring are real so rankings reflect production behavior.

func fixture() []catalog.Record {
	w13, w14 := 1.3, 1.4
	return []catalog.Record{
		{ID: 1, Name: `GLOCK 19 GEN5 9MM 4.02" 15RD STRIKER FIRED PISTOL`, Manufacturer: "GLOCK", Category: "HANDGUNS", DepartmentCode: "01", Weight: &w13},
		{ID: 2, Name: `GLOCK 17 GEN5 9MM LUGER 4.49" 17RD STRIKER FIRED PISTOL`, Manufacturer: "GLOCK", Category: "HANDGUNS", DepartmentCode: "01", Weight: &w14},
		{ID: 3, Name: "GLOCK 21 45 ACP 13RD PISTOL", Manufacturer: "GLOCK", Category: "HANDGUNS", DepartmentCode: "01"},
		{ID: 4, Name: `SIG SAUER P320 9MM 4.7" 17RD STRIKER FIRED PISTOL`, Manufacturer: "SIG SAUER", Category: "HANDGUNS", DepartmentCode: "01"},
		{ID: 5, Name: "GLOCK BRAND HAT", Manufacturer: "GLOCK", Category: "APPAREL", DepartmentCode: "09"},
		{ID: 6, Name: "MOSSBERG 500 12GA PUMP SHOTGUN", Manufacturer: "MOSSBERG", Category: "LONG GUNS", DepartmentCode: "02"},
	}
}

func byIDs(records []catalog.Record, ids ...id.ProductID) []catalog.Record {
	index := make(map[id.ProductID]catalog.Record, len(records))
	for _, r := range records {
		index[r.ID] = r
	}
	out := make([]catalog.Record, 0, len(ids))
	for _, pid := range ids {
		if r, ok := index[pid]; ok {
			out = append(out, r)
		}
	}
	return out
}

func itemIDs(result *models.RankedResult) []id.ProductID {
	out := make([]id.ProductID, len(result.Items))
	for i, it := range result.Items {
		out[i] = it.Product.ID
	}
	return out
}

// keyMatcher matches result-cache keys by target and limit. The fingerprint
// part is exercised by TestSharedResultCache.
type keyMatcher struct {
	target id.ProductID
	limit  int
}

func resultKeyFor(target id.ProductID, limit int) keyMatcher {
	return keyMatcher{target: target, limit: limit}
}

func (m keyMatcher) Matches(x any) bool {
	k, ok := x.(resultcache.Key)
	return ok && k.Fingerprint != "" && k.Target == m.target && k.Limit == m.limit
}

func (m keyMatcher) String() string {
	return fmt.Sprintf("result key for target %d, limit %d", m.target, m.limit)
}

// mapStore is a result cache shared by several services, standing in for
// one Redis behind many processes.
type mapStore struct {
	mu      sync.Mutex
	entries map[string]*resultcache.Entry
	hits    int
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string]*resultcache.Entry)}
}

func (m *mapStore) Get(_ context.Context, key resultcache.Key) (*resultcache.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key.String()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	m.hits++
	return e, nil
}

func (m *mapStore) Set(_ context.Context, key resultcache.Key, entry *resultcache.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key.String()] = entry
	return nil
}

func (m *mapStore) hitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}

// slowScorer makes every comparison take a fixed time.
type slowScorer struct {
	delay time.Duration
}

func (s slowScorer) Score(models.AttributeSet, models.AttributeSet) models.Score {
	time.Sleep(s.delay)
	return models.Score{Points: 50, Reasons: []string{"slow"}}
}

type RelatedProductsSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	catalog   *mocks.MockRepository
	results   *mocks.MockStore
	holder    *equivalence.Holder
	extractor *extract.Extractor
	scorer    *scoring.Scorer
	records   []catalog.Record
	logger    *slog.Logger
}

func TestRelatedProductsSuite(t *testing.T) {
	suite.Run(t, new(RelatedProductsSuite))
}

func (s *RelatedProductsSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.catalog = mocks.NewMockRepository(s.ctrl)
	s.results = mocks.NewMockStore(s.ctrl)
	s.records = fixture()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	reg, err := equivalence.Default()
	s.Require().NoError(err)
	s.holder, err = equivalence.NewHolder(reg)
	s.Require().NoError(err)
	s.extractor, err = extract.New(s.holder)
	s.Require().NoError(err)
	s.scorer, err = scoring.New(s.holder, scoring.DefaultWeights())
	s.Require().NoError(err)
}

func (s *RelatedProductsSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RelatedProductsSuite) newService(scorer Scorer, cfg Config) *Service {
	c, err := cache.New(s.extractor, cache.WithWorkers(2), cache.WithLogger(s.logger))
	s.Require().NoError(err)
	svc, err := New(s.catalog, c, scorer, s.extractor,
		WithConfig(cfg),
		WithSampler(sampler.New(7)),
		WithResultCache(s.results),
		WithRegistry(s.holder),
		WithLogger(s.logger),
	)
	s.Require().NoError(err)
	return svc
}

func (s *RelatedProductsSuite) defaultService() *Service {
	return s.newService(s.scorer, DefaultConfig())
}

func (s *RelatedProductsSuite) expectBuild() {
	s.catalog.EXPECT().All(gomock.Any()).Return(s.records, nil)
}

func (s *RelatedProductsSuite) expectResultMiss() {
	s.results.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
}

// expectResolve answers FindByIDs in reverse so callers must restore order.
func (s *RelatedProductsSuite) expectResolve(ids ...id.ProductID) {
	reversed := make([]id.ProductID, len(ids))
	for i, pid := range ids {
		reversed[len(ids)-1-i] = pid
	}
	s.catalog.EXPECT().FindByIDs(gomock.Any(), ids).Return(byIDs(s.records, reversed...), nil)
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *RelatedProductsSuite) TestNew() {
	c, err := cache.New(s.extractor)
	s.Require().NoError(err)

	s.Run("nil catalog returns error", func() {
		_, err := New(nil, c, s.scorer, s.extractor)
		s.ErrorContains(err, "catalog repository is required")
	})

	s.Run("nil cache returns error", func() {
		_, err := New(s.catalog, nil, s.scorer, s.extractor)
		s.ErrorContains(err, "intelligence cache is required")
	})

	s.Run("nil scorer returns error", func() {
		_, err := New(s.catalog, c, nil, s.extractor)
		s.ErrorContains(err, "scorer is required")
	})

	s.Run("nil extractor returns error", func() {
		_, err := New(s.catalog, c, s.scorer, nil)
		s.ErrorContains(err, "extractor is required")
	})

	s.Run("default limit above max limit returns error", func() {
		cfg := DefaultConfig()
		cfg.DefaultLimit = 60
		_, err := New(s.catalog, c, s.scorer, s.extractor, WithConfig(cfg))
		s.Error(err)
	})

	s.Run("options are applied", func() {
		svc, err := New(s.catalog, c, s.scorer, s.extractor, WithLogger(s.logger), WithResultCache(s.results))
		s.Require().NoError(err)
		s.Equal(s.logger, svc.logger)
		s.Equal(s.results, svc.results)
	})
}

// =============================================================================
// Ranking
// =============================================================================

func (s *RelatedProductsSuite) TestRanking() {
	svc := s.defaultService()
	s.expectBuild()
	s.expectResultMiss()
	s.expectResolve(2, 4, 3)
	s.results.EXPECT().Set(gomock.Any(), resultKeyFor(1, 8), gomock.Any()).Return(nil)

	result, err := svc.RelatedProducts(context.Background(), 1, 8)
	s.Require().NoError(err)

	s.Equal([]id.ProductID{2, 4, 3}, itemIDs(result))
	s.Equal(5, result.Sampled)
	s.Equal(5, result.Scored)
	s.False(result.Partial)

	s.Run("perfect match leads with the combined reason", func() {
		top := result.Items[0].Score
		s.Equal(175, top.Points)
		s.Equal("Same manufacturer, caliber and type (GLOCK, 9MM, PISTOL)", top.Reasons[0])
	})

	s.Run("scores are descending and above the threshold", func() {
		for i, it := range result.Items {
			s.GreaterOrEqual(it.Score.Points, svc.Config().MinScore)
			if i > 0 {
				s.LessOrEqual(it.Score.Points, result.Items[i-1].Score.Points)
			}
		}
		s.NotContains(itemIDs(result), id.ProductID(5), "manufacturer-only match is below the threshold")
	})
}

func (s *RelatedProductsSuite) TestLimit() {
	s.Run("truncates to limit", func() {
		svc := s.defaultService()
		s.expectBuild()
		s.expectResultMiss()
		s.expectResolve(2, 4)
		s.results.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		result, err := svc.RelatedProducts(context.Background(), 1, 2)
		s.Require().NoError(err)
		s.Equal([]id.ProductID{2, 4}, itemIDs(result))
	})

	s.Run("clamps to max limit", func() {
		cfg := DefaultConfig()
		cfg.DefaultLimit = 1
		cfg.MaxLimit = 1
		svc := s.newService(s.scorer, cfg)
		s.expectBuild()
		s.expectResultMiss()
		s.expectResolve(2)
		s.results.EXPECT().Set(gomock.Any(), resultKeyFor(1, 1), gomock.Any()).Return(nil)

		result, err := svc.RelatedProducts(context.Background(), 1, 40)
		s.Require().NoError(err)
		s.Len(result.Items, 1)
	})

	s.Run("rejects non-positive limit", func() {
		svc := s.defaultService()
		_, err := svc.RelatedProducts(context.Background(), 1, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *RelatedProductsSuite) TestNoMatchesIsNotAnError() {
	svc := s.defaultService()
	s.expectBuild()
	s.expectResultMiss()
	s.results.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	result, err := svc.RelatedProducts(context.Background(), 6, 8)
	s.Require().NoError(err)
	s.NotNil(result.Items)
	s.Empty(result.Items)
}

func (s *RelatedProductsSuite) TestRecordsMissingFromCatalogAreSkipped() {
	svc := s.defaultService()
	s.expectBuild()
	s.expectResultMiss()
	s.catalog.EXPECT().FindByIDs(gomock.Any(), []id.ProductID{2, 4, 3}).Return(byIDs(s.records, 3, 2), nil)
	s.results.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	result, err := svc.RelatedProducts(context.Background(), 1, 8)
	s.Require().NoError(err)
	s.Equal([]id.ProductID{2, 3}, itemIDs(result))
}

func (s *RelatedProductsSuite) TestCatalogFailureDuringResolve() {
	svc := s.defaultService()
	s.expectBuild()
	s.expectResultMiss()
	s.catalog.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	_, err := svc.RelatedProducts(context.Background(), 1, 8)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *RelatedProductsSuite) TestSequentialAndParallelScoringAgree() {
	ranking := func(workers int) []id.ProductID {
		cfg := DefaultConfig()
		cfg.ScoreWorkers = workers
		svc := s.newService(s.scorer, cfg)
		s.expectBuild()
		s.expectResultMiss()
		s.catalog.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, ids []id.ProductID) ([]catalog.Record, error) {
				return byIDs(s.records, ids...), nil
			})
		s.results.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		result, err := svc.RelatedProducts(context.Background(), 4, 8)
		s.Require().NoError(err)
		return itemIDs(result)
	}

	s.Equal(ranking(1), ranking(8))
}

// =============================================================================
// Readiness and Not Found
// =============================================================================

func (s *RelatedProductsSuite) TestTargetNotFound() {
	svc := s.defaultService()
	s.expectBuild()

	_, err := svc.RelatedProducts(context.Background(), 99, 8)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.ErrorIs(err, cache.ErrNotFound)
}

func (s *RelatedProductsSuite) TestNotReadyWithoutOnDemandBuild() {
	cfg := DefaultConfig()
	cfg.BuildOnDemand = false
	svc := s.newService(s.scorer, cfg)

	_, err := svc.RelatedProducts(context.Background(), 1, 8)
	s.True(dErrors.HasCode(err, dErrors.CodeNotReady))
	s.False(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RelatedProductsSuite) TestFailedOnDemandBuildIsNotReady() {
	svc := s.defaultService()
	s.catalog.EXPECT().All(gomock.Any()).Return(nil, errors.New("database down"))

	_, err := svc.RelatedProducts(context.Background(), 1, 8)
	s.True(dErrors.HasCode(err, dErrors.CodeNotReady))
	s.False(svc.Ready())
}

// =============================================================================
// Deadline
// =============================================================================

func (s *RelatedProductsSuite) TestDeadlineReturnsPartialResults() {
	cfg := DefaultConfig()
	cfg.QueryTimeout = 5 * time.Millisecond
	cfg.ScoreWorkers = 1
	svc := s.newService(slowScorer{delay: 4 * time.Millisecond}, cfg)

	s.expectBuild()
	s.expectResultMiss()
	s.catalog.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ids []id.ProductID) ([]catalog.Record, error) {
			return byIDs(s.records, ids...), nil
		})
	// Partial rankings are never written to the result cache.
	s.results.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	result, err := svc.RelatedProducts(context.Background(), 1, 8)
	s.Require().NoError(err)
	s.True(result.Partial)
	s.Less(result.Scored, result.Sampled)
}

func (s *RelatedProductsSuite) TestCallerDeadlineReturnsPartialResults() {
	cfg := DefaultConfig()
	cfg.QueryTimeout = 0
	cfg.ScoreWorkers = 1
	svc := s.newService(slowScorer{delay: 4 * time.Millisecond}, cfg)

	s.expectBuild()
	_, err := svc.Refresh(context.Background())
	s.Require().NoError(err)

	s.expectResultMiss()
	s.catalog.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, ids []id.ProductID) ([]catalog.Record, error) {
			s.NoError(ctx.Err(), "records are resolved under their own deadline")
			return byIDs(s.records, ids...), nil
		})
	s.results.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Millisecond)
	defer cancel()
	result, err := svc.RelatedProducts(ctx, 1, 8)
	s.Require().NoError(err)
	s.True(result.Partial)
	s.Less(result.Scored, result.Sampled)
}

func (s *RelatedProductsSuite) TestCancelledRequestIsAnError() {
	svc := s.defaultService()
	s.expectBuild()
	_, err := svc.Refresh(context.Background())
	s.Require().NoError(err)

	s.expectResultMiss()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.RelatedProducts(ctx, 1, 8)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

// =============================================================================
// Result Cache
// =============================================================================

func (s *RelatedProductsSuite) TestResultCache() {
	s.Run("hit skips scoring and resolves cached ids", func() {
		svc := s.defaultService()
		s.expectBuild()
		s.results.EXPECT().Get(gomock.Any(), resultKeyFor(1, 8)).Return(&resultcache.Entry{
			Items:   []resultcache.Item{{ID: 3, Score: models.Score{Points: 99}}, {ID: 2, Score: models.Score{Points: 98}}},
			Sampled: 5,
			Scored:  5,
		}, nil)
		s.expectResolve(3, 2)

		result, err := svc.RelatedProducts(context.Background(), 1, 8)
		s.Require().NoError(err)
		s.Equal([]id.ProductID{3, 2}, itemIDs(result))
		s.Equal(99, result.Items[0].Score.Points)
	})

	s.Run("lookup error falls back to scoring", func() {
		svc := s.defaultService()
		s.expectBuild()
		s.results.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis timeout"))
		s.expectResolve(2, 4, 3)
		s.results.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis timeout"))

		result, err := svc.RelatedProducts(context.Background(), 1, 8)
		s.Require().NoError(err)
		s.Equal([]id.ProductID{2, 4, 3}, itemIDs(result))
	})

	s.Run("open circuit is bypassed", func() {
		svc := s.defaultService()
		s.expectBuild()
		s.results.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, resultcache.ErrCircuitOpen)
		s.expectResolve(2, 4, 3)
		s.results.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(resultcache.ErrCircuitOpen)

		result, err := svc.RelatedProducts(context.Background(), 1, 8)
		s.Require().NoError(err)
		s.Equal([]id.ProductID{2, 4, 3}, itemIDs(result))
	})
}

// sharedService runs over an in-memory catalog and the given store, as a
// separate process sharing one Redis would.
func (s *RelatedProductsSuite) sharedService(records []catalog.Record, store resultcache.Store, holder *equivalence.Holder) *Service {
	extractor, err := extract.New(holder)
	s.Require().NoError(err)
	scorer, err := scoring.New(holder, scoring.DefaultWeights())
	s.Require().NoError(err)
	c, err := cache.New(extractor, cache.WithLogger(s.logger))
	s.Require().NoError(err)
	svc, err := New(memory.New(records...), c, scorer, extractor,
		WithSampler(sampler.New(7)),
		WithResultCache(store),
		WithRegistry(holder),
		WithLogger(s.logger),
	)
	s.Require().NoError(err)
	return svc
}

func (s *RelatedProductsSuite) TestSharedResultCache() {
	ctx := context.Background()
	store := newMapStore()

	first := s.sharedService(fixture(), store, s.holder)
	result, err := first.RelatedProducts(ctx, 1, 8)
	s.Require().NoError(err)
	s.Require().Equal([]id.ProductID{2, 4, 3}, itemIDs(result))
	s.Zero(store.hitCount())

	s.Run("identical catalog reuses the ranking", func() {
		other := s.sharedService(fixture(), store, s.holder)
		hits := store.hitCount()

		result, err := other.RelatedProducts(ctx, 1, 8)
		s.Require().NoError(err)
		s.Equal(hits+1, store.hitCount())
		s.Equal([]id.ProductID{2, 4, 3}, itemIDs(result))
	})

	s.Run("same ids with different content are scored afresh", func() {
		changed := fixture()
		changed[1] = catalog.Record{ID: 2, Name: "BASEBALL HAT", Manufacturer: "ACME", Category: "APPAREL", DepartmentCode: "09"}
		other := s.sharedService(changed, store, s.holder)
		hits := store.hitCount()

		result, err := other.RelatedProducts(ctx, 1, 8)
		s.Require().NoError(err)
		s.Equal(hits, store.hitCount())
		s.NotContains(itemIDs(result), id.ProductID(2))
		for _, it := range result.Items {
			s.GreaterOrEqual(it.Score.Points, other.Config().MinScore)
		}
	})

	s.Run("registry reload changes the key", func() {
		reg, err := equivalence.Default()
		s.Require().NoError(err)
		holder, err := equivalence.NewHolder(reg, equivalence.WithLogger(s.logger))
		s.Require().NoError(err)
		svc := s.sharedService(fixture(), store, holder)
		snap, err := svc.snapshot(ctx)
		s.Require().NoError(err)
		before := svc.resultKey(snap, 1, 8)

		path := filepath.Join(s.T().TempDir(), "registry.yaml")
		s.Require().NoError(os.WriteFile(path, []byte("version: \"next\"\ndimensions: {}\n"), 0o600))
		s.Require().NoError(holder.Reload(ctx, path))

		after := svc.resultKey(snap, 1, 8)
		s.NotEqual(before.String(), after.String())
	})

	s.Run("scoring settings are part of the key", func() {
		cfg := DefaultConfig()
		cfg.MinScore = 10
		a := s.sharedService(fixture(), store, s.holder)
		b, err := New(memory.New(fixture()...), a.cache, a.scorer, a.extractor,
			WithConfig(cfg), WithSampler(sampler.New(7)), WithRegistry(s.holder))
		s.Require().NoError(err)
		snap, err := a.snapshot(ctx)
		s.Require().NoError(err)
		s.NotEqual(a.resultKey(snap, 1, 8).String(), b.resultKey(snap, 1, 8).String())
	})
}

// =============================================================================
// Refresh, Attributes, Status
// =============================================================================

func (s *RelatedProductsSuite) TestRefresh() {
	s.Run("concurrent refreshes share one build", func() {
		svc := s.defaultService()
		release := make(chan struct{})
		s.catalog.EXPECT().All(gomock.Any()).DoAndReturn(func(context.Context) ([]catalog.Record, error) {
			<-release
			return s.records, nil
		}).Times(1)

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				status, err := svc.Refresh(context.Background())
				s.NoError(err)
				s.Equal(uint64(1), status.Generation)
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()
		s.True(svc.Ready())
	})

	s.Run("catalog failure is unavailable", func() {
		svc := s.defaultService()
		s.catalog.EXPECT().All(gomock.Any()).Return(nil, errors.New("database down"))

		_, err := svc.Refresh(context.Background())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *RelatedProductsSuite) TestAttributes() {
	svc := s.defaultService()
	s.expectBuild()

	attrs, err := svc.Attributes(context.Background(), 4)
	s.Require().NoError(err)
	s.Equal("SIG SAUER", *attrs.Manufacturer)
	s.Equal("9MM", *attrs.Caliber)

	_, err = svc.Attributes(context.Background(), 404)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RelatedProductsSuite) TestStatus() {
	svc := s.defaultService()
	s.False(svc.Status().Cache.Ready)
	s.Equal(s.holder.Current().Version(), svc.Status().RegistryVersion)

	s.expectBuild()
	_, err := svc.Refresh(context.Background())
	s.Require().NoError(err)

	st := svc.Status()
	s.True(st.Cache.Ready)
	s.Equal(len(s.records), st.Cache.Size)
}

func (s *RelatedProductsSuite) TestExtract() {
	svc := s.defaultService()
	attrs := svc.Extract("9MM LUGER 15RD", "")
	s.Equal("9MM", *attrs.Caliber)
	s.Equal("15", *attrs.Capacity)
}
