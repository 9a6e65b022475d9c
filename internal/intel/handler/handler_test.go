package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	catalog "armory/internal/catalog/models"
	"armory/internal/catalog/store/memory"
	"armory/internal/intel/cache"
	"armory/internal/intel/equivalence"
	"armory/internal/intel/extract"
	"armory/internal/intel/models"
	"armory/internal/intel/sampler"
	"armory/internal/intel/scoring"
	"armory/internal/intel/service"
	"armory/internal/platform/middleware"
	id "armory/pkg/domain"
	"armory/pkg/testutil"
)

// =============================================================================
// Intel Handler Test Suite
// =============================================================================
// Handlers run against the real service over an in-memory catalog.

const adminToken = "secret-token"

func records() []catalog.Record {
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

type IntelHandlerSuite struct {
	suite.Suite
	logger *slog.Logger
	svc    *service.Service
	router chi.Router
}

func TestIntelHandlerSuite(t *testing.T) {
	suite.Run(t, new(IntelHandlerSuite))
}

func (s *IntelHandlerSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc, s.router = s.newRouter(service.DefaultConfig())
}

func (s *IntelHandlerSuite) newRouter(cfg service.Config) (*service.Service, chi.Router) {
	reg, err := equivalence.Default()
	s.Require().NoError(err)
	holder, err := equivalence.NewHolder(reg)
	s.Require().NoError(err)
	extractor, err := extract.New(holder)
	s.Require().NoError(err)
	scorer, err := scoring.New(holder, scoring.DefaultWeights())
	s.Require().NoError(err)
	c, err := cache.New(extractor, cache.WithLogger(s.logger))
	s.Require().NoError(err)

	svc, err := service.New(memory.New(records()...), c, scorer, extractor,
		service.WithConfig(cfg),
		service.WithSampler(sampler.New(11)),
		service.WithRegistry(holder),
		service.WithLogger(s.logger),
	)
	s.Require().NoError(err)

	r := chi.NewRouter()
	New(svc, s.logger, nil, WithDefaultLimit(cfg.DefaultLimit), WithAdminToken(adminToken)).Register(r)
	return svc, r
}

func (s *IntelHandlerSuite) do(req *http.Request) int {
	rr := testutil.DoRequest(s.router, req)
	return rr.Code
}

func (s *IntelHandlerSuite) adminRequest(method, path string) *http.Request {
	req := testutil.NewRequest(s.T(), method, path)
	req.Header.Set(middleware.AdminTokenHeader, adminToken)
	return req
}

// =============================================================================
// GET /products/{id}/related
// =============================================================================

func (s *IntelHandlerSuite) TestRelated() {
	s.Run("ranks related products by score", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products/1/related"))
		testutil.AssertStatusOK(s.T(), rr)

		result := testutil.UnmarshalResponse[models.RankedResult](s.T(), rr)
		s.Equal(id.ProductID(1), result.TargetID)
		s.Require().Len(result.Items, 3)
		s.Equal(id.ProductID(2), result.Items[0].Product.ID)
		s.Equal(175, result.Items[0].Score.Points)
		s.Equal(id.ProductID(4), result.Items[1].Product.ID)
		s.Equal(id.ProductID(3), result.Items[2].Product.ID)
		s.False(result.Partial)
		s.NotEmpty(rr.Header().Get(middleware.RequestIDHeader))
	})

	s.Run("honors the limit parameter", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products/1/related?limit=1"))
		testutil.AssertStatusOK(s.T(), rr)
		result := testutil.UnmarshalResponse[models.RankedResult](s.T(), rr)
		s.Require().Len(result.Items, 1)
		s.Equal(id.ProductID(2), result.Items[0].Product.ID)
	})

	s.Run("zero results is a successful empty answer", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products/6/related"))
		testutil.AssertStatusOK(s.T(), rr)
		result := testutil.UnmarshalResponse[models.RankedResult](s.T(), rr)
		s.Empty(result.Items)
	})
}

func (s *IntelHandlerSuite) TestRelatedErrors() {
	cases := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"non-numeric id", "/products/abc/related", http.StatusBadRequest, "invalid_input"},
		{"zero limit", "/products/1/related?limit=0", http.StatusBadRequest, "bad_request"},
		{"garbage limit", "/products/1/related?limit=ten", http.StatusBadRequest, "bad_request"},
		{"unknown product", "/products/999/related", http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, tc.path))
			testutil.AssertStatusAndError(s.T(), rr, tc.status, tc.code)
		})
	}
}

func (s *IntelHandlerSuite) TestNotReadyUntilRefreshed() {
	cfg := service.DefaultConfig()
	cfg.BuildOnDemand = false
	_, s.router = s.newRouter(cfg)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products/1/related"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "not_ready")
	s.Equal(http.StatusServiceUnavailable, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/health/ready")))

	rr = testutil.DoRequest(s.router, s.adminRequest(http.MethodPost, "/admin/intel/refresh"))
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[refreshResponse](s.T(), rr)
	s.True(resp.Cache.Ready)
	s.Equal(6, resp.Cache.Size)

	s.Equal(http.StatusOK, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/health/ready")))
	s.Equal(http.StatusOK, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/products/1/related")))
}

// =============================================================================
// Explainability
// =============================================================================

func (s *IntelHandlerSuite) TestAttributes() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products/1/attributes"))
	testutil.AssertStatusOK(s.T(), rr)

	resp := testutil.UnmarshalResponse[attributesResponse](s.T(), rr)
	s.Equal(id.ProductID(1), resp.ProductID)
	s.Require().NotNil(resp.Attributes.Caliber)
	s.Equal("9MM", *resp.Attributes.Caliber)
	s.Require().NotNil(resp.Attributes.Capacity)
	s.Equal("15", *resp.Attributes.Capacity)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/products/404/attributes"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *IntelHandlerSuite) TestExtract() {
	s.Run("extracts attributes from free text", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/intel/extract", map[string]string{"name": "9MM LUGER 15RD"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)

		attrs := testutil.UnmarshalResponse[models.AttributeSet](s.T(), rr)
		s.Require().NotNil(attrs.Caliber)
		s.Equal("9MM", *attrs.Caliber)
		s.Require().NotNil(attrs.Capacity)
		s.Equal("15", *attrs.Capacity)
	})

	s.Run("rejects a blank name", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/intel/extract", map[string]string{"name": "  "})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("rejects malformed JSON", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/intel/extract", "{not json")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

// =============================================================================
// Admin and health
// =============================================================================

func (s *IntelHandlerSuite) TestAdminRoutesRequireToken() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/admin/intel/refresh"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/intel/status"))
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *IntelHandlerSuite) TestStatus() {
	_, err := s.svc.Refresh(context.Background())
	s.Require().NoError(err)

	rr := testutil.DoRequest(s.router, s.adminRequest(http.MethodGet, "/admin/intel/status"))
	testutil.AssertStatusOK(s.T(), rr)

	status := testutil.UnmarshalResponse[models.EngineStatus](s.T(), rr)
	s.True(status.Cache.Ready)
	s.Equal(6, status.Cache.Size)
	s.NotEmpty(status.RegistryVersion)
	s.NotEmpty(status.RegistryHash)
}

func (s *IntelHandlerSuite) TestLiveness() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health/live"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "ok")
}
