package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"armory/internal/intel/models"
	"armory/internal/platform/metrics"
	"armory/internal/platform/middleware"
	id "armory/pkg/domain"
	dErrors "armory/pkg/domain-errors"
	"armory/pkg/platform/httputil"
)

// Service defines the intelligence operations exposed over HTTP.
type Service interface {
	RelatedProducts(ctx context.Context, targetID id.ProductID, limit int) (*models.RankedResult, error)
	Attributes(ctx context.Context, pid id.ProductID) (models.AttributeSet, error)
	Extract(name, manufacturer string) models.AttributeSet
	Refresh(ctx context.Context) (models.CacheStatus, error)
	Status() models.EngineStatus
	Ready() bool
}

const (
	defaultLimit   = 8
	requestTimeout = 30 * time.Second
)

// Handler serves the related-products, explainability and admin endpoints.
type Handler struct {
	logger       *slog.Logger
	intel        Service
	metrics      *metrics.Metrics
	defaultLimit int
	adminToken   string
}

// Option configures a Handler.
type Option func(*Handler)

// WithDefaultLimit sets the limit used when a request omits one.
func WithDefaultLimit(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.defaultLimit = n
		}
	}
}

// WithAdminToken guards the admin routes with a shared secret.
func WithAdminToken(token string) Option {
	return func(h *Handler) {
		h.adminToken = token
	}
}

// New creates a new intel Handler.
func New(intel Service, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:       logger,
		intel:        intel,
		metrics:      metrics,
		defaultLimit: defaultLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the intel routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	intelRouter := chi.NewRouter()
	intelRouter.Use(middleware.Recovery(h.logger, h.metrics))
	intelRouter.Use(middleware.RequestID)
	intelRouter.Use(middleware.RequestTime)
	intelRouter.Use(middleware.ClientMetadata)
	intelRouter.Use(middleware.Logger(h.logger))
	intelRouter.Use(chimw.Timeout(requestTimeout))
	intelRouter.Use(middleware.LatencyMiddleware(h.metrics))

	intelRouter.Get("/products/{id}/related", h.handleRelated)
	intelRouter.Get("/products/{id}/attributes", h.handleAttributes)
	intelRouter.Post("/intel/extract", h.handleExtract)

	intelRouter.Route("/admin/intel", func(admin chi.Router) {
		admin.Use(middleware.RequireAdminToken(h.adminToken, h.logger))
		admin.Post("/refresh", h.handleRefresh)
		admin.Get("/status", h.handleStatus)
	})

	intelRouter.Get("/health/live", h.handleLive)
	intelRouter.Get("/health/ready", h.handleReady)

	r.Mount("/", intelRouter)
}

type extractRequest struct {
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
}

type attributesResponse struct {
	ProductID  id.ProductID        `json:"product_id"`
	Attributes models.AttributeSet `json:"attributes"`
}

type refreshResponse struct {
	Cache models.CacheStatus `json:"cache"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// handleRelated ranks related products for the product in the path.
func (h *Handler) handleRelated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	pid, err := id.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.WarnContext(ctx, "invalid product id",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.intel.RelatedProducts(ctx, pid, limit)
	if err != nil {
		h.logFailure(ctx, "related products failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAttributes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	pid, err := id.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	attrs, err := h.intel.Attributes(ctx, pid)
	if err != nil {
		h.logFailure(ctx, "attribute lookup failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, attributesResponse{ProductID: pid, Attributes: attrs})
}

// handleExtract runs the extractor over ad hoc text without touching the cache.
func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[extractRequest](w, r, h.logger)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "name is required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.intel.Extract(req.Name, req.Manufacturer))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	start := time.Now()
	status, err := h.intel.Refresh(ctx)
	if err != nil {
		h.logFailure(ctx, "intelligence refresh failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "intelligence refreshed",
		"request_id", requestID,
		"size", status.Size,
		"generation", status.Generation,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, refreshResponse{Cache: status})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.intel.Status())
}

func (h *Handler) handleLive(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// handleReady reports 503 until the first cache build has been published.
func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !h.intel.Ready() {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not_ready"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ready"})
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
	}
	return n, nil
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg, requestID string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeNotFound:
		h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err.Error())
	default:
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err.Error())
	}
}
