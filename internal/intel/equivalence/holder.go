package equivalence

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"armory/internal/intel/metrics"
)

var tracer = otel.Tracer("armory/intel/equivalence")

// LoadFile reads and validates a registry file.
func LoadFile(ctx context.Context, path string) (*Registry, error) {
	_, span := tracer.Start(ctx, "equivalence.LoadFile")
	defer span.End()
	span.SetAttributes(attribute.String("registry.path", path))

	f, err := os.Open(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return nil, fmt.Errorf("open registry %s: %w", path, err)
	}
	defer f.Close()

	// One byte past the limit so Parse can reject oversized files.
	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	reg, err := Parse(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid registry")
		return nil, fmt.Errorf("load registry %s: %w", path, err)
	}
	span.SetAttributes(
		attribute.String("registry.version", reg.Version()),
		attribute.String("registry.hash", reg.Hash()),
	)
	return reg, nil
}

// Holder publishes the active Registry. Readers always see a complete
// registry; Reload replaces it atomically or not at all.
type Holder struct {
	current atomic.Pointer[Registry]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithLogger sets the logger used for reload reporting.
func WithLogger(logger *slog.Logger) HolderOption {
	return func(h *Holder) {
		h.logger = logger
	}
}

// WithMetrics records reload outcomes.
func WithMetrics(m *metrics.Metrics) HolderOption {
	return func(h *Holder) {
		h.metrics = m
	}
}

// NewHolder publishes initial as the active registry.
func NewHolder(initial *Registry, opts ...HolderOption) (*Holder, error) {
	if initial == nil {
		return nil, fmt.Errorf("initial registry is required")
	}
	h := &Holder{logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.current.Store(initial)
	return h, nil
}

// Current returns the active registry.
func (h *Holder) Current() *Registry {
	return h.current.Load()
}

// Reload loads path and swaps it in. On failure the active registry is kept.
func (h *Holder) Reload(ctx context.Context, path string) error {
	start := time.Now()
	reg, err := LoadFile(ctx, path)
	if err != nil {
		h.metrics.IncrementRegistryReload("error")
		h.logger.ErrorContext(ctx, "equivalence registry reload failed; keeping active registry",
			"path", path,
			"active_version", h.Current().Version(),
			"error", err,
		)
		return err
	}
	prev := h.current.Swap(reg)
	h.metrics.IncrementRegistryReload("ok")
	h.logger.InfoContext(ctx, "equivalence registry reloaded",
		"path", path,
		"version", reg.Version(),
		"hash", reg.Hash(),
		"previous_hash", prev.Hash(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (h *Holder) Canonicalize(dim Dimension, raw string) string {
	return h.Current().Canonicalize(dim, raw)
}

func (h *Holder) Members(dim Dimension, value string) []string {
	return h.Current().Members(dim, value)
}

func (h *Holder) Compatible(dim Dimension, a, b string) bool {
	return h.Current().Compatible(dim, a, b)
}

func (h *Holder) FindIn(dim Dimension, text string) (string, bool) {
	return h.Current().FindIn(dim, text)
}
