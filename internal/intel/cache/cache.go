// Package cache holds the precomputed attribute set of every catalog product.
//
// A build extracts attributes for the whole catalog and publishes the result
// as one immutable snapshot. Readers load the current snapshot without
// locking and keep using it even while a newer build is swapped in.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	catalog "armory/internal/catalog/models"
	"armory/internal/intel/metrics"
	"armory/internal/intel/models"
	id "armory/pkg/domain"
	"armory/pkg/platform/sentinel"
)

// Both wrap the platform sentinels so callers can match either.
var (
	ErrNotReady = fmt.Errorf("intelligence cache: %w", sentinel.ErrNotReady)
	ErrNotFound = fmt.Errorf("intelligence cache: product %w", sentinel.ErrNotFound)
)

var tracer = otel.Tracer("armory/intel/cache")

// Extractor derives the attributes of one record.
type Extractor interface {
	Extract(r catalog.Record) models.AttributeSet
}

// Snapshot is one immutable build of the cache.
type Snapshot struct {
	attrs       map[id.ProductID]models.AttributeSet
	ids         []id.ProductID
	generation  uint64
	fingerprint string
	builtAt     time.Time
}

// Get returns the attributes of pid.
func (s *Snapshot) Get(pid id.ProductID) (models.AttributeSet, error) {
	a, ok := s.attrs[pid]
	if !ok {
		return models.AttributeSet{}, ErrNotFound
	}
	return a, nil
}

// IDs is the product universe in ascending order. Callers must not modify it.
func (s *Snapshot) IDs() []id.ProductID { return s.ids }

// Len is the number of products in the snapshot.
func (s *Snapshot) Len() int { return len(s.ids) }

// Generation increases with every successful build.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Fingerprint digests the extracted attributes of every product. Two
// builds with equal fingerprints score identically under the same registry
// and weights, whichever process made them.
func (s *Snapshot) Fingerprint() string { return s.fingerprint }

// BuiltAt is when the snapshot was published.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Cache publishes attribute snapshots.
type Cache struct {
	extractor Extractor
	workers   int
	logger    *slog.Logger
	metrics   *metrics.Metrics

	current    atomic.Pointer[Snapshot]
	buildMu    sync.Mutex // serializes builds so generations only move forward
	generation uint64     // guarded by buildMu
}

// Option configures a Cache.
type Option func(*Cache)

// WithWorkers sets the number of extraction shards per build.
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger for build reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMetrics records build duration and size.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates an empty, not-yet-ready cache.
func New(extractor Extractor, opts ...Option) (*Cache, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	c := &Cache{
		extractor: extractor,
		workers:   runtime.GOMAXPROCS(0),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Build extracts attributes for every record and publishes them as a new
// snapshot. Every record gets an entry, even an empty one; a repeated ID
// keeps its last occurrence. On error the previous snapshot stays current.
func (c *Cache) Build(ctx context.Context, records []catalog.Record) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "cache.Build")
	defer span.End()
	span.SetAttributes(attribute.Int("cache.records", len(records)))

	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	start := time.Now()
	extracted := make([]models.AttributeSet, len(records))

	workers := min(c.workers, max(len(records), 1))
	shard := (len(records) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		lo := w * shard
		hi := min(lo+shard, len(records))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				extracted[i] = c.extractor.Extract(records[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build aborted")
		c.logger.WarnContext(ctx, "intelligence cache build aborted", "error", err)
		return nil, fmt.Errorf("build intelligence cache: %w", err)
	}

	attrs := make(map[id.ProductID]models.AttributeSet, len(records))
	for i, r := range records {
		attrs[r.ID] = extracted[i]
	}
	ids := make([]id.ProductID, 0, len(attrs))
	for pid := range attrs {
		ids = append(ids, pid)
	}
	slices.Sort(ids)
	fp, err := fingerprint(ids, attrs)
	if err != nil {
		return nil, fmt.Errorf("fingerprint intelligence cache: %w", err)
	}

	c.generation++
	snap := &Snapshot{
		attrs:       attrs,
		ids:         ids,
		generation:  c.generation,
		fingerprint: fp,
		builtAt:     time.Now().UTC(),
	}
	c.current.Store(snap)

	elapsed := time.Since(start)
	c.metrics.ObserveBuild(elapsed, len(ids), snap.generation)
	span.SetAttributes(
		attribute.Int("cache.size", len(ids)),
		attribute.Int64("cache.generation", int64(snap.generation)),
	)
	c.logger.InfoContext(ctx, "intelligence cache built",
		"size", len(ids),
		"generation", snap.generation,
		"workers", workers,
		"duration_ms", elapsed.Milliseconds(),
	)
	return snap, nil
}

func fingerprint(ids []id.ProductID, attrs map[id.ProductID]models.AttributeSet) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, pid := range ids {
		h.Write(strconv.AppendInt(nil, int64(pid), 10))
		if err := enc.Encode(attrs[pid]); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}

// Snapshot returns the current snapshot or ErrNotReady before the first build.
func (c *Cache) Snapshot() (*Snapshot, error) {
	snap := c.current.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

// Get returns the attributes of pid from the current snapshot.
func (c *Cache) Get(pid id.ProductID) (models.AttributeSet, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return models.AttributeSet{}, err
	}
	return snap.Get(pid)
}

// IDs returns the product universe of the current snapshot.
func (c *Cache) IDs() ([]id.ProductID, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.IDs(), nil
}

// Ready reports whether a build has completed.
func (c *Cache) Ready() bool {
	return c.current.Load() != nil
}

// Status describes the current snapshot.
func (c *Cache) Status() models.CacheStatus {
	snap := c.current.Load()
	if snap == nil {
		return models.CacheStatus{}
	}
	return models.CacheStatus{
		Ready:      true,
		Size:       snap.Len(),
		Generation: snap.generation,
		BuiltAt:    snap.builtAt,
	}
}
