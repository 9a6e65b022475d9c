package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	catalog "armory/internal/catalog/models"
	"armory/internal/intel/cache"
	"armory/internal/intel/models"
	"armory/internal/intel/resultcache"
	id "armory/pkg/domain"
	dErrors "armory/pkg/domain-errors"
	"armory/pkg/platform/sentinel"
	"armory/pkg/requestcontext"
)

var tracer = otel.Tracer("armory/intel/service")

// Query outcomes reported to metrics.
const (
	outcomeOK       = "ok"
	outcomePartial  = "partial"
	outcomeCacheHit = "cache_hit"
	outcomeNotFound = "not_found"
	outcomeNotReady = "not_ready"
	outcomeError    = "error"
)

// lateResolveTimeout bounds the catalog lookup made after the caller's own
// deadline has passed.
const lateResolveTimeout = 100 * time.Millisecond

// RelatedProducts ranks sampled catalog products by similarity to targetID
// and returns at most limit of them. Fewer results than limit is a valid
// answer; the list is never padded.
func (s *Service) RelatedProducts(ctx context.Context, targetID id.ProductID, limit int) (*models.RankedResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "service.RelatedProducts",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int64("target_id", int64(targetID)), attribute.Int("limit", limit)),
	)
	defer span.End()

	if limit < 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "limit must be at least 1")
	}
	limit = min(limit, s.cfg.MaxLimit)

	snap, err := s.snapshot(ctx)
	if err != nil {
		s.metrics.IncrementOutcome(outcomeNotReady)
		return nil, err
	}
	target, err := snap.Get(targetID)
	if err != nil {
		s.metrics.IncrementOutcome(outcomeNotFound)
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "product not found")
	}

	key := s.resultKey(snap, targetID, limit)
	if result, ok := s.fromResultCache(ctx, key, snap.Generation()); ok {
		s.metrics.ObserveQuery(time.Since(start), outcomeCacheHit, 0, len(result.Items))
		return result, nil
	}

	candidates := s.sampler.Sample(snap.IDs(), targetID, s.cfg.SampleSize)
	scored, partial := s.scoreAll(ctx, snap, target, candidates)

	// An expired caller deadline still yields what was scored. Records are
	// then resolved under a short grace period of their own.
	rctx := ctx
	switch err := ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), lateResolveTimeout)
		defer cancel()
	case err != nil:
		s.metrics.IncrementOutcome(outcomeError)
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled")
	}

	ranked := rank(scored, s.cfg.MinScore, limit)

	items, err := s.resolve(rctx, ranked)
	if err != nil {
		s.metrics.IncrementOutcome(outcomeError)
		return nil, err
	}

	result := &models.RankedResult{
		TargetID:   targetID,
		Items:      items,
		Sampled:    len(candidates),
		Scored:     len(scored),
		Partial:    partial,
		Generation: snap.Generation(),
	}

	// A partial ranking depends on how far scoring got and is not reused.
	if !partial {
		s.toResultCache(rctx, key, ranked, result)
	}

	outcome := outcomeOK
	if partial {
		outcome = outcomePartial
	}
	elapsed := time.Since(start)
	s.metrics.ObserveQuery(elapsed, outcome, len(scored), len(items))
	span.SetAttributes(
		attribute.Int("sampled", result.Sampled),
		attribute.Int("scored", result.Scored),
		attribute.Int("returned", len(items)),
		attribute.Bool("partial", partial),
	)
	s.logger.DebugContext(ctx, "related products ranked",
		"request_id", requestcontext.RequestID(ctx),
		"target_id", targetID,
		"sampled", result.Sampled,
		"scored", result.Scored,
		"returned", len(items),
		"partial", partial,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

// scoreAll scores candidates in parallel. Each worker writes only its own
// slots so the merged order is the sampling order. Scoring stops at the
// query deadline; the second return value reports whether that happened.
func (s *Service) scoreAll(
	ctx context.Context,
	snap *cache.Snapshot,
	target models.AttributeSet,
	candidates []id.ProductID,
) ([]models.ScoredCandidate, bool) {
	if len(candidates) == 0 {
		return []models.ScoredCandidate{}, false
	}

	qctx := ctx
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	scores := make([]models.Score, len(candidates))
	done := make([]bool, len(candidates))
	workers := min(s.cfg.ScoreWorkers, len(candidates))

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			for i := w; i < len(candidates); i += workers {
				if qctx.Err() != nil {
					return nil
				}
				attrs, err := snap.Get(candidates[i])
				if err != nil {
					continue
				}
				scores[i] = s.scorer.Score(target, attrs)
				done[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.ScoredCandidate, 0, len(candidates))
	partial := false
	for i, pid := range candidates {
		if !done[i] {
			partial = true
			continue
		}
		out = append(out, models.ScoredCandidate{ID: pid, Score: scores[i]})
	}
	return out, partial
}

// rank drops scores below minScore, orders by descending points keeping the
// sampling order among ties, and truncates to limit.
func rank(scored []models.ScoredCandidate, minScore, limit int) []models.ScoredCandidate {
	kept := make([]models.ScoredCandidate, 0, len(scored))
	for _, c := range scored {
		if c.Score.Points >= minScore {
			kept = append(kept, c)
		}
	}
	slices.SortStableFunc(kept, func(a, b models.ScoredCandidate) int {
		return b.Score.Points - a.Score.Points
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// resolve loads the catalog records for ranked in rank order. Products the
// catalog no longer returns are skipped.
func (s *Service) resolve(ctx context.Context, ranked []models.ScoredCandidate) ([]models.RankedItem, error) {
	if len(ranked) == 0 {
		return []models.RankedItem{}, nil
	}
	ids := make([]id.ProductID, len(ranked))
	for i, c := range ranked {
		ids[i] = c.ID
	}

	records, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load related products")
	}
	byID := make(map[id.ProductID]catalog.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	items := make([]models.RankedItem, 0, len(ranked))
	for _, c := range ranked {
		r, ok := byID[c.ID]
		if !ok {
			s.logger.WarnContext(ctx, "ranked product missing from catalog",
				"request_id", requestcontext.RequestID(ctx),
				"product_id", c.ID,
			)
			continue
		}
		items = append(items, models.RankedItem{Product: r, Score: c.Score})
	}
	return items, nil
}

// resultKey addresses a ranking by everything it was computed from: the
// snapshot content, the registry in force and the scoring profile. Services
// sharing one store therefore only share answers they would agree on.
func (s *Service) resultKey(snap *cache.Snapshot, target id.ProductID, limit int) resultcache.Key {
	registry := ""
	if s.registry != nil {
		registry = s.registry.Current().Hash()
	}
	return resultcache.Key{
		Fingerprint: resultcache.Fingerprint(snap.Fingerprint(), registry, s.profile),
		Target:      target,
		Limit:       limit,
	}
}

func (s *Service) fromResultCache(ctx context.Context, key resultcache.Key, generation uint64) (*models.RankedResult, bool) {
	entry, err := s.results.Get(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.IncrementResultCache("miss")
		return nil, false
	}
	if errors.Is(err, resultcache.ErrCircuitOpen) {
		s.metrics.IncrementResultCache("bypassed")
		return nil, false
	}
	if err != nil {
		s.metrics.IncrementResultCache("error")
		s.logger.WarnContext(ctx, "result cache lookup failed", "key", key.String(), "error", err)
		return nil, false
	}

	ranked := make([]models.ScoredCandidate, len(entry.Items))
	for i, it := range entry.Items {
		ranked[i] = models.ScoredCandidate{ID: it.ID, Score: it.Score}
	}
	items, err := s.resolve(ctx, ranked)
	if err != nil {
		s.logger.WarnContext(ctx, "cached result could not be resolved", "key", key.String(), "error", err)
		return nil, false
	}
	s.metrics.IncrementResultCache("hit")
	return &models.RankedResult{
		TargetID:   key.Target,
		Items:      items,
		Sampled:    entry.Sampled,
		Scored:     entry.Scored,
		Generation: generation,
	}, true
}

func (s *Service) toResultCache(ctx context.Context, key resultcache.Key, ranked []models.ScoredCandidate, result *models.RankedResult) {
	entry := &resultcache.Entry{
		Items:   make([]resultcache.Item, len(ranked)),
		Sampled: result.Sampled,
		Scored:  result.Scored,
	}
	for i, c := range ranked {
		entry.Items[i] = resultcache.Item{ID: c.ID, Score: c.Score}
	}
	if err := s.results.Set(ctx, key, entry); err != nil && !errors.Is(err, resultcache.ErrCircuitOpen) {
		s.logger.WarnContext(ctx, "result cache store failed", "key", key.String(), "error", err)
	}
}
