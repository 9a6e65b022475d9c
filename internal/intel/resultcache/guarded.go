package resultcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"armory/pkg/platform/circuit"
	"armory/pkg/platform/sentinel"
)

// ErrCircuitOpen is returned while the backing store is being skipped.
var ErrCircuitOpen = fmt.Errorf("result cache circuit open: %w", sentinel.ErrUnavailable)

// Guarded stops calling a failing store until it recovers, so a sick Redis
// costs queries nothing beyond a periodic trial call.
type Guarded struct {
	store   Store
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewGuarded wraps store with breaker.
func NewGuarded(store Store, breaker *circuit.Breaker, logger *slog.Logger) (*Guarded, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if breaker == nil {
		return nil, fmt.Errorf("breaker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{store: store, breaker: breaker, logger: logger}, nil
}

func (g *Guarded) Get(ctx context.Context, key Key) (*Entry, error) {
	if !g.breaker.Allow() {
		return nil, ErrCircuitOpen
	}
	entry, err := g.store.Get(ctx, key)
	// A miss is a healthy answer.
	g.record(ctx, err == nil || errors.Is(err, sentinel.ErrNotFound))
	return entry, err
}

func (g *Guarded) Set(ctx context.Context, key Key, entry *Entry) error {
	if !g.breaker.Allow() {
		return ErrCircuitOpen
	}
	err := g.store.Set(ctx, key, entry)
	g.record(ctx, err == nil)
	return err
}

func (g *Guarded) record(ctx context.Context, ok bool) {
	if ok {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "result cache recovered", "breaker", g.breaker.Name())
		}
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.WarnContext(ctx, "result cache failing, bypassing it", "breaker", g.breaker.Name())
	}
}
