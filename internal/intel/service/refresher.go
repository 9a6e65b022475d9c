package service

import (
	"context"
	"time"
)

// StartPeriodicRefresh rebuilds the cache every interval until ctx is
// cancelled. A failed rebuild is logged and the previous snapshot keeps
// serving; the loop carries on.
func (s *Service) StartPeriodicRefresh(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			status, err := s.Refresh(ctx)
			if err != nil {
				// Refresh has already logged the cause.
				continue
			}
			s.logger.InfoContext(ctx, "periodic cache refresh complete",
				"generation", status.Generation,
				"size", status.Size,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
