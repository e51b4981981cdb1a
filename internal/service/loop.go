// internal/service/loop.go
package service

import (
	"context"
	"time"

	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

// CycleFunc is one tick of a recurring background job.
type CycleFunc func(ctx context.Context) error

// RunLoop runs cycle every interval until ctx is cancelled. Cycle errors are
// logged and the loop continues on its next tick; nothing terminates the
// worker process.
func RunLoop(ctx context.Context, name string, interval time.Duration, cycle CycleFunc) {
	logger.L().Infow("loop started", "name", name, "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.L().Infow("loop stopped", "name", name)
			return
		case <-ticker.C:
			if err := cycle(ctx); err != nil {
				logger.L().Errorw("cycle failed", "name", name, "error", err)
			}
		}
	}
}
