package worker

import (
	"context"
	"time"
)

// Sweeper evicts idle entries.
type Sweeper interface {
	Sweep() int
}

// StartVisitorSweeper calls s.Sweep every interval until ctx ends.
func StartVisitorSweeper(ctx context.Context, s Sweeper, interval time.Duration) {
	if s == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}
