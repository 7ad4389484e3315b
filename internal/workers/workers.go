// Package workers holds the long-running background routines that are not
// tied to a single guild.
package workers

import (
	"context"
	"log"
	"time"
)

// LedgerCleaner prunes stale zero-point ledger entries.
// *services.LedgerService satisfies it.
type LedgerCleaner interface {
	CleanupInactive(ctx context.Context, maxAge time.Duration) (int64, error)
}

// StartCleanupWorker prunes abandoned zero-point entries every period until
// ctx is cancelled. Entries older than maxAge with no points never made it
// onto the board and only bloat the table.
func StartCleanupWorker(ctx context.Context, store LedgerCleaner, period, maxAge time.Duration) {
	ticker := time.NewTicker(period)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
				pruned, err := store.CleanupInactive(runCtx, maxAge)
				cancel()
				if err != nil {
					log.Printf("Ledger cleanup failed: %v", err)
					continue
				}
				if pruned > 0 {
					log.Printf("Ledger cleanup removed %d inactive entries", pruned)
				}
			}
		}
	}()
}
