package app

import (
	"context"
	"time"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/interfaces"
)

// startSweepScheduler refreshes digests for all credentialed users on a fixed
// interval. Per-user failures are handled inside Sweep; the loop only stops
// when the context is cancelled.
func startSweepScheduler(ctx context.Context, digestService interfaces.DigestService, logger *common.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = common.DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("Digest sweep: scheduler started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Digest sweep: scheduler stopped")
			return
		case <-ticker.C:
			runSweep(ctx, digestService, logger)
		}
	}
}

func runSweep(ctx context.Context, digestService interfaces.DigestService, logger *common.Logger) {
	start := time.Now()

	digestService.Sweep(ctx)

	logger.Info().Dur("elapsed", time.Since(start)).Msg("Digest sweep: complete")
}
