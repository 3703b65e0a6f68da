package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"meetingbot/internal/logging"
)

// StartHeartbeat runs the still-alive loop until the context is cancelled.
// The cancellation signal is checked once per iteration before sleeping;
// send failures are logged and never interrupt the loop. Runs concurrently
// with the session's own poll loop and shares nothing mutable with it.
func StartHeartbeat(ctx context.Context, wg *sync.WaitGroup, reporter Reporter, interval time.Duration, quiet bool, logger *slog.Logger) {
	defer wg.Done()
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "heartbeat"))
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if err := reporter.Heartbeat(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if !quiet {
				logger.Warn("heartbeat failed", logging.Error(err))
			}
		} else {
			logger.Debug("heartbeat sent")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
