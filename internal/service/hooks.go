package service

import (
	"context"
	"fmt"

	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/metrics"
)

// postCommitHook is a best-effort step that runs after a booking is stored.
// Its failure is logged and never reaches the caller.
type postCommitHook struct {
	name string
	run  func(ctx context.Context) error
}

func runHooks(ctx context.Context, bookingID int64, hooks []postCommitHook) {
	// hooks must finish even if the client went away
	ctx = context.WithoutCancel(ctx)
	for _, h := range hooks {
		if err := runHook(ctx, h); err != nil {
			metrics.HookFailuresTotal.WithLabelValues(h.name).Inc()
			logger.WithContext(ctx).Warn("Post-commit hook failed",
				"hook", h.name,
				"booking_id", bookingID,
				"error", err)
		}
	}
}

func runHook(ctx context.Context, h postCommitHook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.run(ctx)
}
