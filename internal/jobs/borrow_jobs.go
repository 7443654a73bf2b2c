package jobs

import (
	"context"

	"github.com/google/uuid"

	"borrow-service/internal/logger"
)

// MarkOverdueBorrows marks BORROWED records past their due date as OVERDUE.
// A call made while a previous sweep is still running returns immediately.
func (jr *JobRunner) MarkOverdueBorrows() {
	if !jr.sweeping.CompareAndSwap(false, true) {
		logger.Warn("Overdue sweep already running, skipping", "job", "MarkOverdueBorrows")
		return
	}
	defer jr.sweeping.Store(false)

	jr.runWithRecovery("MarkOverdueBorrows", func() {
		ctx := logger.ContextWithRequestID(context.Background(), "sweep-"+uuid.NewString())

		result, err := jr.overdue.SweepOverdueBorrows(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Overdue sweep skipped, retrying at next tick", "error", err)
			return
		}

		logger.InfoContext(ctx, "Marked borrows as overdue",
			"candidates", result.Candidates,
			"transitioned", result.Transitioned,
			"skipped", result.Skipped,
			"failed", result.Failed)
	})
}
