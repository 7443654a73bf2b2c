package service

import (
	"context"
	"fmt"
	"time"

	"borrow-service/internal/domain"
	"borrow-service/internal/logger"
	"borrow-service/internal/metrics"
	"borrow-service/internal/repository"
)

func (s *borrowService) MarkOverdue(ctx context.Context, borrowID int64) (bool, error) {
	var borrow *domain.Borrow
	err := s.uow.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		b, err := r.Borrows.GetByIDForUpdate(ctx, borrowID)
		if err != nil {
			return err
		}

		now := s.clock()
		// Returned or extended since the candidate query ran.
		if !b.CanTransitionTo(domain.BorrowStatusOverdue) || !b.IsOverdueAt(now) {
			return nil
		}

		if err := r.Borrows.UpdateStatus(ctx, b.ID, domain.BorrowStatusOverdue, now); err != nil {
			return fmt.Errorf("failed to mark borrow overdue: %w", err)
		}
		b.Status = domain.BorrowStatusOverdue
		b.UpdatedAt = now
		borrow = b
		return nil
	})
	if err != nil {
		return false, err
	}
	if borrow == nil {
		return false, nil
	}

	if err := s.publisher.PublishDueDateChanged(ctx, borrow); err != nil {
		return true, err
	}
	return true, nil
}

// SweepOverdueBorrows marks every BORROWED record past its due date as
// OVERDUE. Each record runs in its own transaction; a failing record is
// logged and counted without affecting the others.
func (s *borrowService) SweepOverdueBorrows(ctx context.Context) (SweepResult, error) {
	const method = "borrowService.SweepOverdueBorrows"
	logger.EnterMethod(ctx, method)
	start := time.Now()

	var result SweepResult
	ids, err := s.repos.Borrows.ListOverdueIDs(ctx, s.clock())
	if err != nil {
		logger.ExitMethodWithError(ctx, method, err, false)
		return result, fmt.Errorf("failed to query overdue borrows: %w", err)
	}
	result.Candidates = len(ids)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			logger.WarnContext(ctx, "Overdue sweep interrupted", "remaining", len(ids)-i)
			break
		}

		transitioned, err := s.MarkOverdue(ctx, id)
		switch {
		case err != nil && transitioned:
			// State committed, event failed.
			result.Transitioned++
			result.Failed++
			logger.ErrorContext(ctx, "Overdue event publish failed", "borrowID", id, "error", err)
		case err != nil:
			result.Failed++
			logger.ErrorContext(ctx, "Failed to mark borrow overdue", "borrowID", id, "error", err)
		case transitioned:
			result.Transitioned++
			logger.DebugContext(ctx, "Borrow marked overdue", "borrowID", id)
		default:
			result.Skipped++
		}
	}

	metrics.RecordSweep(time.Since(start), result.Transitioned, result.Skipped, result.Failed)
	logger.ExitMethod(ctx, method,
		"candidates", result.Candidates,
		"transitioned", result.Transitioned,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}
