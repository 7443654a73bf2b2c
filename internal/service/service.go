package service

import (
	"context"

	"borrow-service/internal/domain"
)

// BorrowService is the borrow lifecycle engine.
type BorrowService interface {
	BorrowBook(ctx context.Context, userID, bookID int64) (*domain.Borrow, error)
	ReturnBook(ctx context.Context, borrowID int64) (*domain.Borrow, error)
	ExtendBorrow(ctx context.Context, borrowID int64) (*domain.Borrow, error)

	GetBorrow(ctx context.Context, id int64) (*domain.Borrow, error)
	ListBorrows(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Borrow], error)
	ListUserBorrows(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error)
	ListBookBorrows(ctx context.Context, bookID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error)
	// ListOverdueBorrows returns OVERDUE borrows and BORROWED ones already past due.
	ListOverdueBorrows(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Borrow], error)

	ListUserFines(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Fine], error)
	ListFinesByStatus(ctx context.Context, status domain.FineStatus, page domain.PageRequest) (domain.Page[domain.Fine], error)

	OverdueService
}

// OverdueService moves borrows past their due date to OVERDUE.
type OverdueService interface {
	// MarkOverdue transitions one borrow in its own transaction. It reports
	// false when the borrow no longer qualifies.
	MarkOverdue(ctx context.Context, borrowID int64) (bool, error)
	SweepOverdueBorrows(ctx context.Context) (SweepResult, error)
}

// SweepResult summarizes one overdue sweep.
type SweepResult struct {
	Candidates   int
	Transitioned int
	Skipped      int
	Failed       int
}
