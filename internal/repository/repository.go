package repository

import (
	"context"
	"time"

	"borrow-service/internal/domain"
)

type BorrowRepository interface {
	Create(ctx context.Context, borrow *domain.Borrow) error
	GetByID(ctx context.Context, id int64) (*domain.Borrow, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Borrow, error)
	UpdateStatus(ctx context.Context, id int64, status domain.BorrowStatus, updatedAt time.Time) error
	UpdateDueDate(ctx context.Context, id int64, dueDate, updatedAt time.Time) error

	// LockUser serializes borrow creation for one user until the surrounding
	// transaction ends.
	LockUser(ctx context.Context, userID int64) error
	CountActiveByUser(ctx context.Context, userID int64) (int, error)
	ListOverdueIDs(ctx context.Context, now time.Time) ([]int64, error)

	List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Borrow], error)
	ListByUser(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error)
	ListByBook(ctx context.Context, bookID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error)
	ListOverdue(ctx context.Context, now time.Time, page domain.PageRequest) (domain.Page[domain.Borrow], error)
}

type ReturnRepository interface {
	Create(ctx context.Context, ret *domain.Return) error
	ExistsByBorrowID(ctx context.Context, borrowID int64) (bool, error)
}

type FineRepository interface {
	Create(ctx context.Context, fine *domain.Fine) error
	ListByUser(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Fine], error)
	ListByStatus(ctx context.Context, status domain.FineStatus, page domain.PageRequest) (domain.Page[domain.Fine], error)
}

type ExtensionRepository interface {
	Create(ctx context.Context, ext *domain.BorrowExtension) error
	CountByBorrow(ctx context.Context, borrowID int64) (int, error)
}

// Repos is the set of repositories bound to one connection or transaction.
type Repos struct {
	Borrows    BorrowRepository
	Returns    ReturnRepository
	Fines      FineRepository
	Extensions ExtensionRepository
}

// UnitOfWork runs fn inside a single transaction. fn's repos are bound to that
// transaction; it commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
