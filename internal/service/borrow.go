package service

import (
	"context"
	"fmt"
	"time"

	"borrow-service/internal/config"
	"borrow-service/internal/domain"
	"borrow-service/internal/events"
	"borrow-service/internal/gateway"
	"borrow-service/internal/logger"
	"borrow-service/internal/metrics"
	"borrow-service/internal/repository"
	"borrow-service/internal/utils"
)

// Policy holds the loan rules applied by the engine.
type Policy struct {
	DefaultLoanDays  int
	ExtensionDays    int
	MaxExtensions    int
	FinePerDayCents  int64
	MaxActiveBorrows int
}

func PolicyFromConfig(cfg config.BorrowConfig) Policy {
	return Policy{
		DefaultLoanDays:  cfg.DefaultLoanDays,
		ExtensionDays:    cfg.ExtensionDays,
		MaxExtensions:    cfg.MaxExtensions,
		FinePerDayCents:  cfg.FinePerDayCents,
		MaxActiveBorrows: cfg.MaxActiveBorrows,
	}
}

type Option func(*borrowService)

// WithClock replaces time.Now as the engine's source of "now".
func WithClock(now func() time.Time) Option {
	return func(s *borrowService) {
		s.now = now
	}
}

type borrowService struct {
	uow       repository.UnitOfWork
	repos     repository.Repos
	users     gateway.UserGateway
	books     gateway.BookGateway
	publisher events.Publisher
	policy    Policy
	now       func() time.Time
}

// storePrecision matches TIMESTAMPTZ, so timestamps handed back to callers
// equal what a later read returns.
const storePrecision = time.Microsecond

func (s *borrowService) clock() time.Time {
	return s.now().UTC().Truncate(storePrecision)
}

// NewBorrowService wires the engine. repos serves reads outside any
// transaction; writes go through uow.
func NewBorrowService(
	uow repository.UnitOfWork,
	repos repository.Repos,
	users gateway.UserGateway,
	books gateway.BookGateway,
	publisher events.Publisher,
	policy Policy,
	opts ...Option,
) BorrowService {
	s := &borrowService{
		uow:       uow,
		repos:     repos,
		users:     users,
		books:     books,
		publisher: publisher,
		policy:    policy,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *borrowService) BorrowBook(ctx context.Context, userID, bookID int64) (*domain.Borrow, error) {
	const method = "borrowService.BorrowBook"
	logger.EnterMethod(ctx, method, "userID", userID, "bookID", bookID)

	if userID <= 0 || bookID <= 0 {
		return nil, s.fail(ctx, method, "borrow", fmt.Errorf("%w: userId and bookId must be positive", domain.ErrValidation))
	}

	active, err := s.users.CheckUserStatus(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, method, "borrow", err, "userID", userID)
	}
	if !active {
		return nil, s.fail(ctx, method, "borrow", domain.ErrUserNotActive, "userID", userID)
	}

	available, err := s.books.CheckBookAvailability(ctx, bookID)
	if err != nil {
		return nil, s.fail(ctx, method, "borrow", err, "bookID", bookID)
	}
	if !available {
		return nil, s.fail(ctx, method, "borrow", domain.ErrBookNotAvailable, "bookID", bookID)
	}

	now := s.clock()
	borrow := &domain.Borrow{
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    utils.AddDays(now, s.policy.DefaultLoanDays),
		Status:     domain.BorrowStatusBorrowed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if err := r.Borrows.LockUser(ctx, userID); err != nil {
			return err
		}
		count, err := r.Borrows.CountActiveByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to count active borrows: %w", err)
		}
		if count >= s.policy.MaxActiveBorrows {
			return domain.ErrMaximumBorrowsExceeded
		}
		if err := r.Borrows.Create(ctx, borrow); err != nil {
			return fmt.Errorf("failed to create borrow: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, method, "borrow", err, "userID", userID, "bookID", bookID)
	}

	if err := s.books.UpdateBookStatus(ctx, bookID, domain.BookStatusBorrowed); err != nil {
		return nil, s.fail(ctx, method, "borrow", err, "borrowID", borrow.ID, "committed", true)
	}
	if err := s.publisher.PublishBorrowCreated(ctx, borrow); err != nil {
		return nil, s.fail(ctx, method, "borrow", err, "borrowID", borrow.ID, "committed", true)
	}

	metrics.RecordBorrowOperation("borrow", "success")
	logger.ExitMethod(ctx, method, "borrowID", borrow.ID, "dueDate", borrow.DueDate)
	return borrow, nil
}

func (s *borrowService) ReturnBook(ctx context.Context, borrowID int64) (*domain.Borrow, error) {
	const method = "borrowService.ReturnBook"
	logger.EnterMethod(ctx, method, "borrowID", borrowID)

	var borrow *domain.Borrow
	err := s.uow.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		b, err := r.Borrows.GetByIDForUpdate(ctx, borrowID)
		if err != nil {
			return err
		}
		if !b.CanTransitionTo(domain.BorrowStatusReturned) {
			return domain.ErrInvalidBorrowStatus
		}

		returned, err := r.Returns.ExistsByBorrowID(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("failed to check return: %w", err)
		}
		if returned {
			return domain.ErrInvalidBorrowStatus
		}

		now := s.clock()
		breakdown, err := utils.CalculateFineWithBreakdown(b.DueDate, now, s.policy.FinePerDayCents)
		if err != nil {
			return err
		}
		fine := breakdown.TotalCostCents

		ret := &domain.Return{
			BorrowID:        b.ID,
			ReturnDate:      now,
			FineAmountCents: fine,
			CreatedAt:       now,
		}
		if err := r.Returns.Create(ctx, ret); err != nil {
			return fmt.Errorf("failed to create return: %w", err)
		}

		if err := r.Borrows.UpdateStatus(ctx, b.ID, domain.BorrowStatusReturned, now); err != nil {
			return fmt.Errorf("failed to update borrow status: %w", err)
		}
		b.Status = domain.BorrowStatusReturned
		b.UpdatedAt = now

		if b.IsOverdueAt(now) {
			f := &domain.Fine{
				BorrowID:    b.ID,
				AmountCents: fine,
				Status:      domain.FineStatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := r.Fines.Create(ctx, f); err != nil {
				return fmt.Errorf("failed to create fine: %w", err)
			}
			logger.InfoContext(ctx, "Fine issued",
				"borrowID", b.ID,
				"amountCents", fine,
				"overdueDays", breakdown.OverdueDays,
				"perDayCents", breakdown.PerDayCents,
				"dueDate", breakdown.DueDate)
		}

		borrow = b
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, method, "return", err, "borrowID", borrowID)
	}

	if err := s.books.UpdateBookStatus(ctx, borrow.BookID, domain.BookStatusAvailable); err != nil {
		return nil, s.fail(ctx, method, "return", err, "borrowID", borrowID, "committed", true)
	}
	if err := s.publisher.PublishReturnProcessed(ctx, borrow); err != nil {
		return nil, s.fail(ctx, method, "return", err, "borrowID", borrowID, "committed", true)
	}

	metrics.RecordBorrowOperation("return", "success")
	logger.ExitMethod(ctx, method, "borrowID", borrowID)
	return borrow, nil
}

func (s *borrowService) ExtendBorrow(ctx context.Context, borrowID int64) (*domain.Borrow, error) {
	const method = "borrowService.ExtendBorrow"
	logger.EnterMethod(ctx, method, "borrowID", borrowID)

	var borrow *domain.Borrow
	err := s.uow.WithinTx(ctx, func(ctx context.Context, r repository.Repos) error {
		b, err := r.Borrows.GetByIDForUpdate(ctx, borrowID)
		if err != nil {
			return err
		}
		if !b.IsActive() {
			return domain.ErrInvalidBorrowStatus
		}

		count, err := r.Extensions.CountByBorrow(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("failed to count extensions: %w", err)
		}
		if count >= s.policy.MaxExtensions {
			return domain.ErrMaximumExtensionsExceeded
		}

		now := s.clock()
		ext := &domain.BorrowExtension{
			BorrowID:     b.ID,
			ExtendedDays: s.policy.ExtensionDays,
			NewDueDate:   utils.AddDays(b.DueDate, s.policy.ExtensionDays),
			CreatedAt:    now,
		}
		if err := r.Extensions.Create(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
		if err := r.Borrows.UpdateDueDate(ctx, b.ID, ext.NewDueDate, now); err != nil {
			return fmt.Errorf("failed to update due date: %w", err)
		}
		b.DueDate = ext.NewDueDate
		b.UpdatedAt = now

		borrow = b
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, method, "extend", err, "borrowID", borrowID)
	}

	if err := s.publisher.PublishDueDateChanged(ctx, borrow); err != nil {
		return nil, s.fail(ctx, method, "extend", err, "borrowID", borrowID, "committed", true)
	}

	metrics.RecordBorrowOperation("extend", "success")
	logger.ExitMethod(ctx, method, "borrowID", borrowID, "dueDate", borrow.DueDate)
	return borrow, nil
}

func (s *borrowService) GetBorrow(ctx context.Context, id int64) (*domain.Borrow, error) {
	return s.repos.Borrows.GetByID(ctx, id)
}

func (s *borrowService) ListBorrows(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return s.repos.Borrows.List(ctx, page)
}

func (s *borrowService) ListUserBorrows(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return s.repos.Borrows.ListByUser(ctx, userID, page)
}

func (s *borrowService) ListBookBorrows(ctx context.Context, bookID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return s.repos.Borrows.ListByBook(ctx, bookID, page)
}

func (s *borrowService) ListOverdueBorrows(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return s.repos.Borrows.ListOverdue(ctx, s.clock(), page)
}

func (s *borrowService) ListUserFines(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Fine], error) {
	return s.repos.Fines.ListByUser(ctx, userID, page)
}

func (s *borrowService) ListFinesByStatus(ctx context.Context, status domain.FineStatus, page domain.PageRequest) (domain.Page[domain.Fine], error) {
	return s.repos.Fines.ListByStatus(ctx, status, page)
}

// fail records the failed operation and returns err unchanged.
func (s *borrowService) fail(ctx context.Context, method, operation string, err error, args ...any) error {
	outcome := "error"
	de, expected := domain.AsDomainError(err)
	if expected {
		outcome = de.Code
	}
	metrics.RecordBorrowOperation(operation, outcome)
	logger.ExitMethodWithError(ctx, method, err, expected, args...)
	return err
}
