package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"borrow-service/internal/domain"
	"borrow-service/internal/logger"
	"borrow-service/internal/repository"
)

type extensionRepository struct {
	db sqlx.ExtContext
}

func NewExtensionRepository(db sqlx.ExtContext) repository.ExtensionRepository {
	return &extensionRepository{db: db}
}

func (r *extensionRepository) Create(ctx context.Context, e *domain.BorrowExtension) error {
	query := `INSERT INTO borrow_extensions (borrow_id, extended_days, new_due_date, created_at)
	          VALUES ($1, $2, $3, $4) RETURNING id`
	logger.DatabaseCall(ctx, "borrow_extensions.Create", query, "borrow_id", e.BorrowID)
	err := r.db.QueryRowxContext(ctx, query, e.BorrowID, e.ExtendedDays, e.NewDueDate, e.CreatedAt).Scan(&e.ID)
	logger.DatabaseResult(ctx, "borrow_extensions.Create", 1, err, "extension_id", e.ID)
	return err
}

func (r *extensionRepository) CountByBorrow(ctx context.Context, borrowID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM borrow_extensions WHERE borrow_id = $1`, borrowID)
	return count, err
}
