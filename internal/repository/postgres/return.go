package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"borrow-service/internal/domain"
	"borrow-service/internal/logger"
	"borrow-service/internal/repository"
)

type returnRepository struct {
	db sqlx.ExtContext
}

func NewReturnRepository(db sqlx.ExtContext) repository.ReturnRepository {
	return &returnRepository{db: db}
}

func (r *returnRepository) Create(ctx context.Context, ret *domain.Return) error {
	query := `INSERT INTO returns (borrow_id, return_date, fine_amount_cents, created_at)
	          VALUES ($1, $2, $3, $4) RETURNING id`
	logger.DatabaseCall(ctx, "returns.Create", query, "borrow_id", ret.BorrowID)
	err := r.db.QueryRowxContext(ctx, query, ret.BorrowID, ret.ReturnDate, ret.FineAmountCents, ret.CreatedAt).Scan(&ret.ID)
	logger.DatabaseResult(ctx, "returns.Create", 1, err, "return_id", ret.ID)
	return err
}

func (r *returnRepository) ExistsByBorrowID(ctx context.Context, borrowID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.db, &exists, `SELECT EXISTS (SELECT 1 FROM returns WHERE borrow_id = $1)`, borrowID)
	return exists, err
}
