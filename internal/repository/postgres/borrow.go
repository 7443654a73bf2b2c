package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"borrow-service/internal/domain"
	"borrow-service/internal/logger"
	"borrow-service/internal/repository"
)

const borrowColumns = `id, user_id, book_id, borrow_date, due_date, status, created_at, updated_at`

var borrowSelectColumns = []interface{}{
	"id", "user_id", "book_id", "borrow_date", "due_date", "status", "created_at", "updated_at",
}

// borrowSortColumns maps API sort fields to columns.
var borrowSortColumns = map[string]string{
	"id":         "id",
	"userId":     "user_id",
	"bookId":     "book_id",
	"borrowDate": "borrow_date",
	"dueDate":    "due_date",
	"status":     "status",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
}

type borrowRepository struct {
	db sqlx.ExtContext
}

func NewBorrowRepository(db sqlx.ExtContext) repository.BorrowRepository {
	return &borrowRepository{db: db}
}

func (r *borrowRepository) Create(ctx context.Context, b *domain.Borrow) error {
	query := `INSERT INTO borrows (user_id, book_id, borrow_date, due_date, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	logger.DatabaseCall(ctx, "borrows.Create", query, "user_id", b.UserID, "book_id", b.BookID)
	err := r.db.QueryRowxContext(ctx, query, b.UserID, b.BookID, b.BorrowDate, b.DueDate, string(b.Status), b.CreatedAt, b.UpdatedAt).Scan(&b.ID)
	logger.DatabaseResult(ctx, "borrows.Create", 1, err, "borrow_id", b.ID)
	return err
}

func (r *borrowRepository) GetByID(ctx context.Context, id int64) (*domain.Borrow, error) {
	return r.get(ctx, `SELECT `+borrowColumns+` FROM borrows WHERE id = $1`, id)
}

func (r *borrowRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Borrow, error) {
	return r.get(ctx, `SELECT `+borrowColumns+` FROM borrows WHERE id = $1 FOR UPDATE`, id)
}

func (r *borrowRepository) get(ctx context.Context, query string, id int64) (*domain.Borrow, error) {
	var b domain.Borrow
	if err := sqlx.GetContext(ctx, r.db, &b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBorrowNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *borrowRepository) UpdateStatus(ctx context.Context, id int64, status domain.BorrowStatus, updatedAt time.Time) error {
	query := `UPDATE borrows SET status = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, "borrows.UpdateStatus", query, string(status), updatedAt, id)
}

func (r *borrowRepository) UpdateDueDate(ctx context.Context, id int64, dueDate, updatedAt time.Time) error {
	query := `UPDATE borrows SET due_date = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, "borrows.UpdateDueDate", query, dueDate, updatedAt, id)
}

func (r *borrowRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	logger.DatabaseCall(ctx, op, query)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.DatabaseResult(ctx, op, 0, err)
		return err
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult(ctx, op, rows, err)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrBorrowNotFound
	}
	return nil
}

func (r *borrowRepository) LockUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('borrow-user:' || $1::text, 0))`, userID)
	if err != nil {
		return fmt.Errorf("failed to lock user %d: %w", userID, err)
	}
	return nil
}

func (r *borrowRepository) CountActiveByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, r.db, &count,
		`SELECT COUNT(*) FROM borrows WHERE user_id = $1 AND status = $2`,
		userID, string(domain.BorrowStatusBorrowed))
	return count, err
}

func (r *borrowRepository) ListOverdueIDs(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.db, &ids,
		`SELECT id FROM borrows WHERE status = $1 AND due_date < $2 ORDER BY id`,
		string(domain.BorrowStatusBorrowed), now)
	return ids, err
}

func (r *borrowRepository) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return r.listPage(ctx, nil, page)
}

func (r *borrowRepository) ListByUser(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return r.listPage(ctx, goqu.C("user_id").Eq(userID), page)
}

func (r *borrowRepository) ListByBook(ctx context.Context, bookID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return r.listPage(ctx, goqu.C("book_id").Eq(bookID), page)
}

// ListOverdue returns borrows already marked OVERDUE plus BORROWED ones past
// their due date that the sweeper has not reached yet.
func (r *borrowRepository) ListOverdue(ctx context.Context, now time.Time, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	where := goqu.Or(
		goqu.C("status").Eq(string(domain.BorrowStatusOverdue)),
		goqu.And(
			goqu.C("status").Eq(string(domain.BorrowStatusBorrowed)),
			goqu.C("due_date").Lt(now),
		),
	)
	return r.listPage(ctx, where, page)
}

func (r *borrowRepository) listPage(ctx context.Context, where exp.Expression, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	page = page.Normalize()
	result := domain.Page[domain.Borrow]{Content: []domain.Borrow{}, Page: page.Page, Size: page.Size}

	orders, err := borrowOrder(page.Sort)
	if err != nil {
		return result, err
	}

	ds := dialect.From("borrows").Prepared(true)
	if where != nil {
		ds = ds.Where(where)
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return result, fmt.Errorf("failed to build count query: %w", err)
	}
	logger.DatabaseCall(ctx, "borrows.Count", countSQL)
	if err := sqlx.GetContext(ctx, r.db, &result.TotalElements, countSQL, countArgs...); err != nil {
		return result, err
	}

	selectSQL, args, err := ds.Select(borrowSelectColumns...).
		Order(orders...).
		Limit(uint(page.Size)).
		Offset(uint(page.Offset())).
		ToSQL()
	if err != nil {
		return result, fmt.Errorf("failed to build list query: %w", err)
	}
	logger.DatabaseCall(ctx, "borrows.List", selectSQL)
	if err := sqlx.SelectContext(ctx, r.db, &result.Content, selectSQL, args...); err != nil {
		return result, err
	}
	logger.DatabaseResult(ctx, "borrows.List", int64(len(result.Content)), nil, "total", result.TotalElements)
	return result, nil
}

// borrowOrder translates API sort orders to ORDER BY terms, always ending with
// id so pages are stable.
func borrowOrder(sort []domain.SortOrder) ([]exp.OrderedExpression, error) {
	orders := make([]exp.OrderedExpression, 0, len(sort)+1)
	hasID := false
	for _, s := range sort {
		column, ok := borrowSortColumns[s.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported sort field %q", domain.ErrValidation, s.Field)
		}
		if column == "id" {
			hasID = true
		}
		if s.Direction == domain.SortDesc {
			orders = append(orders, goqu.I(column).Desc())
		} else {
			orders = append(orders, goqu.I(column).Asc())
		}
	}
	if !hasID {
		orders = append(orders, goqu.I("id").Asc())
	}
	return orders, nil
}
