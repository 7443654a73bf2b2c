package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"borrow-service/internal/domain"
	"borrow-service/internal/logger"
	"borrow-service/internal/repository"
)

var fineSelectColumns = []interface{}{
	goqu.I("f.id"), goqu.I("f.borrow_id"), goqu.I("f.amount_cents"),
	goqu.I("f.status"), goqu.I("f.created_at"), goqu.I("f.updated_at"),
}

var fineSortColumns = map[string]string{
	"id":        "f.id",
	"borrowId":  "f.borrow_id",
	"amount":    "f.amount_cents",
	"status":    "f.status",
	"createdAt": "f.created_at",
	"updatedAt": "f.updated_at",
}

type fineRepository struct {
	db sqlx.ExtContext
}

func NewFineRepository(db sqlx.ExtContext) repository.FineRepository {
	return &fineRepository{db: db}
}

func (r *fineRepository) Create(ctx context.Context, f *domain.Fine) error {
	query := `INSERT INTO fines (borrow_id, amount_cents, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	logger.DatabaseCall(ctx, "fines.Create", query, "borrow_id", f.BorrowID, "amount_cents", f.AmountCents)
	err := r.db.QueryRowxContext(ctx, query, f.BorrowID, f.AmountCents, string(f.Status), f.CreatedAt, f.UpdatedAt).Scan(&f.ID)
	logger.DatabaseResult(ctx, "fines.Create", 1, err, "fine_id", f.ID)
	return err
}

// ListByUser returns the fines of all borrows owned by userID.
func (r *fineRepository) ListByUser(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Fine], error) {
	ds := dialect.From(goqu.T("fines").As("f")).
		Join(goqu.T("borrows").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("f.borrow_id")))).
		Where(goqu.I("b.user_id").Eq(userID))
	return r.listPage(ctx, ds, page)
}

func (r *fineRepository) ListByStatus(ctx context.Context, status domain.FineStatus, page domain.PageRequest) (domain.Page[domain.Fine], error) {
	ds := dialect.From(goqu.T("fines").As("f")).
		Where(goqu.I("f.status").Eq(string(status)))
	return r.listPage(ctx, ds, page)
}

func (r *fineRepository) listPage(ctx context.Context, ds *goqu.SelectDataset, page domain.PageRequest) (domain.Page[domain.Fine], error) {
	page = page.Normalize()
	result := domain.Page[domain.Fine]{Content: []domain.Fine{}, Page: page.Page, Size: page.Size}

	orders, err := fineOrder(page.Sort)
	if err != nil {
		return result, err
	}
	ds = ds.Prepared(true)

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return result, fmt.Errorf("failed to build count query: %w", err)
	}
	if err := sqlx.GetContext(ctx, r.db, &result.TotalElements, countSQL, countArgs...); err != nil {
		return result, err
	}

	selectSQL, args, err := ds.Select(fineSelectColumns...).
		Order(orders...).
		Limit(uint(page.Size)).
		Offset(uint(page.Offset())).
		ToSQL()
	if err != nil {
		return result, fmt.Errorf("failed to build list query: %w", err)
	}
	logger.DatabaseCall(ctx, "fines.List", selectSQL)
	if err := sqlx.SelectContext(ctx, r.db, &result.Content, selectSQL, args...); err != nil {
		return result, err
	}
	return result, nil
}

func fineOrder(sort []domain.SortOrder) ([]exp.OrderedExpression, error) {
	orders := make([]exp.OrderedExpression, 0, len(sort)+1)
	for _, s := range sort {
		column, ok := fineSortColumns[s.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported sort field %q", domain.ErrValidation, s.Field)
		}
		if s.Direction == domain.SortDesc {
			orders = append(orders, goqu.I(column).Desc())
		} else {
			orders = append(orders, goqu.I(column).Asc())
		}
	}
	return append(orders, goqu.I("f.id").Asc()), nil
}
