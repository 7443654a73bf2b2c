package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"borrow-service/internal/logger"
	"borrow-service/internal/repository"
)

var dialect = goqu.Dialect("postgres")

// Store is the Postgres-backed set of repositories. Its embedded repos run
// outside any transaction; WithinTx hands out transaction-bound ones.
type Store struct {
	db *sqlx.DB
	repository.Repos
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:    db,
		Repos: newRepos(db),
	}
}

func newRepos(q sqlx.ExtContext) repository.Repos {
	return repository.Repos{
		Borrows:    NewBorrowRepository(q),
		Returns:    NewReturnRepository(q),
		Fines:      NewFineRepository(q),
		Extensions: NewExtensionRepository(q),
	}
}

// WithinTx implements repository.UnitOfWork.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
