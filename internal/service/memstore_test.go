package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"borrow-service/internal/domain"
	"borrow-service/internal/repository"
)

// memStore is an in-memory repository.UnitOfWork. Transactions are serialized
// and roll back by restoring a snapshot.
type memStore struct {
	mu sync.Mutex

	borrows    map[int64]domain.Borrow
	returns    []domain.Return
	fines      []domain.Fine
	extensions []domain.BorrowExtension
	nextID     int64

	// failUpdate makes UpdateStatus fail for the given borrow ids.
	failUpdate  map[int64]error
	failOverdue error
	txCount     int
}

func newMemStore() *memStore {
	return &memStore{
		borrows:    map[int64]domain.Borrow{},
		failUpdate: map[int64]error{},
	}
}

func (s *memStore) repos() repository.Repos {
	return repository.Repos{
		Borrows:    &memBorrows{s},
		Returns:    &memReturns{s},
		Fines:      &memFines{s},
		Extensions: &memExtensions{s},
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	borrows := make(map[int64]domain.Borrow, len(s.borrows))
	for k, v := range s.borrows {
		borrows[k] = v
	}
	returns := append([]domain.Return(nil), s.returns...)
	fines := append([]domain.Fine(nil), s.fines...)
	extensions := append([]domain.BorrowExtension(nil), s.extensions...)
	nextID := s.nextID

	if err := fn(ctx, s.repos()); err != nil {
		s.borrows, s.returns, s.fines, s.extensions, s.nextID = borrows, returns, fines, extensions, nextID
		return err
	}
	return nil
}

func (s *memStore) seed(b domain.Borrow) int64 {
	s.nextID++
	b.ID = s.nextID
	s.borrows[b.ID] = b
	return b.ID
}

func (s *memStore) borrow(id int64) domain.Borrow {
	return s.borrows[id]
}

func (s *memStore) finesFor(borrowID int64) []domain.Fine {
	var out []domain.Fine
	for _, f := range s.fines {
		if f.BorrowID == borrowID {
			out = append(out, f)
		}
	}
	return out
}

func (s *memStore) extensionsFor(borrowID int64) []domain.BorrowExtension {
	var out []domain.BorrowExtension
	for _, e := range s.extensions {
		if e.BorrowID == borrowID {
			out = append(out, e)
		}
	}
	return out
}

// asStored rounds t the way a TIMESTAMPTZ column does.
func asStored(t time.Time) time.Time {
	return t.Round(time.Microsecond)
}

type memBorrows struct{ s *memStore }

func (r *memBorrows) Create(ctx context.Context, b *domain.Borrow) error {
	r.s.nextID++
	b.ID = r.s.nextID
	row := *b
	row.BorrowDate, row.DueDate = asStored(row.BorrowDate), asStored(row.DueDate)
	row.CreatedAt, row.UpdatedAt = asStored(row.CreatedAt), asStored(row.UpdatedAt)
	r.s.borrows[b.ID] = row
	return nil
}

func (r *memBorrows) GetByID(ctx context.Context, id int64) (*domain.Borrow, error) {
	b, ok := r.s.borrows[id]
	if !ok {
		return nil, domain.ErrBorrowNotFound
	}
	return &b, nil
}

func (r *memBorrows) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Borrow, error) {
	return r.GetByID(ctx, id)
}

func (r *memBorrows) UpdateStatus(ctx context.Context, id int64, status domain.BorrowStatus, updatedAt time.Time) error {
	if err := r.s.failUpdate[id]; err != nil {
		return err
	}
	b, ok := r.s.borrows[id]
	if !ok {
		return domain.ErrBorrowNotFound
	}
	b.Status = status
	b.UpdatedAt = asStored(updatedAt)
	r.s.borrows[id] = b
	return nil
}

func (r *memBorrows) UpdateDueDate(ctx context.Context, id int64, dueDate, updatedAt time.Time) error {
	b, ok := r.s.borrows[id]
	if !ok {
		return domain.ErrBorrowNotFound
	}
	b.DueDate = asStored(dueDate)
	b.UpdatedAt = asStored(updatedAt)
	r.s.borrows[id] = b
	return nil
}

func (r *memBorrows) LockUser(ctx context.Context, userID int64) error {
	return nil
}

func (r *memBorrows) CountActiveByUser(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, b := range r.s.borrows {
		if b.UserID == userID && b.Status == domain.BorrowStatusBorrowed {
			count++
		}
	}
	return count, nil
}

func (r *memBorrows) ListOverdueIDs(ctx context.Context, now time.Time) ([]int64, error) {
	if r.s.failOverdue != nil {
		return nil, r.s.failOverdue
	}
	var ids []int64
	for _, b := range r.s.borrows {
		if b.Status == domain.BorrowStatusBorrowed && b.DueDate.Before(now) {
			ids = append(ids, b.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memBorrows) filter(page domain.PageRequest, keep func(domain.Borrow) bool) (domain.Page[domain.Borrow], error) {
	page = page.Normalize()
	var all []domain.Borrow
	for _, b := range r.s.borrows {
		if keep(b) {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	result := domain.Page[domain.Borrow]{Content: []domain.Borrow{}, Page: page.Page, Size: page.Size, TotalElements: int64(len(all))}
	for i := page.Offset(); i < len(all) && i < page.Offset()+page.Size; i++ {
		result.Content = append(result.Content, all[i])
	}
	return result, nil
}

func (r *memBorrows) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return r.filter(page, func(domain.Borrow) bool { return true })
}

func (r *memBorrows) ListByUser(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return r.filter(page, func(b domain.Borrow) bool { return b.UserID == userID })
}

func (r *memBorrows) ListByBook(ctx context.Context, bookID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return r.filter(page, func(b domain.Borrow) bool { return b.BookID == bookID })
}

func (r *memBorrows) ListOverdue(ctx context.Context, now time.Time, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	return r.filter(page, func(b domain.Borrow) bool {
		return b.Status == domain.BorrowStatusOverdue || (b.Status == domain.BorrowStatusBorrowed && b.DueDate.Before(now))
	})
}

type memReturns struct{ s *memStore }

func (r *memReturns) Create(ctx context.Context, ret *domain.Return) error {
	r.s.nextID++
	ret.ID = r.s.nextID
	r.s.returns = append(r.s.returns, *ret)
	return nil
}

func (r *memReturns) ExistsByBorrowID(ctx context.Context, borrowID int64) (bool, error) {
	for _, ret := range r.s.returns {
		if ret.BorrowID == borrowID {
			return true, nil
		}
	}
	return false, nil
}

type memFines struct{ s *memStore }

func (r *memFines) Create(ctx context.Context, f *domain.Fine) error {
	r.s.nextID++
	f.ID = r.s.nextID
	r.s.fines = append(r.s.fines, *f)
	return nil
}

func (r *memFines) ListByUser(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Fine], error) {
	page = page.Normalize()
	result := domain.Page[domain.Fine]{Content: []domain.Fine{}, Page: page.Page, Size: page.Size}
	for _, f := range r.s.fines {
		if r.s.borrows[f.BorrowID].UserID == userID {
			result.Content = append(result.Content, f)
		}
	}
	result.TotalElements = int64(len(result.Content))
	return result, nil
}

func (r *memFines) ListByStatus(ctx context.Context, status domain.FineStatus, page domain.PageRequest) (domain.Page[domain.Fine], error) {
	page = page.Normalize()
	result := domain.Page[domain.Fine]{Content: []domain.Fine{}, Page: page.Page, Size: page.Size}
	for _, f := range r.s.fines {
		if f.Status == status {
			result.Content = append(result.Content, f)
		}
	}
	result.TotalElements = int64(len(result.Content))
	return result, nil
}

type memExtensions struct{ s *memStore }

func (r *memExtensions) Create(ctx context.Context, e *domain.BorrowExtension) error {
	r.s.nextID++
	e.ID = r.s.nextID
	r.s.extensions = append(r.s.extensions, *e)
	return nil
}

func (r *memExtensions) CountByBorrow(ctx context.Context, borrowID int64) (int, error) {
	return len(r.s.extensionsFor(borrowID)), nil
}
