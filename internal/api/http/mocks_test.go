package http

import (
	"context"
	"errors"

	"github.com/stretchr/testify/mock"

	"borrow-service/internal/domain"
	"borrow-service/internal/service"
)

type MockBorrowService struct {
	mock.Mock
}

func (m *MockBorrowService) BorrowBook(ctx context.Context, userID, bookID int64) (*domain.Borrow, error) {
	args := m.Called(ctx, userID, bookID)
	return borrowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockBorrowService) ReturnBook(ctx context.Context, borrowID int64) (*domain.Borrow, error) {
	args := m.Called(ctx, borrowID)
	return borrowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockBorrowService) ExtendBorrow(ctx context.Context, borrowID int64) (*domain.Borrow, error) {
	args := m.Called(ctx, borrowID)
	return borrowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockBorrowService) GetBorrow(ctx context.Context, id int64) (*domain.Borrow, error) {
	args := m.Called(ctx, id)
	return borrowOrNil(args.Get(0)), args.Error(1)
}

func (m *MockBorrowService) ListBorrows(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	args := m.Called(ctx, page)
	return args.Get(0).(domain.Page[domain.Borrow]), args.Error(1)
}

func (m *MockBorrowService) ListUserBorrows(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	args := m.Called(ctx, userID, page)
	return args.Get(0).(domain.Page[domain.Borrow]), args.Error(1)
}

func (m *MockBorrowService) ListBookBorrows(ctx context.Context, bookID int64, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	args := m.Called(ctx, bookID, page)
	return args.Get(0).(domain.Page[domain.Borrow]), args.Error(1)
}

func (m *MockBorrowService) ListOverdueBorrows(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Borrow], error) {
	args := m.Called(ctx, page)
	return args.Get(0).(domain.Page[domain.Borrow]), args.Error(1)
}

func (m *MockBorrowService) ListUserFines(ctx context.Context, userID int64, page domain.PageRequest) (domain.Page[domain.Fine], error) {
	args := m.Called(ctx, userID, page)
	return args.Get(0).(domain.Page[domain.Fine]), args.Error(1)
}

func (m *MockBorrowService) ListFinesByStatus(ctx context.Context, status domain.FineStatus, page domain.PageRequest) (domain.Page[domain.Fine], error) {
	args := m.Called(ctx, status, page)
	return args.Get(0).(domain.Page[domain.Fine]), args.Error(1)
}

func (m *MockBorrowService) MarkOverdue(ctx context.Context, borrowID int64) (bool, error) {
	args := m.Called(ctx, borrowID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBorrowService) SweepOverdueBorrows(ctx context.Context) (service.SweepResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(service.SweepResult), args.Error(1)
}

func borrowOrNil(v interface{}) *domain.Borrow {
	if v == nil {
		return nil
	}
	return v.(*domain.Borrow)
}

type MockUserGateway struct {
	mock.Mock
}

func (m *MockUserGateway) ValidateToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserGateway) CheckUserStatus(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type fakeStore struct {
	err error
}

func (s fakeStore) Ping(ctx context.Context) error {
	return s.err
}

var errDatabaseDown = errors.New("dial tcp: connection refused")
