package service_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"borrow-service/internal/domain"
)

// MockUserGateway
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

// MockBookGateway
type MockBookGateway struct {
	mock.Mock
}

func (m *MockBookGateway) CheckBookAvailability(ctx context.Context, bookID int64) (bool, error) {
	args := m.Called(ctx, bookID)
	return args.Bool(0), args.Error(1)
}
func (m *MockBookGateway) UpdateBookStatus(ctx context.Context, bookID int64, status string) error {
	args := m.Called(ctx, bookID, status)
	return args.Error(0)
}

// MockPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishBorrowCreated(ctx context.Context, borrow *domain.Borrow) error {
	args := m.Called(ctx, borrow)
	return args.Error(0)
}
func (m *MockPublisher) PublishReturnProcessed(ctx context.Context, borrow *domain.Borrow) error {
	args := m.Called(ctx, borrow)
	return args.Error(0)
}
func (m *MockPublisher) PublishDueDateChanged(ctx context.Context, borrow *domain.Borrow) error {
	args := m.Called(ctx, borrow)
	return args.Error(0)
}
