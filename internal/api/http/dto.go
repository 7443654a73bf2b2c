package http

import (
	"time"

	"borrow-service/internal/domain"
)

type CreateBorrowRequest struct {
	UserID int64 `json:"userId"`
	BookID int64 `json:"bookId"`
}

type BorrowResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	BookID     int64     `json:"bookId"`
	BorrowDate time.Time `json:"borrowDate"`
	DueDate    time.Time `json:"dueDate"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toBorrowResponse(b *domain.Borrow) BorrowResponse {
	return BorrowResponse{
		ID:         b.ID,
		UserID:     b.UserID,
		BookID:     b.BookID,
		BorrowDate: b.BorrowDate,
		DueDate:    b.DueDate,
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

// FineResponse reports amounts in cents.
type FineResponse struct {
	ID          int64     `json:"id"`
	BorrowID    int64     `json:"borrowId"`
	AmountCents int64     `json:"amountCents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toFineResponse(f *domain.Fine) FineResponse {
	return FineResponse{
		ID:          f.ID,
		BorrowID:    f.BorrowID,
		AmountCents: f.AmountCents,
		Status:      string(f.Status),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}
