package domain

import "time"

type BorrowStatus string

const (
	BorrowStatusBorrowed BorrowStatus = "BORROWED"
	BorrowStatusReturned BorrowStatus = "RETURNED"
	BorrowStatusOverdue  BorrowStatus = "OVERDUE"
)

// Book status values sent to the book service.
const (
	BookStatusBorrowed  = "BORROWED"
	BookStatusAvailable = "AVAILABLE"
)

// Borrow is the aggregate root of the loan lifecycle. Return, Fine and
// BorrowExtension rows reference it by id.
type Borrow struct {
	ID         int64        `json:"id" db:"id"`
	UserID     int64        `json:"user_id" db:"user_id"`
	BookID     int64        `json:"book_id" db:"book_id"`
	BorrowDate time.Time    `json:"borrow_date" db:"borrow_date"`
	DueDate    time.Time    `json:"due_date" db:"due_date"`
	Status     BorrowStatus `json:"status" db:"status"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the borrow can still be returned or extended.
func (b *Borrow) IsActive() bool {
	return b.Status == BorrowStatusBorrowed
}

// IsOverdueAt reports whether the due date lies strictly before now.
func (b *Borrow) IsOverdueAt(now time.Time) bool {
	return b.DueDate.Before(now)
}

// CanTransitionTo enforces BORROWED -> RETURNED and BORROWED -> OVERDUE.
func (b *Borrow) CanTransitionTo(next BorrowStatus) bool {
	if b.Status != BorrowStatusBorrowed {
		return false
	}
	return next == BorrowStatusReturned || next == BorrowStatusOverdue
}

type Return struct {
	ID              int64     `json:"id" db:"id"`
	BorrowID        int64     `json:"borrow_id" db:"borrow_id"`
	ReturnDate      time.Time `json:"return_date" db:"return_date"`
	FineAmountCents int64     `json:"fine_amount_cents" db:"fine_amount_cents"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type BorrowExtension struct {
	ID           int64     `json:"id" db:"id"`
	BorrowID     int64     `json:"borrow_id" db:"borrow_id"`
	ExtendedDays int       `json:"extended_days" db:"extended_days"`
	NewDueDate   time.Time `json:"new_due_date" db:"new_due_date"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
