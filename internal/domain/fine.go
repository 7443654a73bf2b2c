package domain

import "time"

type FineStatus string

const (
	FineStatusPending FineStatus = "PENDING"
	FineStatusPaid    FineStatus = "PAID"
	FineStatusWaived  FineStatus = "WAIVED"
)

// ParseFineStatus returns the status matching s, or false if s is unknown.
func ParseFineStatus(s string) (FineStatus, bool) {
	switch FineStatus(s) {
	case FineStatusPending, FineStatusPaid, FineStatusWaived:
		return FineStatus(s), true
	}
	return "", false
}

type Fine struct {
	ID          int64      `json:"id" db:"id"`
	BorrowID    int64      `json:"borrow_id" db:"borrow_id"`
	AmountCents int64      `json:"amount_cents" db:"amount_cents"`
	Status      FineStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
