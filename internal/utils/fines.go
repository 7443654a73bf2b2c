package utils

import (
	"fmt"
	"time"
)

const hoursPerDay = 24 * time.Hour

// FineBreakdown provides the details behind a fine amount
type FineBreakdown struct {
	DueDate        time.Time
	ReturnDate     time.Time
	OverdueDays    int64
	PerDayCents    int64
	TotalCostCents int64
}

// AddDays moves t forward by whole 24-hour days
func AddDays(t time.Time, days int) time.Time {
	return t.Add(time.Duration(days) * hoursPerDay)
}

// OverdueDays returns the number of whole days between dueDate and returnDate,
// rounding down. A return on or before the due date is zero days overdue.
func OverdueDays(dueDate, returnDate time.Time) int64 {
	if !dueDate.Before(returnDate) {
		return 0
	}
	return int64(returnDate.Sub(dueDate) / hoursPerDay)
}

// CalculateFine returns perDayCents multiplied by the whole days overdue
func CalculateFine(dueDate, returnDate time.Time, perDayCents int64) (int64, error) {
	if perDayCents < 0 {
		return 0, fmt.Errorf("fine per day must not be negative: %d", perDayCents)
	}
	return perDayCents * OverdueDays(dueDate, returnDate), nil
}

// CalculateFineWithBreakdown provides detailed breakdown of an overdue fine
func CalculateFineWithBreakdown(dueDate, returnDate time.Time, perDayCents int64) (FineBreakdown, error) {
	total, err := CalculateFine(dueDate, returnDate, perDayCents)
	if err != nil {
		return FineBreakdown{}, err
	}
	return FineBreakdown{
		DueDate:        dueDate,
		ReturnDate:     returnDate,
		OverdueDays:    OverdueDays(dueDate, returnDate),
		PerDayCents:    perDayCents,
		TotalCostCents: total,
	}, nil
}
