package domain

import "errors"

// Error is an expected business failure with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrUserNotActive             = &Error{Code: "USER_NOT_ACTIVE", Message: "user is not active"}
	ErrBookNotAvailable          = &Error{Code: "BOOK_NOT_AVAILABLE", Message: "book is not available"}
	ErrMaximumBorrowsExceeded    = &Error{Code: "MAXIMUM_BORROWS_EXCEEDED", Message: "user has reached maximum active borrows"}
	ErrBorrowNotFound            = &Error{Code: "BORROW_NOT_FOUND", Message: "borrow record not found"}
	ErrInvalidBorrowStatus       = &Error{Code: "INVALID_BORROW_STATUS", Message: "borrow is not in BORROWED status"}
	ErrMaximumExtensionsExceeded = &Error{Code: "MAXIMUM_EXTENSIONS_EXCEEDED", Message: "maximum extensions reached"}
	ErrValidation                = &Error{Code: "VALIDATION_FAILED", Message: "invalid request"}
)

// Infrastructure failures. These are not domain errors and map to 5xx.
var (
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrEventPublish        = errors.New("event publish failed")
)

// AsDomainError unwraps err into a *Error when it is one.
func AsDomainError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
