package library

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is(err, ErrNotFound) etc. to classify a failure.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrInvariant  = errors.New("invariant violation")
)

// Error codes carried by *Error.
const (
	CodeMissingISBN         = "MissingISBN"
	CodeMissingEmail        = "MissingEmail"
	CodeDuplicateISBN       = "DuplicateISBN"
	CodeDuplicateEmail      = "DuplicateEmail"
	CodeBookNotFound        = "BookNotFound"
	CodeUserNotFound        = "UserNotFound"
	CodeLoanNotFound        = "LoanNotFound"
	CodeLoanAlreadyActive   = "LoanAlreadyActive"
	CodeBookAlreadyBorrowed = "BookAlreadyBorrowed"
	CodeBookHasActiveLoans  = "BookHasActiveLoans"
	CodeUserHasActiveLoans  = "UserHasActiveLoans"
	CodeNoCopiesAvailable   = "NoCopiesAvailable"
	CodeNoCopiesBorrowed    = "NoCopiesBorrowed"
	CodeInvalidCopyCount    = "InvalidCopyCount"
	CodeBorrowLimitReached  = "BorrowLimitReached"
	CodeBookNotBorrowed     = "BookNotBorrowed"
	CodeInvalidSnapshot     = "InvalidSnapshot"
)

// Error is a domain failure raised synchronously by a Library, Book or User operation.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is matches the error's kind sentinel.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// HasCode reports whether err (or anything it wraps) is an *Error with the given code.
func HasCode(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

func validationError(code, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func conflictError(code, format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(code, format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func invariantError(code, format string, args ...any) *Error {
	return &Error{Kind: ErrInvariant, Code: code, Message: fmt.Sprintf(format, args...)}
}
