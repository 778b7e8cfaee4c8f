package domain

import (
	"time"
)

// Loan represents one borrow record: a single book lent to a single user.
// A loan is open while ReturnedAt is nil and closed once the return
// transition stamps it. Loans are created only through the borrow
// transition and mutated only through the return transition.
type Loan struct {
	// ID is the unique identifier for the loan (auto-generated).
	ID int64 `json:"id"`

	// UserID references the borrower. The borrower is always the
	// authenticated caller of the borrow transition.
	UserID int64 `json:"user_id"`

	// BookID references the borrowed book.
	BookID int64 `json:"book_id"`

	// BorrowedAt is set when the loan is created and never changes.
	BorrowedAt time.Time `json:"borrowed_at"`

	// ReturnedAt is nil while the loan is outstanding.
	ReturnedAt *time.Time `json:"returned_at"`
}

// NewLoan creates an open loan for the given borrower and book.
func NewLoan(userID, bookID int64) *Loan {
	return &Loan{
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: time.Now().UTC(),
	}
}

// IsReturned reports whether the loan has been closed.
func (l *Loan) IsReturned() bool {
	return l.ReturnedAt != nil
}
