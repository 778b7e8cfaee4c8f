// Package repository defines data access interfaces for OpenShelf.
// These interfaces abstract database operations, allowing for different
// implementations (PostgreSQL, SQLite, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/openshelf/openshelf/internal/domain"
)

// ListOptions contains pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// ListResult contains a page of items plus the total count.
type ListResult[T any] struct {
	Items  []*T
	Total  int64
	Offset int
	Limit  int
}

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// List returns all users with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Book Repository
// =============================================================================

// BookFilter contains field filters and ordering for catalog listings.
type BookFilter struct {
	// Title and Author match as case-insensitive substrings when set.
	Title  string
	Author string

	// ISBN matches exactly when set.
	ISBN string

	// Available filters by availability when non-nil.
	Available *bool

	// SortBy names a whitelisted column; implementations fall back to
	// title ordering for anything else.
	SortBy   string
	SortDesc bool

	Limit  int
	Offset int
}

// BookRepository defines the interface for catalog data access.
// The available flag is intentionally absent from Update: it is owned by
// the loan transitions in LoanRepository.
type BookRepository interface {
	// Create creates a new book.
	Create(ctx context.Context, book *domain.Book) error

	// GetByID retrieves a book by ID.
	GetByID(ctx context.Context, id int64) (*domain.Book, error)

	// GetByISBN retrieves a book by ISBN.
	GetByISBN(ctx context.Context, isbn string) (*domain.Book, error)

	// List returns books matching the filter.
	List(ctx context.Context, filter BookFilter) (*ListResult[domain.Book], error)

	// Update updates title, author and page count of an existing book.
	Update(ctx context.Context, book *domain.Book) error

	// Delete deletes a book by ID. Loan history for the book is removed
	// with it (cascading foreign key).
	Delete(ctx context.Context, id int64) error

	// ExistsByISBN checks if a book with the given ISBN exists.
	ExistsByISBN(ctx context.Context, isbn string) (bool, error)
}

// =============================================================================
// Loan Repository
// =============================================================================

// LoanRepository defines the interface for loan data access.
//
// Borrow and Return are the only mutations and each executes as a single
// atomic read-modify-write: one transaction containing a conditional update
// whose affected-row count decides the outcome. Two concurrent Borrow calls
// on the same book therefore serialize through the store; exactly one
// commits and the other observes domain.ErrBookUnavailable.
type LoanRepository interface {
	// Borrow flips the book to unavailable iff it is currently available
	// and records the loan, all in one transaction. The created loan ID
	// is written back into loan.
	//
	// Errors: domain.ErrBookNotFound if the book does not exist,
	// domain.ErrBookUnavailable if it is already on loan.
	Borrow(ctx context.Context, loan *domain.Loan) error

	// Return closes the open loan identified by loanID iff it is owned by
	// userID and still outstanding, stamps returnedAt, and frees the book,
	// all in one transaction.
	//
	// Errors: domain.ErrLoanNotFound for a missing, foreign, or already
	// returned loan (indistinguishable on purpose).
	Return(ctx context.Context, loanID, userID int64, returnedAt time.Time) (*domain.Loan, error)

	// GetByID retrieves a loan by ID.
	GetByID(ctx context.Context, id int64) (*domain.Loan, error)

	// ListByUser returns the loans of one borrower, newest first.
	ListByUser(ctx context.Context, userID int64, opts ListOptions) (*ListResult[domain.Loan], error)

	// List returns all loans, newest first.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.Loan], error)

	// CountOpenByBook returns the number of outstanding loans for a book.
	// The availability invariant requires this to be 0 or 1, and 0 exactly
	// when the book is available.
	CountOpenByBook(ctx context.Context, bookID int64) (int64, error)
}
