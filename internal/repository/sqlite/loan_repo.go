package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openshelf/openshelf/internal/domain"
	"github.com/openshelf/openshelf/internal/repository"
)

// loanRepository implements repository.LoanRepository for SQLite.
type loanRepository struct {
	db *DB
}

// NewLoanRepository creates a new SQLite loan repository.
func NewLoanRepository(db *DB) repository.LoanRepository {
	return &loanRepository{db: db}
}

// Borrow atomically reserves the book and records the loan.
//
// The availability flip is a conditional update guarded by the current
// value of the flag; the affected-row count decides whether this caller
// won the transition. Both statements commit together, so a crash between
// them cannot strand an unavailable book without a loan row.
func (r *loanRepository) Borrow(ctx context.Context, loan *domain.Loan) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE books
			SET available = 0, updated_at = ?
			WHERE id = ? AND available = 1
		`, loan.BorrowedAt.Format(time.RFC3339), loan.BookID)
		if err != nil {
			return fmt.Errorf("failed to reserve book: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			// Lost the conditional update; tell the caller whether the
			// book is missing or merely on loan.
			var count int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE id = ?`, loan.BookID).Scan(&count); err != nil {
				return fmt.Errorf("failed to check book existence: %w", err)
			}
			if count == 0 {
				return domain.ErrBookNotFound
			}
			return domain.ErrBookUnavailable
		}

		result, err = tx.ExecContext(ctx, `
			INSERT INTO loans (user_id, book_id, borrowed_at)
			VALUES (?, ?, ?)
		`, loan.UserID, loan.BookID, loan.BorrowedAt.Format(time.RFC3339))
		if err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("failed to create loan: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID: %w", err)
		}
		loan.ID = id

		return nil
	})
}

// Return atomically closes the loan and frees the book.
//
// The conditional update matches on loan id, owner and the open state in
// one predicate; a zero affected-row count collapses missing, foreign and
// already-returned loans into domain.ErrLoanNotFound.
func (r *loanRepository) Return(ctx context.Context, loanID, userID int64, returnedAt time.Time) (*domain.Loan, error) {
	var loan *domain.Loan

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE loans
			SET returned_at = ?
			WHERE id = ? AND user_id = ? AND returned_at IS NULL
		`, returnedAt.Format(time.RFC3339), loanID, userID)
		if err != nil {
			return fmt.Errorf("failed to close loan: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return domain.ErrLoanNotFound
		}

		loan, err = scanLoanRow(tx.QueryRowContext(ctx, `
			SELECT id, user_id, book_id, borrowed_at, returned_at
			FROM loans
			WHERE id = ?
		`, loanID))
		if err != nil {
			return fmt.Errorf("failed to reload loan: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE books
			SET available = 1, updated_at = ?
			WHERE id = ?
		`, returnedAt.Format(time.RFC3339), loan.BookID); err != nil {
			return fmt.Errorf("failed to release book: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return loan, nil
}

// GetByID retrieves a loan by ID.
func (r *loanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	loan, err := scanLoanRow(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, book_id, borrowed_at, returned_at
		FROM loans
		WHERE id = ?
	`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// ListByUser returns the loans of one borrower, newest first.
func (r *loanRepository) ListByUser(ctx context.Context, userID int64, opts repository.ListOptions) (*repository.ListResult[domain.Loan], error) {
	return r.list(ctx, `WHERE user_id = ?`, []interface{}{userID}, opts)
}

// List returns all loans, newest first.
func (r *loanRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.Loan], error) {
	return r.list(ctx, ``, nil, opts)
}

func (r *loanRepository) list(ctx context.Context, where string, args []interface{}, opts repository.ListOptions) (*repository.ListResult[domain.Loan], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count loans: %w", err)
	}

	query := `
		SELECT id, user_id, book_id, borrowed_at, returned_at
		FROM loans ` + where + `
		ORDER BY borrowed_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	listArgs := append(append([]interface{}{}, args...), opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loans: %w", err)
	}

	return &repository.ListResult[domain.Loan]{
		Items:  loans,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// CountOpenByBook returns the number of outstanding loans for a book.
func (r *loanRepository) CountOpenByBook(ctx context.Context, bookID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loans WHERE book_id = ? AND returned_at IS NULL
	`, bookID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open loans: %w", err)
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanLoanRow scans a loan row, converting the stored RFC3339 strings.
func scanLoanRow(row rowScanner) (*domain.Loan, error) {
	loan := &domain.Loan{}
	var borrowedAt string
	var returnedAt sql.NullString

	if err := row.Scan(&loan.ID, &loan.UserID, &loan.BookID, &borrowedAt, &returnedAt); err != nil {
		return nil, err
	}

	loan.BorrowedAt, _ = time.Parse(time.RFC3339, borrowedAt)
	if returnedAt.Valid {
		t, _ := time.Parse(time.RFC3339, returnedAt.String)
		loan.ReturnedAt = &t
	}

	return loan, nil
}

// NewRepositories creates the full SQLite repository bundle.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		Users: NewUserRepository(db),
		Books: NewBookRepository(db),
		Loans: NewLoanRepository(db),
	}
}

// Ensure loanRepository implements repository.LoanRepository.
var _ repository.LoanRepository = (*loanRepository)(nil)
