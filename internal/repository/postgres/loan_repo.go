package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openshelf/openshelf/internal/domain"
	"github.com/openshelf/openshelf/internal/repository"
)

// loanRepository implements repository.LoanRepository for PostgreSQL.
type loanRepository struct {
	db *DB
}

// NewLoanRepository creates a new PostgreSQL loan repository.
func NewLoanRepository(db *DB) repository.LoanRepository {
	return &loanRepository{db: db}
}

// Borrow atomically reserves the book and records the loan.
//
// The availability flip is a conditional update guarded by the current
// value of the flag; the affected-row count decides whether this caller
// won the transition. Concurrent borrowers of the same book serialize on
// the row lock taken by the UPDATE, so at most one commit flips the flag.
func (r *loanRepository) Borrow(ctx context.Context, loan *domain.Loan) error {
	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE books
			SET available = FALSE, updated_at = $1
			WHERE id = $2 AND available = TRUE
		`, loan.BorrowedAt, loan.BookID)
		if err != nil {
			return fmt.Errorf("failed to reserve book: %w", err)
		}

		if tag.RowsAffected() == 0 {
			// Lost the conditional update; tell the caller whether the
			// book is missing or merely on loan.
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, loan.BookID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check book existence: %w", err)
			}
			if !exists {
				return domain.ErrBookNotFound
			}
			return domain.ErrBookUnavailable
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO loans (user_id, book_id, borrowed_at)
			VALUES ($1, $2, $3)
			RETURNING id
		`, loan.UserID, loan.BookID, loan.BorrowedAt).Scan(&loan.ID)
		if err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("failed to create loan: %w", err)
		}

		return nil
	})
}

// Return atomically closes the loan and frees the book.
//
// The conditional update matches on loan id, owner and the open state in
// one predicate; a zero affected-row count collapses missing, foreign and
// already-returned loans into domain.ErrLoanNotFound.
func (r *loanRepository) Return(ctx context.Context, loanID, userID int64, returnedAt time.Time) (*domain.Loan, error) {
	loan := &domain.Loan{}

	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE loans
			SET returned_at = $1
			WHERE id = $2 AND user_id = $3 AND returned_at IS NULL
			RETURNING id, user_id, book_id, borrowed_at, returned_at
		`, returnedAt, loanID, userID).Scan(
			&loan.ID,
			&loan.UserID,
			&loan.BookID,
			&loan.BorrowedAt,
			&loan.ReturnedAt,
		)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrLoanNotFound
			}
			return fmt.Errorf("failed to close loan: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE books
			SET available = TRUE, updated_at = $1
			WHERE id = $2
		`, returnedAt, loan.BookID); err != nil {
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
	loan := &domain.Loan{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, book_id, borrowed_at, returned_at
		FROM loans
		WHERE id = $1
	`, id).Scan(&loan.ID, &loan.UserID, &loan.BookID, &loan.BorrowedAt, &loan.ReturnedAt)
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
	return r.list(ctx,
		`WHERE user_id = $1`,
		[]interface{}{userID},
		`LIMIT $2 OFFSET $3`,
		opts,
	)
}

// List returns all loans, newest first.
func (r *loanRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.Loan], error) {
	return r.list(ctx, ``, nil, `LIMIT $1 OFFSET $2`, opts)
}

func (r *loanRepository) list(ctx context.Context, where string, args []interface{}, paging string, opts repository.ListOptions) (*repository.ListResult[domain.Loan], error) {
	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM loans `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count loans: %w", err)
	}

	query := `
		SELECT id, user_id, book_id, borrowed_at, returned_at
		FROM loans ` + where + `
		ORDER BY borrowed_at DESC, id DESC
	` + paging
	listArgs := append(append([]interface{}{}, args...), opts.Limit, opts.Offset)

	rows, err := r.db.Pool.Query(ctx, query, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan := &domain.Loan{}
		if err := rows.Scan(&loan.ID, &loan.UserID, &loan.BookID, &loan.BorrowedAt, &loan.ReturnedAt); err != nil {
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
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM loans WHERE book_id = $1 AND returned_at IS NULL
	`, bookID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open loans: %w", err)
	}
	return count, nil
}

// NewRepositories creates the full PostgreSQL repository bundle.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		Users: NewUserRepository(db),
		Books: NewBookRepository(db),
		Loans: NewLoanRepository(db),
	}
}

// Ensure loanRepository implements repository.LoanRepository.
var _ repository.LoanRepository = (*loanRepository)(nil)
