package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/domain"
	"github.com/openshelf/openshelf/internal/policy"
	"github.com/openshelf/openshelf/internal/repository"
)

// LoanService handles borrowing and returning books.
//
// The availability transitions are delegated to the repository, which
// performs them as a single conditional update inside a transaction.
// The service never checks availability first and acts second; under
// concurrent borrows of the last copy that pattern would let two
// callers through.
type LoanService struct {
	loanRepo repository.LoanRepository
	logger   zerolog.Logger
}

// NewLoanService creates a new LoanService.
func NewLoanService(loanRepo repository.LoanRepository, logger zerolog.Logger) *LoanService {
	return &LoanService{
		loanRepo: loanRepo,
		logger:   logger.With().Str("service", "loan").Logger(),
	}
}

// Borrow takes out a loan on a book for the given user.
// Exactly one caller wins when several borrow the same book at once;
// the rest get ErrBookUnavailable.
func (s *LoanService) Borrow(ctx context.Context, user *domain.User, bookID int64) (*domain.Loan, error) {
	if !policy.CanBorrow(user) {
		return nil, domain.ErrUnauthorized
	}

	loan := domain.NewLoan(user.ID, bookID)

	if err := s.loanRepo.Borrow(ctx, loan); err != nil {
		switch {
		case errors.Is(err, domain.ErrBookNotFound):
			return nil, domain.ErrBookNotFound
		case errors.Is(err, domain.ErrBookUnavailable):
			s.logger.Debug().
				Int64("user_id", user.ID).
				Int64("book_id", bookID).
				Msg("borrow conflict: book unavailable")
			return nil, domain.ErrBookUnavailable
		default:
			s.logger.Error().Err(err).
				Int64("user_id", user.ID).
				Int64("book_id", bookID).
				Msg("failed to borrow book")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
	}

	s.logger.Info().
		Int64("loan_id", loan.ID).
		Int64("user_id", user.ID).
		Int64("book_id", bookID).
		Msg("book borrowed")

	return loan, nil
}

// Return closes the caller's open loan and makes the book available
// again. A loan that does not exist, belongs to someone else, or is
// already returned yields the same ErrLoanNotFound: callers learn
// nothing about other users' loans, and a duplicate return of an
// already-closed loan fails identically no matter how often retried.
func (s *LoanService) Return(ctx context.Context, user *domain.User, loanID int64) (*domain.Loan, error) {
	if user == nil {
		return nil, domain.ErrUnauthorized
	}

	loan, err := s.loanRepo.Return(ctx, loanID, user.ID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return nil, domain.ErrLoanNotFound
		}
		s.logger.Error().Err(err).
			Int64("loan_id", loanID).
			Int64("user_id", user.ID).
			Msg("failed to return book")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("loan_id", loan.ID).
		Int64("user_id", user.ID).
		Int64("book_id", loan.BookID).
		Msg("book returned")

	return loan, nil
}

// ListLoansInput contains filter and pagination options for loans.
// ForUserID is honored only for callers who may see all loans; other
// callers are always scoped to their own history.
type ListLoansInput struct {
	ForUserID int64
	Limit     int
	Offset    int
}

// ListLoansOutput contains the result of listing loans.
type ListLoansOutput struct {
	Loans      []*domain.Loan
	TotalCount int64
}

// List returns loans visible to the user, newest first.
func (s *LoanService) List(ctx context.Context, user *domain.User, input ListLoansInput) (*ListLoansOutput, error) {
	if user == nil {
		return nil, domain.ErrUnauthorized
	}

	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	opts := repository.ListOptions{Limit: input.Limit, Offset: input.Offset}

	var (
		result *repository.ListResult[domain.Loan]
		err    error
	)
	switch {
	case policy.CanSeeAllLoans(user) && input.ForUserID == 0:
		result, err = s.loanRepo.List(ctx, opts)
	case policy.CanSeeAllLoans(user):
		result, err = s.loanRepo.ListByUser(ctx, input.ForUserID, opts)
	default:
		result, err = s.loanRepo.ListByUser(ctx, user.ID, opts)
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to list loans")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListLoansOutput{
		Loans:      result.Items,
		TotalCount: result.Total,
	}, nil
}
