package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/domain"
	"github.com/openshelf/openshelf/internal/repository"
)

// BookService handles catalog management operations.
type BookService struct {
	bookRepo repository.BookRepository
	loanRepo repository.LoanRepository
	logger   zerolog.Logger
}

// NewBookService creates a new BookService.
func NewBookService(bookRepo repository.BookRepository, loanRepo repository.LoanRepository, logger zerolog.Logger) *BookService {
	return &BookService{
		bookRepo: bookRepo,
		loanRepo: loanRepo,
		logger:   logger.With().Str("service", "book").Logger(),
	}
}

// CreateBookInput contains the data needed to add a book to the catalog.
type CreateBookInput struct {
	Title     string
	Author    string
	ISBN      string
	PageCount int
}

// Create adds a new book to the catalog. New books start available.
func (s *BookService) Create(ctx context.Context, input CreateBookInput) (*domain.Book, error) {
	if err := validateBookInput(input.Title, input.Author, input.ISBN, input.PageCount); err != nil {
		return nil, err
	}

	book := domain.NewBook(input.Title, input.Author, input.ISBN, input.PageCount)

	if err := s.bookRepo.Create(ctx, book); err != nil {
		if errors.Is(err, domain.ErrBookAlreadyExists) {
			return nil, domain.NewValidationError("isbn", "a book with this ISBN already exists")
		}
		s.logger.Error().Err(err).Str("isbn", input.ISBN).Msg("failed to create book")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("book_id", book.ID).
		Str("title", book.Title).
		Str("isbn", book.ISBN).
		Msg("book created")

	return book, nil
}

// GetByID retrieves a book by ID.
func (s *BookService) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			return nil, domain.ErrBookNotFound
		}
		s.logger.Error().Err(err).Int64("book_id", id).Msg("failed to get book")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return book, nil
}

// ListBooksInput contains filter and pagination options for the catalog.
type ListBooksInput struct {
	Title     string
	Author    string
	ISBN      string
	Available *bool
	SortBy    string
	SortDesc  bool
	Limit     int
	Offset    int
}

// ListBooksOutput contains the result of listing books.
type ListBooksOutput struct {
	Books      []*domain.Book
	TotalCount int64
}

// List returns catalog entries matching the filter.
func (s *BookService) List(ctx context.Context, input ListBooksInput) (*ListBooksOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	result, err := s.bookRepo.List(ctx, repository.BookFilter{
		Title:     input.Title,
		Author:    input.Author,
		ISBN:      input.ISBN,
		Available: input.Available,
		SortBy:    input.SortBy,
		SortDesc:  input.SortDesc,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list books")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListBooksOutput{
		Books:      result.Items,
		TotalCount: result.Total,
	}, nil
}

// UpdateBookInput contains the data for updating a catalog entry.
// Availability is not part of the input: it only changes through loans.
type UpdateBookInput struct {
	ID        int64
	Title     string
	Author    string
	ISBN      string
	PageCount int
}

// Update replaces the descriptive fields of a book.
func (s *BookService) Update(ctx context.Context, input UpdateBookInput) (*domain.Book, error) {
	if err := validateBookInput(input.Title, input.Author, input.ISBN, input.PageCount); err != nil {
		return nil, err
	}

	book, err := s.bookRepo.GetByID(ctx, input.ID)
	if err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			return nil, domain.ErrBookNotFound
		}
		s.logger.Error().Err(err).Int64("book_id", input.ID).Msg("failed to get book for update")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	// The ISBN identifies the book for its whole life; an update may
	// repeat it but never change it.
	if input.ISBN != book.ISBN {
		return nil, domain.NewValidationError("isbn", "isbn cannot be changed")
	}

	book.Title = input.Title
	book.Author = input.Author
	book.PageCount = input.PageCount
	book.UpdatedAt = time.Now().UTC()

	if err := s.bookRepo.Update(ctx, book); err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			return nil, domain.ErrBookNotFound
		}
		s.logger.Error().Err(err).Int64("book_id", input.ID).Msg("failed to update book")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("book_id", book.ID).Msg("book updated")
	return book, nil
}

// Delete removes a book from the catalog. Loan history for the book
// is removed with it.
func (s *BookService) Delete(ctx context.Context, id int64) error {
	openLoans, err := s.loanRepo.CountOpenByBook(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("book_id", id).Msg("failed to count open loans")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.bookRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrBookNotFound) {
			return domain.ErrBookNotFound
		}
		s.logger.Error().Err(err).Int64("book_id", id).Msg("failed to delete book")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	event := s.logger.Info()
	if openLoans > 0 {
		// The cascade silently closes the borrower's loan; worth flagging.
		event = s.logger.Warn().Int64("open_loans", openLoans)
	}
	event.Int64("book_id", id).Msg("book deleted")

	return nil
}

// validateBookInput validates the descriptive fields of a book.
func validateBookInput(title, author, isbn string, pageCount int) error {
	if title == "" || len(title) > 255 {
		return domain.NewValidationError("title", "title must be 1-255 characters")
	}
	if author == "" || len(author) > 255 {
		return domain.NewValidationError("author", "author must be 1-255 characters")
	}
	if !domain.ValidISBNLength(isbn) {
		return domain.NewValidationError("isbn", "isbn must be 10 or 13 characters")
	}
	if pageCount <= 0 {
		return domain.NewValidationError("page_count", "page_count must be a positive integer")
	}
	return nil
}
