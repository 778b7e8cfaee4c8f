package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/domain"
)

func newBookService(books *MockBookRepository, loans *MockLoanRepository) *BookService {
	return NewBookService(books, loans, zerolog.Nop())
}

func TestBookService_Create(t *testing.T) {
	tests := []struct {
		name      string
		input     CreateBookInput
		wantField string
		setupRepo func(*MockBookRepository)
	}{
		{
			name: "success isbn-13",
			input: CreateBookInput{
				Title:     "The Go Programming Language",
				Author:    "Donovan & Kernighan",
				ISBN:      "9780134190440",
				PageCount: 380,
			},
		},
		{
			name: "success isbn-10",
			input: CreateBookInput{
				Title:     "The C Programming Language",
				Author:    "Kernighan & Ritchie",
				ISBN:      "0131103628",
				PageCount: 272,
			},
		},
		{
			name: "missing title",
			input: CreateBookInput{
				Author:    "Anonymous",
				ISBN:      "9780134190440",
				PageCount: 100,
			},
			wantField: "title",
		},
		{
			name: "missing author",
			input: CreateBookInput{
				Title:     "Untitled",
				ISBN:      "9780134190440",
				PageCount: 100,
			},
			wantField: "author",
		},
		{
			name: "isbn wrong length",
			input: CreateBookInput{
				Title:     "Untitled",
				Author:    "Anonymous",
				ISBN:      "12345",
				PageCount: 100,
			},
			wantField: "isbn",
		},
		{
			name: "zero page count",
			input: CreateBookInput{
				Title:     "Untitled",
				Author:    "Anonymous",
				ISBN:      "9780134190440",
				PageCount: 0,
			},
			wantField: "page_count",
		},
		{
			name: "negative page count",
			input: CreateBookInput{
				Title:     "Untitled",
				Author:    "Anonymous",
				ISBN:      "9780134190440",
				PageCount: -5,
			},
			wantField: "page_count",
		},
		{
			name: "duplicate isbn",
			input: CreateBookInput{
				Title:     "Another Copy",
				Author:    "Anonymous",
				ISBN:      "9780134190440",
				PageCount: 100,
			},
			wantField: "isbn",
			setupRepo: func(m *MockBookRepository) {
				m.books[1] = &domain.Book{ID: 1, Title: "First Copy", ISBN: "9780134190440"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockBookRepository()
			if tt.setupRepo != nil {
				tt.setupRepo(repo)
			}
			svc := newBookService(repo, NewMockLoanRepository())

			book, err := svc.Create(context.Background(), tt.input)

			if tt.wantField != "" {
				ve, ok := domain.AsValidation(err)
				if !ok {
					t.Fatalf("expected validation error, got %v", err)
				}
				if ve.Field != tt.wantField {
					t.Errorf("expected field %q, got %q", tt.wantField, ve.Field)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if book.ID == 0 {
				t.Error("expected assigned book ID")
			}
			if !book.Available {
				t.Error("new book should be available")
			}
		})
	}
}

func TestBookService_Update(t *testing.T) {
	repo := NewMockBookRepository()
	repo.books[1] = &domain.Book{
		ID:        1,
		Title:     "Old Title",
		Author:    "Old Author",
		ISBN:      "9780134190440",
		PageCount: 100,
		Available: false,
	}
	svc := newBookService(repo, NewMockLoanRepository())

	t.Run("success keeps availability", func(t *testing.T) {
		book, err := svc.Update(context.Background(), UpdateBookInput{
			ID:        1,
			Title:     "New Title",
			Author:    "New Author",
			ISBN:      "9780134190440",
			PageCount: 120,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if book.Title != "New Title" {
			t.Errorf("expected updated title, got %q", book.Title)
		}
		if repo.books[1].Available {
			t.Error("update must not touch availability")
		}
	})

	t.Run("isbn is immutable", func(t *testing.T) {
		_, err := svc.Update(context.Background(), UpdateBookInput{
			ID:        1,
			Title:     "New Title",
			Author:    "New Author",
			ISBN:      "0131103628",
			PageCount: 120,
		})
		ve, ok := domain.AsValidation(err)
		if !ok || ve.Field != "isbn" {
			t.Fatalf("expected isbn validation error, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.Update(context.Background(), UpdateBookInput{
			ID:        99,
			Title:     "Title",
			Author:    "Author",
			ISBN:      "9780134190441",
			PageCount: 100,
		})
		if !errors.Is(err, domain.ErrBookNotFound) {
			t.Errorf("expected ErrBookNotFound, got %v", err)
		}
	})
}

func TestBookService_Delete(t *testing.T) {
	repo := NewMockBookRepository()
	repo.books[1] = &domain.Book{ID: 1, Title: "Doomed", ISBN: "9780134190440"}
	svc := newBookService(repo, NewMockLoanRepository())

	if err := svc.Delete(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, exists := repo.books[1]; exists {
		t.Error("expected book to be deleted")
	}

	if err := svc.Delete(context.Background(), 1); !errors.Is(err, domain.ErrBookNotFound) {
		t.Errorf("expected ErrBookNotFound, got %v", err)
	}
}

func TestBookService_List(t *testing.T) {
	repo := NewMockBookRepository()
	repo.books[1] = &domain.Book{ID: 1, Title: "The Go Programming Language", Author: "Donovan", ISBN: "9780134190440", Available: true}
	repo.books[2] = &domain.Book{ID: 2, Title: "The C Programming Language", Author: "Kernighan", ISBN: "0131103628", Available: false}
	svc := newBookService(repo, NewMockLoanRepository())

	t.Run("no filter", func(t *testing.T) {
		out, err := svc.List(context.Background(), ListBooksInput{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.TotalCount != 2 {
			t.Errorf("expected 2 books, got %d", out.TotalCount)
		}
	})

	t.Run("title substring", func(t *testing.T) {
		out, err := svc.List(context.Background(), ListBooksInput{Title: "go"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.TotalCount != 1 || out.Books[0].ID != 1 {
			t.Errorf("expected only book 1, got %+v", out.Books)
		}
	})

	t.Run("available only", func(t *testing.T) {
		available := true
		out, err := svc.List(context.Background(), ListBooksInput{Available: &available})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.TotalCount != 1 || out.Books[0].ID != 1 {
			t.Errorf("expected only book 1, got %+v", out.Books)
		}
	})
}
