package domain

import (
	"time"
)

// ISBN lengths accepted by the catalog (ISBN-10 and ISBN-13).
const (
	ISBNLength10 = 10
	ISBNLength13 = 13
)

// Book represents a catalog entry.
type Book struct {
	// ID is the unique identifier for the book (auto-generated).
	ID int64 `json:"id"`

	// Title is the book title.
	Title string `json:"title"`

	// Author is the book author.
	Author string `json:"author"`

	// ISBN is the globally unique ISBN, 10 or 13 characters.
	ISBN string `json:"isbn"`

	// PageCount is the total number of pages. Always positive.
	PageCount int `json:"page_count"`

	// Available reports whether the book can currently be borrowed.
	// It is derived state: true iff no open loan references this book.
	// Clients never set it directly; only the borrow and return
	// transitions mutate it.
	Available bool `json:"available"`

	// CreatedAt is the timestamp when the book was added to the catalog.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the book was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBook creates a new Book, available for borrowing.
func NewBook(title, author, isbn string, pageCount int) *Book {
	now := time.Now().UTC()
	return &Book{
		Title:     title,
		Author:    author,
		ISBN:      isbn,
		PageCount: pageCount,
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidISBNLength reports whether s has an accepted ISBN length.
func ValidISBNLength(s string) bool {
	return len(s) == ISBNLength10 || len(s) == ISBNLength13
}
