package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration

	"github.com/openshelf/openshelf/internal/domain"
	"github.com/openshelf/openshelf/internal/repository"
)

// bookSortColumns whitelists the columns a listing may be ordered by.
var bookSortColumns = map[string]bool{
	"title":      true,
	"author":     true,
	"isbn":       true,
	"page_count": true,
	"created_at": true,
}

// bookRepository implements repository.BookRepository for SQLite.
type bookRepository struct {
	db      *DB
	dialect goqu.DialectWrapper
}

// NewBookRepository creates a new SQLite book repository.
func NewBookRepository(db *DB) repository.BookRepository {
	return &bookRepository{
		db:      db,
		dialect: goqu.Dialect("sqlite3"),
	}
}

// Create creates a new book.
func (r *bookRepository) Create(ctx context.Context, book *domain.Book) error {
	query := `
		INSERT INTO books (title, author, isbn, page_count, available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		book.Title,
		book.Author,
		book.ISBN,
		book.PageCount,
		boolToInt(book.Available),
		book.CreatedAt.Format(time.RFC3339),
		book.UpdatedAt.Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: isbn %s", domain.ErrBookAlreadyExists, book.ISBN)
		}
		return fmt.Errorf("failed to create book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	book.ID = id

	return nil
}

// GetByID retrieves a book by ID.
func (r *bookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	return r.getBy(ctx, `WHERE id = ?`, id)
}

// GetByISBN retrieves a book by ISBN.
func (r *bookRepository) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	return r.getBy(ctx, `WHERE isbn = ?`, isbn)
}

func (r *bookRepository) getBy(ctx context.Context, where string, arg interface{}) (*domain.Book, error) {
	query := `
		SELECT id, title, author, isbn, page_count, available, created_at, updated_at
		FROM books
	` + where

	book := &domain.Book{}
	var available int
	var createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.ISBN,
		&book.PageCount,
		&available,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	book.Available = available != 0
	book.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	book.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return book, nil
}

// List returns books matching the filter, built dynamically with goqu.
func (r *bookRepository) List(ctx context.Context, filter repository.BookFilter) (*repository.ListResult[domain.Book], error) {
	base := r.dialect.From("books")
	if filter.Title != "" {
		base = base.Where(goqu.C("title").Like("%" + filter.Title + "%"))
	}
	if filter.Author != "" {
		base = base.Where(goqu.C("author").Like("%" + filter.Author + "%"))
	}
	if filter.ISBN != "" {
		base = base.Where(goqu.C("isbn").Eq(filter.ISBN))
	}
	if filter.Available != nil {
		base = base.Where(goqu.C("available").Eq(boolToInt(*filter.Available)))
	}

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}

	sortBy := filter.SortBy
	if !bookSortColumns[sortBy] {
		sortBy = "title"
	}
	order := goqu.I(sortBy).Asc()
	if filter.SortDesc {
		order = goqu.I(sortBy).Desc()
	}

	listSQL, listArgs, err := base.
		Select("id", "title", "author", "isbn", "page_count", "available", "created_at", "updated_at").
		Order(order).
		Limit(uint(filter.Limit)).
		Offset(uint(filter.Offset)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		book := &domain.Book{}
		var available int
		var createdAt, updatedAt string

		err := rows.Scan(
			&book.ID,
			&book.Title,
			&book.Author,
			&book.ISBN,
			&book.PageCount,
			&available,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}

		book.Available = available != 0
		book.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		book.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating books: %w", err)
	}

	return &repository.ListResult[domain.Book]{
		Items:  books,
		Total:  total,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	}, nil
}

// Update updates title, author and page count of an existing book.
// The availability flag is owned by the loan transitions and never
// written here.
func (r *bookRepository) Update(ctx context.Context, book *domain.Book) error {
	book.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE books
		SET title = ?, author = ?, page_count = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		book.Title,
		book.Author,
		book.PageCount,
		book.UpdatedAt.Format(time.RFC3339),
		book.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrBookNotFound
	}

	return nil
}

// Delete deletes a book by ID.
func (r *bookRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrBookNotFound
	}

	return nil
}

// ExistsByISBN checks if a book with the given ISBN exists.
func (r *bookRepository) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE isbn = ?`, isbn).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check isbn existence: %w", err)
	}
	return count > 0, nil
}

// Ensure bookRepository implements repository.BookRepository.
var _ repository.BookRepository = (*bookRepository)(nil)
