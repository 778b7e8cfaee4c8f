package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/openshelf/openshelf/internal/domain"
	"github.com/openshelf/openshelf/internal/repository"
)

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	users     map[int64]*domain.User
	nextID    int64
	createErr error
	getErr    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*domain.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u, exists := m.users[id]; exists {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.ID]; !exists {
		return domain.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	var items []*domain.User
	for _, u := range m.users {
		items = append(items, u)
	}
	return &repository.ListResult[domain.User]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// MockBookRepository is a mock implementation of repository.BookRepository.
type MockBookRepository struct {
	books     map[int64]*domain.Book
	nextID    int64
	createErr error
	getErr    error
}

func NewMockBookRepository() *MockBookRepository {
	return &MockBookRepository{
		books:  make(map[int64]*domain.Book),
		nextID: 1,
	}
}

func (m *MockBookRepository) Create(ctx context.Context, book *domain.Book) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, b := range m.books {
		if b.ISBN == book.ISBN {
			return domain.ErrBookAlreadyExists
		}
	}
	book.ID = m.nextID
	m.nextID++
	m.books[book.ID] = book
	return nil
}

func (m *MockBookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if b, exists := m.books[id]; exists {
		return b, nil
	}
	return nil, domain.ErrBookNotFound
}

func (m *MockBookRepository) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	for _, b := range m.books {
		if b.ISBN == isbn {
			return b, nil
		}
	}
	return nil, domain.ErrBookNotFound
}

func (m *MockBookRepository) List(ctx context.Context, filter repository.BookFilter) (*repository.ListResult[domain.Book], error) {
	var items []*domain.Book
	for _, b := range m.books {
		if filter.Title != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(filter.Title)) {
			continue
		}
		if filter.Author != "" && !strings.Contains(strings.ToLower(b.Author), strings.ToLower(filter.Author)) {
			continue
		}
		if filter.ISBN != "" && b.ISBN != filter.ISBN {
			continue
		}
		if filter.Available != nil && b.Available != *filter.Available {
			continue
		}
		items = append(items, b)
	}
	return &repository.ListResult[domain.Book]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	}, nil
}

func (m *MockBookRepository) Update(ctx context.Context, book *domain.Book) error {
	if _, exists := m.books[book.ID]; !exists {
		return domain.ErrBookNotFound
	}
	for _, b := range m.books {
		if b.ID != book.ID && b.ISBN == book.ISBN {
			return domain.ErrBookAlreadyExists
		}
	}
	// Availability is owned by the loan transitions.
	book.Available = m.books[book.ID].Available
	m.books[book.ID] = book
	return nil
}

func (m *MockBookRepository) Delete(ctx context.Context, id int64) error {
	if _, exists := m.books[id]; !exists {
		return domain.ErrBookNotFound
	}
	delete(m.books, id)
	return nil
}

func (m *MockBookRepository) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	for _, b := range m.books {
		if b.ISBN == isbn {
			return true, nil
		}
	}
	return false, nil
}

// MockLoanRepository is a mock implementation of repository.LoanRepository.
// It owns its own book availability so Borrow and Return can enforce the
// same conditional semantics as the real implementations, guarded by a
// mutex so concurrent borrows serialize the way database transactions do.
type MockLoanRepository struct {
	mu     sync.Mutex
	books  map[int64]*domain.Book
	loans  map[int64]*domain.Loan
	nextID int64
}

func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{
		books:  make(map[int64]*domain.Book),
		loans:  make(map[int64]*domain.Loan),
		nextID: 1,
	}
}

// AddBook seeds a book for loan tests.
func (m *MockLoanRepository) AddBook(book *domain.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[book.ID] = book
}

func (m *MockLoanRepository) Borrow(ctx context.Context, loan *domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, exists := m.books[loan.BookID]
	if !exists {
		return domain.ErrBookNotFound
	}
	if !book.Available {
		return domain.ErrBookUnavailable
	}
	book.Available = false

	loan.ID = m.nextID
	m.nextID++
	m.loans[loan.ID] = loan
	return nil
}

func (m *MockLoanRepository) Return(ctx context.Context, loanID, userID int64, returnedAt time.Time) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loan, exists := m.loans[loanID]
	if !exists || loan.UserID != userID || loan.ReturnedAt != nil {
		return nil, domain.ErrLoanNotFound
	}
	loan.ReturnedAt = &returnedAt

	if book, ok := m.books[loan.BookID]; ok {
		book.Available = true
	}
	return loan, nil
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, exists := m.loans[id]; exists {
		return l, nil
	}
	return nil, domain.ErrLoanNotFound
}

func (m *MockLoanRepository) ListByUser(ctx context.Context, userID int64, opts repository.ListOptions) (*repository.ListResult[domain.Loan], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []*domain.Loan
	for _, l := range m.loans {
		if l.UserID == userID {
			items = append(items, l)
		}
	}
	return &repository.ListResult[domain.Loan]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *MockLoanRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.Loan], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []*domain.Loan
	for _, l := range m.loans {
		items = append(items, l)
	}
	return &repository.ListResult[domain.Loan]{
		Items:  items,
		Total:  int64(len(items)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *MockLoanRepository) CountOpenByBook(ctx context.Context, bookID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, l := range m.loans {
		if l.BookID == bookID && l.ReturnedAt == nil {
			count++
		}
	}
	return count, nil
}

// Ensure mocks satisfy the repository interfaces.
var (
	_ repository.UserRepository = (*MockUserRepository)(nil)
	_ repository.BookRepository = (*MockBookRepository)(nil)
	_ repository.LoanRepository = (*MockLoanRepository)(nil)
)
