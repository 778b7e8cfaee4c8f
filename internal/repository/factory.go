package repository

import (
	"context"
)

// Repositories holds all repository instances for one database backend.
// The sqlite and postgres packages each provide a constructor returning
// this bundle.
type Repositories struct {
	Users UserRepository
	Books BookRepository
	Loans LoanRepository
}

// DatabaseHealth is an interface for database health checks and shutdown.
// Both backends' DB wrappers satisfy it; the health endpoint and main use
// it without knowing the driver.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
