// Package policy centralizes authorization decisions.
// Handlers and services ask these questions instead of inspecting
// user flags directly, so the rules live in one place.
package policy

import "github.com/openshelf/openshelf/internal/domain"

// IsElevated reports whether the user has administrative privileges.
func IsElevated(user *domain.User) bool {
	return user != nil && user.IsAdmin
}

// CanReadBooks reports whether the user may browse the catalog.
// The catalog is public; anonymous callers can read.
func CanReadBooks(user *domain.User) bool {
	return true
}

// CanWriteBooks reports whether the user may create, update, or
// delete catalog entries. Writes are restricted to administrators.
func CanWriteBooks(user *domain.User) bool {
	return IsElevated(user)
}

// CanBorrow reports whether the user may take out loans.
func CanBorrow(user *domain.User) bool {
	return user != nil
}

// CanSeeAllLoans reports whether the user may list loans belonging
// to other users.
func CanSeeAllLoans(user *domain.User) bool {
	return IsElevated(user)
}
