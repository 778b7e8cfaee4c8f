// Package service provides business logic services for OpenShelf.
package service

import "errors"

// ErrInternalError wraps unexpected repository or infrastructure
// failures so handlers can map them to a 500 without leaking detail.
var ErrInternalError = errors.New("internal server error")
