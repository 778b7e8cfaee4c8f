package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf/internal/repository"
)

// refreshKeyPrefix namespaces refresh token keys in the cache.
const refreshKeyPrefix = "refresh:"

// RefreshStore manages opaque refresh tokens backed by a cache.
// Tokens are random identifiers mapped to the owning user ID, so a
// token can be revoked individually without touching the user record.
type RefreshStore struct {
	cache repository.Cache
	ttl   time.Duration
}

// NewRefreshStore creates a RefreshStore.
func NewRefreshStore(cache repository.Cache, ttl time.Duration) *RefreshStore {
	return &RefreshStore{
		cache: cache,
		ttl:   ttl,
	}
}

// Issue creates a new refresh token for the user.
func (s *RefreshStore) Issue(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	value := []byte(strconv.FormatInt(userID, 10))

	if err := s.cache.Set(ctx, refreshKeyPrefix+token, value, s.ttl); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// Validate resolves a refresh token to its owning user ID.
func (s *RefreshStore) Validate(ctx context.Context, token string) (int64, error) {
	value, err := s.cache.Get(ctx, refreshKeyPrefix+token)
	if err != nil {
		if errors.Is(err, repository.ErrCacheMiss) {
			return 0, ErrRefreshTokenNotFound
		}
		return 0, fmt.Errorf("lookup refresh token: %w", err)
	}

	userID, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed value", ErrRefreshTokenNotFound)
	}
	return userID, nil
}

// Rotate revokes the given token and issues a fresh one for the same user.
// The old token is invalid once Rotate returns successfully.
func (s *RefreshStore) Rotate(ctx context.Context, token string) (int64, string, error) {
	userID, err := s.Validate(ctx, token)
	if err != nil {
		return 0, "", err
	}
	if err := s.Revoke(ctx, token); err != nil {
		return 0, "", err
	}
	next, err := s.Issue(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	return userID, next, nil
}

// Revoke deletes a refresh token.
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	if err := s.cache.Delete(ctx, refreshKeyPrefix+token); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
