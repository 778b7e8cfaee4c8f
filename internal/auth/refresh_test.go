package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openshelf/openshelf/internal/cache/memory"
)

func newTestRefreshStore(t *testing.T) *RefreshStore {
	t.Helper()
	cache := memory.NewCache()
	t.Cleanup(func() { _ = cache.Close() })
	return NewRefreshStore(cache, time.Hour)
}

func TestRefreshStore_IssueValidate(t *testing.T) {
	store := newTestRefreshStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, 7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, err := store.Validate(ctx, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if userID != 7 {
		t.Errorf("expected user 7, got %d", userID)
	}
}

func TestRefreshStore_UnknownToken(t *testing.T) {
	store := newTestRefreshStore(t)

	_, err := store.Validate(context.Background(), "no-such-token")
	if !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Errorf("expected ErrRefreshTokenNotFound, got %v", err)
	}
}

func TestRefreshStore_Rotate(t *testing.T) {
	store := newTestRefreshStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, 7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, next, err := store.Rotate(ctx, token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if userID != 7 {
		t.Errorf("expected user 7, got %d", userID)
	}
	if next == token {
		t.Error("rotation must issue a different token")
	}

	// Old token is dead, new token works.
	if _, err := store.Validate(ctx, token); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Errorf("expected old token revoked, got %v", err)
	}
	if _, err := store.Validate(ctx, next); err != nil {
		t.Errorf("new token should validate: %v", err)
	}
}

func TestRefreshStore_Revoke(t *testing.T) {
	store := newTestRefreshStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, 7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := store.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.Validate(ctx, token); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Errorf("expected ErrRefreshTokenNotFound, got %v", err)
	}
}
