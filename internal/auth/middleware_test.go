package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/domain"
)

// stubUserLookup resolves users from a fixed map.
type stubUserLookup struct {
	users map[int64]*domain.User
}

func (s *stubUserLookup) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func newTestAuthenticator(users ...*domain.User) (*Authenticator, *TokenManager) {
	lookup := &stubUserLookup{users: make(map[int64]*domain.User)}
	for _, u := range users {
		lookup.users[u.ID] = u
	}
	tm := NewTokenManager(testSecret, "openshelf-test", time.Minute)
	return NewAuthenticator(tm, lookup, zerolog.Nop()), tm
}

// identityProbe records the identity seen by the downstream handler.
func identityProbe(got **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_AnonymousPassesThrough(t *testing.T) {
	a, _ := newTestAuthenticator()

	var got *Identity
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)

	a.Middleware()(identityProbe(&got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if got != nil {
		t.Error("expected anonymous identity")
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	user := &domain.User{ID: 1, Username: "alice"}
	a, tm := newTestAuthenticator(user)

	token, _, err := tm.IssueAccess(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var got *Identity
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	a.Middleware()(identityProbe(&got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.User.ID != 1 {
		t.Errorf("expected identity for user 1, got %+v", got)
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	a, _ := newTestAuthenticator()

	var got *Identity
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Authorization", "Bearer garbage")

	a.Middleware()(identityProbe(&got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_DeletedUser(t *testing.T) {
	// Token is valid but the user no longer exists.
	user := &domain.User{ID: 1, Username: "alice"}
	a, tm := newTestAuthenticator() // lookup is empty

	token, _, err := tm.IssueAccess(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var got *Identity
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	a.Middleware()(identityProbe(&got)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRequireUser(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("anonymous rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)

		RequireUser(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("authenticated allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
		ctx := WithIdentity(req.Context(), &Identity{User: &domain.User{ID: 1}})

		RequireUser(next).ServeHTTP(rec, req.WithContext(ctx))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/books", nil)
		ctx := WithIdentity(req.Context(), &Identity{User: &domain.User{ID: 1}})

		RequireAdmin(next).ServeHTTP(rec, req.WithContext(ctx))
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("admin allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/books", nil)
		ctx := WithIdentity(req.Context(), &Identity{User: &domain.User{ID: 1, IsAdmin: true}})

		RequireAdmin(next).ServeHTTP(rec, req.WithContext(ctx))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("anonymous unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/books", nil)

		RequireAdmin(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})
}
