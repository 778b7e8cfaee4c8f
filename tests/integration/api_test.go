// Package integration provides end-to-end tests for the OpenShelf API.
// The full stack runs in-process: chi router, services, and a SQLite
// in-memory database, exercised over real HTTP via httptest.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf/internal/auth"
	"github.com/openshelf/openshelf/internal/cache/memory"
	"github.com/openshelf/openshelf/internal/handler"
	"github.com/openshelf/openshelf/internal/metrics"
	"github.com/openshelf/openshelf/internal/repository/sqlite"
	"github.com/openshelf/openshelf/internal/service"
)

// testServer bundles the running API and direct service access for
// fixtures that have no public endpoint (admin account creation).
type testServer struct {
	*httptest.Server
	users *service.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(":memory:"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	repos := sqlite.NewRepositories(db)

	cache := memory.NewCache()
	t.Cleanup(func() { _ = cache.Close() })

	userService := service.NewUserService(repos.Users, logger)
	bookService := service.NewBookService(repos.Books, repos.Loans, logger)
	loanService := service.NewLoanService(repos.Loans, logger)

	tokens := auth.NewTokenManager("integration-secret-integration-32", "openshelf-test", time.Minute)
	refresh := auth.NewRefreshStore(cache, time.Hour)
	authenticator := auth.NewAuthenticator(tokens, userService, logger)

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler: handler.NewAuthHandler(handler.AuthHandlerConfig{
			UserService: userService,
			Tokens:      tokens,
			Refresh:     refresh,
			Logger:      logger,
		}),
		BookHandler:    handler.NewBookHandler(bookService, logger),
		LoanHandler:    handler.NewLoanHandler(loanService, metrics.New(), logger),
		AuthMiddleware: authenticator.Middleware(),
		Health:         db,
		Logger:         logger,
	})

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, users: userService}
}

// do sends a JSON request with an optional bearer token and decodes the
// response body into out (when out is non-nil).
func (s *testServer) do(t *testing.T, method, path, token string, body, out interface{}) int {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// register creates an account over the API and returns its access token.
func (s *testServer) register(t *testing.T, username, email string) string {
	t.Helper()

	status := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "correct horse battery",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	return s.login(t, username)
}

// registerAdmin creates an admin the way the CLI does and logs in.
func (s *testServer) registerAdmin(t *testing.T, username, email string) string {
	t.Helper()

	_, err := s.users.Register(context.Background(), service.RegisterInput{
		Username: username,
		Email:    email,
		Password: "correct horse battery",
		IsAdmin:  true,
	})
	require.NoError(t, err)

	return s.login(t, username)
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	status := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": "correct horse battery",
	}, &tokens)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	return tokens.AccessToken
}

// createBook adds a catalog entry as admin and returns its ID.
func (s *testServer) createBook(t *testing.T, adminToken, title, isbn string) int64 {
	t.Helper()

	var book struct {
		ID        int64 `json:"id"`
		Available bool  `json:"available"`
	}
	status := s.do(t, http.MethodPost, "/api/books", adminToken, map[string]interface{}{
		"title":      title,
		"author":     "Integration Author",
		"isbn":       isbn,
		"page_count": 321,
	}, &book)
	require.Equal(t, http.StatusCreated, status)
	require.True(t, book.Available)

	return book.ID
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Status string `json:"status"`
	}
	status := srv.do(t, http.MethodGet, "/health", "", nil, &body)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "healthy", body.Status)
}

func TestRegistrationAndLogin(t *testing.T) {
	srv := newTestServer(t)

	srv.register(t, "alice", "alice@example.com")

	t.Run("duplicate username names the field", func(t *testing.T) {
		var errBody struct {
			Error string `json:"error"`
			Field string `json:"field"`
		}
		status := srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "alice",
			"email":    "other@example.com",
			"password": "correct horse battery",
		}, &errBody)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "username", errBody.Field)
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		status := srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "alice",
			"password": "wrong",
		}, nil)
		require.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestRefreshRotation(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "alice", "alice@example.com")

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	status := srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice",
		"password": "correct horse battery",
	}, &tokens)
	require.Equal(t, http.StatusOK, status)

	var rotated struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	status = srv.do(t, http.MethodPost, "/api/auth/token/refresh", "", map[string]string{
		"refresh_token": tokens.RefreshToken,
	}, &rotated)
	require.Equal(t, http.StatusOK, status)
	require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// The old refresh token died with the rotation.
	status = srv.do(t, http.MethodPost, "/api/auth/token/refresh", "", map[string]string{
		"refresh_token": tokens.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestCatalogAccessPolicy(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.registerAdmin(t, "admin", "admin@example.com")
	aliceToken := srv.register(t, "alice", "alice@example.com")
	bookID := srv.createBook(t, adminToken, "Guarded Book", "9780134190440")

	t.Run("anonymous can browse", func(t *testing.T) {
		var list struct {
			Books []json.RawMessage `json:"books"`
			Total int64             `json:"total"`
		}
		status := srv.do(t, http.MethodGet, "/api/books", "", nil, &list)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, int64(1), list.Total)
	})

	t.Run("anonymous cannot create", func(t *testing.T) {
		status := srv.do(t, http.MethodPost, "/api/books", "", map[string]interface{}{
			"title": "Nope", "author": "Nope", "isbn": "9780134190442", "page_count": 1,
		}, nil)
		require.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("user can browse", func(t *testing.T) {
		var list struct {
			Books []json.RawMessage `json:"books"`
			Total int64             `json:"total"`
		}
		status := srv.do(t, http.MethodGet, "/api/books?title=guarded", aliceToken, nil, &list)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, int64(1), list.Total)
	})

	t.Run("user cannot create", func(t *testing.T) {
		status := srv.do(t, http.MethodPost, "/api/books", aliceToken, map[string]interface{}{
			"title": "Nope", "author": "Nope", "isbn": "9780134190441", "page_count": 1,
		}, nil)
		require.Equal(t, http.StatusForbidden, status)
	})

	t.Run("user cannot delete", func(t *testing.T) {
		status := srv.do(t, http.MethodDelete, fmt.Sprintf("/api/books/%d", bookID), aliceToken, nil, nil)
		require.Equal(t, http.StatusForbidden, status)
	})

	t.Run("admin update and delete", func(t *testing.T) {
		var updated struct {
			Title string `json:"title"`
		}
		status := srv.do(t, http.MethodPut, fmt.Sprintf("/api/books/%d", bookID), adminToken, map[string]interface{}{
			"title": "Renamed", "author": "Integration Author", "isbn": "9780134190440", "page_count": 321,
		}, &updated)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "Renamed", updated.Title)

		status = srv.do(t, http.MethodDelete, fmt.Sprintf("/api/books/%d", bookID), adminToken, nil, nil)
		require.Equal(t, http.StatusNoContent, status)

		status = srv.do(t, http.MethodGet, fmt.Sprintf("/api/books/%d", bookID), adminToken, nil, nil)
		require.Equal(t, http.StatusNotFound, status)
	})
}

func TestBorrowReturnLifecycle(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.registerAdmin(t, "admin", "admin@example.com")
	aliceToken := srv.register(t, "alice", "alice@example.com")
	bobToken := srv.register(t, "bob", "bob@example.com")
	bookID := srv.createBook(t, adminToken, "Single Copy", "9780134190440")

	var loan struct {
		ID         int64      `json:"id"`
		BookID     int64      `json:"book_id"`
		ReturnedAt *time.Time `json:"returned_at"`
	}
	status := srv.do(t, http.MethodPost, "/api/loans", aliceToken, map[string]int64{"book": bookID}, &loan)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, bookID, loan.BookID)
	require.Nil(t, loan.ReturnedAt)

	// The copy is gone until returned.
	var book struct {
		Available bool `json:"available"`
	}
	status = srv.do(t, http.MethodGet, fmt.Sprintf("/api/books/%d", bookID), aliceToken, nil, &book)
	require.Equal(t, http.StatusOK, status)
	require.False(t, book.Available)

	status = srv.do(t, http.MethodPost, "/api/loans", bobToken, map[string]int64{"book": bookID}, nil)
	require.Equal(t, http.StatusBadRequest, status)

	t.Run("foreign return looks like a missing loan", func(t *testing.T) {
		status := srv.do(t, http.MethodPost, fmt.Sprintf("/api/return/%d", loan.ID), bobToken, nil, nil)
		require.Equal(t, http.StatusNotFound, status)
	})

	var returned struct {
		Status string `json:"status"`
	}
	status = srv.do(t, http.MethodPost, fmt.Sprintf("/api/return/%d", loan.ID), aliceToken, nil, &returned)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "book returned", returned.Status)

	status = srv.do(t, http.MethodGet, fmt.Sprintf("/api/books/%d", bookID), aliceToken, nil, &book)
	require.Equal(t, http.StatusOK, status)
	require.True(t, book.Available)

	t.Run("return is not repeatable", func(t *testing.T) {
		status := srv.do(t, http.MethodPost, fmt.Sprintf("/api/return/%d", loan.ID), aliceToken, nil, nil)
		require.Equal(t, http.StatusNotFound, status)
	})

	// Bob can borrow now that the copy is back.
	status = srv.do(t, http.MethodPost, "/api/loans", bobToken, map[string]int64{"book": bookID}, nil)
	require.Equal(t, http.StatusCreated, status)
}

func TestLoanListScoping(t *testing.T) {
	srv := newTestServer(t)
	adminToken := srv.registerAdmin(t, "admin", "admin@example.com")
	aliceToken := srv.register(t, "alice", "alice@example.com")
	bobToken := srv.register(t, "bob", "bob@example.com")

	bookA := srv.createBook(t, adminToken, "Book A", "9780134190440")
	bookB := srv.createBook(t, adminToken, "Book B", "9780134190441")

	status := srv.do(t, http.MethodPost, "/api/loans", aliceToken, map[string]int64{"book": bookA}, nil)
	require.Equal(t, http.StatusCreated, status)
	status = srv.do(t, http.MethodPost, "/api/loans", bobToken, map[string]int64{"book": bookB}, nil)
	require.Equal(t, http.StatusCreated, status)

	var list struct {
		Loans []struct {
			UserID int64 `json:"user_id"`
		} `json:"loans"`
		Total int64 `json:"total"`
	}

	status = srv.do(t, http.MethodGet, "/api/loans", aliceToken, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, int64(1), list.Total)

	status = srv.do(t, http.MethodGet, "/api/loans", adminToken, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, int64(2), list.Total)
}

// TestConcurrentBorrowOverHTTP drives the mutual exclusion property
// through the whole stack: N clients race for one copy and exactly one
// gets a 201.
func TestConcurrentBorrowOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := newTestServer(t)
	adminToken := srv.registerAdmin(t, "admin", "admin@example.com")
	bookID := srv.createBook(t, adminToken, "Contested Copy", "9780134190440")

	const workers = 10
	tokens := make([]string, workers)
	for i := range tokens {
		tokens[i] = srv.register(t,
			fmt.Sprintf("reader%02d", i),
			fmt.Sprintf("reader%02d@example.com", i))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		conflict int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			status := srv.do(t, http.MethodPost, "/api/loans", token, map[string]int64{"book": bookID}, nil)

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case http.StatusCreated:
				created++
			case http.StatusBadRequest:
				conflict++
			default:
				t.Errorf("unexpected status %d", status)
			}
		}(tokens[i])
	}
	wg.Wait()

	require.Equal(t, 1, created, "exactly one borrow must win")
	require.Equal(t, workers-1, conflict)
}
