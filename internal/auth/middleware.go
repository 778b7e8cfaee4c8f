package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/openshelf/openshelf/internal/domain"
	"github.com/openshelf/openshelf/internal/policy"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// contextKey is a private type for context values.
type contextKey string

// identityContextKey is the context key for the authenticated identity.
const identityContextKey = contextKey("identity")

// UserLookup resolves token claims to a current user record.
// Looking the user up per request means a promotion or deletion takes
// effect immediately instead of when the access token expires.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	User *domain.User
}

// Authenticator validates bearer tokens and attaches the caller identity.
type Authenticator struct {
	tokens *TokenManager
	users  UserLookup
	logger zerolog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(tokens *TokenManager, users UserLookup, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		tokens: tokens,
		users:  users,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Middleware authenticates requests carrying a bearer token.
// Requests without an Authorization header pass through anonymously;
// route guards decide whether anonymous access is acceptable.
// A present but invalid token is always rejected.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := extractBearerToken(r)
			if err != nil {
				if errors.Is(err, ErrMissingToken) {
					next.ServeHTTP(w, r)
					return
				}
				writeAuthError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := a.tokens.ValidateAccess(tokenStr)
			if err != nil {
				a.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			user, err := a.users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				a.logger.Debug().Err(err).Int64("user_id", claims.UserID).Msg("token user lookup failed")
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, &Identity{User: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Require builds a route guard from a policy predicate. Anonymous
// callers are rejected with 401 unless the predicate allows a nil
// user; authenticated callers the predicate denies get 403.
func Require(allowed func(*domain.User) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFrom(r.Context())
			if identity == nil {
				if allowed(nil) {
					next.ServeHTTP(w, r)
					return
				}
				writeAuthError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !allowed(identity.User) {
				writeAuthError(w, http.StatusForbidden, "insufficient privileges")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return Require(func(u *domain.User) bool { return u != nil })(next)
}

// RequireAdmin rejects requests from anonymous or non-admin callers.
func RequireAdmin(next http.Handler) http.Handler {
	return Require(policy.IsElevated)(next)
}

// IdentityFrom retrieves the authenticated identity from a context.
// Returns nil for anonymous requests.
func IdentityFrom(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(identityContextKey).(*Identity); ok {
		return identity
	}
	return nil
}

// WithIdentity returns a context carrying the given identity.
// Used by tests and the admin CLI to act as a specific user.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// extractBearerToken pulls the token out of the Authorization header.
func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// writeAuthError writes a JSON error response.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
