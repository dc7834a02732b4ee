// Package auth identifies the calling user and guards admin routes.
//
// User identity is established upstream (the login flow lives outside this
// service) and arrives in a request header. Admin calls carry a bearer token
// checked against a bcrypt hash.
package auth

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
)

const (
	DefaultUserHeader = "X-User-ID"
	maxUserIDLen      = 128
)

type contextKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserFromContext returns the user set by RequireUser.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// ErrorWriter writes a rejected request's response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticator holds the identity settings.
type Authenticator struct {
	userHeader string
	adminHash  []byte
	onError    ErrorWriter
}

// New creates an Authenticator. An empty adminHash rejects every admin call.
func New(userHeader, adminHash string, onError ErrorWriter) *Authenticator {
	if userHeader == "" {
		userHeader = DefaultUserHeader
	}
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	a := &Authenticator{userHeader: userHeader, onError: onError}
	if adminHash != "" {
		a.adminHash = []byte(adminHash)
	}
	return a
}

// RequireUser rejects requests without a user header and stores the user
// ID in the request context.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(a.userHeader))
		if id == "" {
			a.onError(w, r, apperr.Unauthorized("missing %s header", a.userHeader))
			return
		}
		if len(id) > maxUserIDLen {
			a.onError(w, r, apperr.Unauthorized("user id is too long"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), id)))
	})
}

// RequireAdmin rejects requests whose bearer token does not match the
// configured hash.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.IsAdmin(r) {
			a.onError(w, r, apperr.Unauthorized("admin token required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsAdmin reports whether r carries a valid admin bearer token.
func (a *Authenticator) IsAdmin(r *http.Request) bool {
	if len(a.adminHash) == 0 {
		return false
	}
	token, ok := bearerToken(r)
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.adminHash, []byte(token)) == nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HashToken returns the bcrypt hash to configure for an admin token.
func HashToken(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", apperr.Invalid("token is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
