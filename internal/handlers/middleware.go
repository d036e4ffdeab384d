package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/services"
	"github.com/GurgoSoft/MIND-sub001/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// Authenticator resolves a bearer token to the user it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (types.User, error)
}

// AuditMeta copies the client address and user agent into the context so
// audit records can name them.
func AuditMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := audit.MetaFrom(r.Context())
		meta.IP = clientIP(r)
		meta.UserAgent = r.UserAgent()
		next.ServeHTTP(w, r.WithContext(audit.WithMeta(r.Context(), meta)))
	})
}

// RequireAuth rejects requests without a valid bearer token and makes the
// authenticated user the audit actor. When disabled every request passes
// without an actor and audit records fall back to the configured system user.
func RequireAuth(authn Authenticator, disabled bool) func(http.Handler) http.Handler {
	base := NewBase(nil, false)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if disabled {
				w.Header().Set("X-Auth-Disabled", "true")
				next.ServeHTTP(w, r)
				return
			}

			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
				return
			}

			user, err := authn.Authenticate(r.Context(), tokenString)
			if err != nil {
				if services.IsAuthError(err) {
					base.fail(w, r, err)
					return
				}
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to authenticate")
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, user)
			ctx = audit.WithActor(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorizer decides whether an authenticated user may administer accounts.
type Authorizer interface {
	IsAdmin(ctx context.Context, user types.User) (bool, error)
}

// RequireAdmin lets only administrators through. It runs after RequireAuth;
// with auth disabled there is no user in the context and the check passes.
func RequireAdmin(authz Authorizer) func(http.Handler) http.Handler {
	base := NewBase(nil, false)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			isAdmin, err := authz.IsAdmin(r.Context(), user)
			if err != nil {
				base.fail(w, r, err)
				return
			}
			if !isAdmin {
				base.fail(w, r, errAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// userFromContext returns the authenticated user, if any.
func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

// requireSelf lets a user act only on their own account. With auth disabled
// there is no user in the context and the check passes.
func requireSelf(r *http.Request, id string) error {
	user, ok := userFromContext(r.Context())
	if !ok {
		return nil
	}
	if user.ID != id {
		return errForbidden
	}
	return nil
}

// requireOther rejects actions a user may not take on their own account.
func requireOther(r *http.Request, id string) error {
	user, ok := userFromContext(r.Context())
	if ok && user.ID == id {
		return errSelfAction
	}
	return nil
}

// requireSelfOrAdmin lets a user read their own account; anyone else needs
// the administrator type.
func requireSelfOrAdmin(r *http.Request, authz Authorizer, id string) error {
	user, ok := userFromContext(r.Context())
	if !ok || user.ID == id {
		return nil
	}
	isAdmin, err := authz.IsAdmin(r.Context(), user)
	if err != nil {
		return err
	}
	if !isAdmin {
		return errForbidden
	}
	return nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// clientIP strips the port from RemoteAddr, which chi's RealIP has already
// replaced with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
