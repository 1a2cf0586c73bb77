package api

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// sessionCookieName is the canonical cookie carrying the session token.
const sessionCookieName = "bayanihan_session"

// legacySessionCookies are the cookie names written by the previous NextAuth
// front-end. Accepted during the migration window.
var legacySessionCookies = []string{
	"next-auth.session-token",
	"__Secure-next-auth.session-token",
	"next-auth_session-token",
	"__Host-next-auth.session-token",
}

var (
	errNoSessionToken = errors.New("No session token provided")
	errBadSession     = errors.New("Invalid or expired session. Please log in again.")
	errUserGone       = errors.New("User not found")
)

// identity is what a resolver attaches to the request context.
type identity struct {
	UserID  string
	IsAdmin bool
}

// identityResolver turns request credentials into a user identity.
type identityResolver interface {
	Resolve(r *http.Request) (identity, error)
}

// headerResolver trusts an upstream-injected X-User-Id header. Intended for
// deployments where a gateway has already authenticated the caller.
type headerResolver struct {
	users userDirectory
}

func (h *headerResolver) Resolve(r *http.Request) (identity, error) {
	id := r.Header.Get("X-User-Id")
	if id == "" {
		return identity{}, errNoSessionToken
	}
	user, err := h.users.FindByID(r.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		return identity{}, errUserGone
	}
	if err != nil {
		return identity{}, err
	}
	return identity{UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

// cookieResolver resolves the canonical session cookie, falling back to the
// legacy NextAuth cookie names and the X-Session-Token header.
type cookieResolver struct {
	users    userDirectory
	sessions sessionDirectory
	now      func() time.Time
}

func (c *cookieResolver) Resolve(r *http.Request) (identity, error) {
	token := sessionTokenFromRequest(r)
	if token == "" {
		return identity{}, errNoSessionToken
	}

	session, err := c.sessions.FindActive(r.Context(), token, c.now().UTC())
	if errors.Is(err, ErrSessionNotFound) {
		return identity{}, errBadSession
	}
	if err != nil {
		return identity{}, err
	}

	user, err := c.users.FindByID(r.Context(), session.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return identity{}, errUserGone
	}
	if err != nil {
		return identity{}, err
	}
	return identity{UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

func sessionTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	for _, name := range legacySessionCookies {
		if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return r.Header.Get("X-Session-Token")
}

type contextKey string

const identityKey contextKey = "identity"

func withIdentity(ctx context.Context, id identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func identityFrom(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityKey).(identity)
	return id, ok
}

// requireUser authenticates the request and stashes the identity in context.
func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.resolveIdentity(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// requireAdmin is requireUser plus the admin gate.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.resolveIdentity(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err)
			return
		}
		if !id.IsAdmin {
			respondError(w, http.StatusForbidden, errAdminRequired)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

func (a *API) resolveIdentity(r *http.Request) (identity, error) {
	for _, resolver := range a.resolvers {
		id, err := resolver.Resolve(r)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, errNoSessionToken) {
			return identity{}, err
		}
	}
	return identity{}, errNoSessionToken
}

// optionalIdentity resolves the caller when credentials are present and
// returns a zero identity otherwise. Public endpoints use it to tailor
// responses for logged-in viewers.
func (a *API) optionalIdentity(r *http.Request) identity {
	id, err := a.resolveIdentity(r)
	if err != nil {
		return identity{}
	}
	return id
}
