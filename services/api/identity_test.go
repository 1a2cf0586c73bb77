package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newIdentityFixture(t *testing.T) (*API, *memUserDirectory, *memSessionDirectory, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	users := newMemUserDirectory()
	sessions := newMemSessionDirectory(clock.Now)

	app := &API{
		log:      zerolog.Nop(),
		users:    users,
		sessions: sessions,
		resolvers: []identityResolver{
			&headerResolver{users: users},
			&cookieResolver{users: users, sessions: sessions, now: clock.Now},
		},
	}
	return app, users, sessions, clock
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(r.Context())
		if !ok {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"user_id": id.UserID, "is_admin": id.IsAdmin})
	})
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Error
}

func TestRequireUserNoCredentials(t *testing.T) {
	app, _, _, _ := newIdentityFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	app.requireUser(identityEcho()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := errorBody(t, rec); got != "No session token provided" {
		t.Fatalf("error = %q", got)
	}
}

func TestRequireUserHeaderResolver(t *testing.T) {
	app, users, _, _ := newIdentityFixture(t)
	user := User{ID: newCUID(), Email: "ana@example.com"}
	users.put(user)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("X-User-Id", user.ID)
	app.requireUser(identityEcho()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), user.ID) {
		t.Fatal("identity should carry the header user id")
	}
}

func TestRequireUserCookieResolver(t *testing.T) {
	app, users, sessions, clock := newIdentityFixture(t)
	user := User{ID: newCUID(), Email: "ana@example.com"}
	users.put(user)

	session, err := sessions.Create(t.Context(), user.ID, sessionTTL)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	cookieNames := append([]string{sessionCookieName}, legacySessionCookies...)
	for _, name := range cookieNames {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
			req.AddCookie(&http.Cookie{Name: name, Value: session.Token})
			app.requireUser(identityEcho()).ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
		})
	}

	t.Run("X-Session-Token header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
		req.Header.Set("X-Session-Token", session.Token)
		app.requireUser(identityEcho()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("expired session", func(t *testing.T) {
		clock.Advance(31 * 24 * time.Hour)
		defer clock.Advance(-31 * 24 * time.Hour)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session.Token})
		app.requireUser(identityEcho()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if got := errorBody(t, rec); got != "Invalid or expired session. Please log in again." {
			t.Fatalf("error = %q", got)
		}
	})
}

func TestRequireUserUnknownToken(t *testing.T) {
	app, _, _, _ := newIdentityFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "bogus"})
	app.requireUser(identityEcho()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := errorBody(t, rec); got != "Invalid or expired session. Please log in again." {
		t.Fatalf("error = %q", got)
	}
}

func TestRequireUserDanglingUser(t *testing.T) {
	app, _, sessions, _ := newIdentityFixture(t)

	session, err := sessions.Create(t.Context(), "deleted-user", sessionTTL)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: session.Token})
	app.requireUser(identityEcho()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := errorBody(t, rec); got != "User not found" {
		t.Fatalf("error = %q", got)
	}
}

func TestRequireAdmin(t *testing.T) {
	app, users, sessions, _ := newIdentityFixture(t)
	admin := User{ID: newCUID(), Email: "admin@example.com", IsAdmin: true}
	regular := User{ID: newCUID(), Email: "user@example.com"}
	users.put(admin)
	users.put(regular)

	adminSession, err := sessions.Create(t.Context(), admin.ID, sessionTTL)
	if err != nil {
		t.Fatalf("create admin session: %v", err)
	}
	userSession, err := sessions.Create(t.Context(), regular.ID, sessionTTL)
	if err != nil {
		t.Fatalf("create user session: %v", err)
	}

	t.Run("admin passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/posts", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: adminSession.Token})
		app.requireAdmin(identityEcho()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("non-admin forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/posts", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: userSession.Token})
		app.requireAdmin(identityEcho()).ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if got := errorBody(t, rec); got != "Admin access required" {
			t.Fatalf("error = %q", got)
		}
	})
}

func TestOptionalIdentity(t *testing.T) {
	app, users, _, _ := newIdentityFixture(t)
	user := User{ID: newCUID(), Email: "ana@example.com"}
	users.put(user)

	anon := httptest.NewRequest(http.MethodGet, "/posts/1", nil)
	if got := app.optionalIdentity(anon); got.UserID != "" {
		t.Fatalf("anonymous viewer id = %q, want empty", got.UserID)
	}

	known := httptest.NewRequest(http.MethodGet, "/posts/1", nil)
	known.Header.Set("X-User-Id", user.ID)
	if got := app.optionalIdentity(known); got.UserID != user.ID {
		t.Fatalf("viewer id = %q, want %q", got.UserID, user.ID)
	}
}
