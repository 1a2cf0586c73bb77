package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	service  *authService
	users    *memUserDirectory
	sessions *memSessionDirectory
	mail     *memMailSender
	clock    *fakeClock
}

func newAuthFixture(t *testing.T, debug bool) *authFixture {
	t.Helper()
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	kv := testCache(t)
	users := newMemUserDirectory()
	sessions := newMemSessionDirectory(clock.Now)
	sender := &memMailSender{}

	service := &authService{
		users:    users,
		sessions: sessions,
		otps:     &otpLedger{store: &memOTPStore{}, cache: kv, now: clock.Now},
		limiter:  &otpLimiter{cache: kv, now: clock.Now},
		mail:     sender,
		debug:    debug,
		log:      zerolog.Nop(),
	}
	return &authFixture{service: service, users: users, sessions: sessions, mail: sender, clock: clock}
}

func TestStartRegistrationSendsMail(t *testing.T) {
	fx := newAuthFixture(t, false)

	receipt, err := fx.service.StartRegistration(context.Background(), "ana@example.com", "Ana", "password123")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !receipt.EmailSent {
		t.Fatal("receipt should report mail sent")
	}
	if receipt.OTP != "" {
		t.Fatal("code must not leak into the response when mail succeeds")
	}
	if fx.mail.sentCount() != 1 {
		t.Fatalf("mail sent = %d, want 1", fx.mail.sentCount())
	}
}

func TestStartRegistrationConflictMessages(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		want     string
	}{
		{
			name:     "google account",
			provider: providerGoogle,
			want:     "This email is already registered with Google. Please sign in using Google OAuth instead.",
		},
		{
			name:     "credentials account",
			provider: providerCredentials,
			want:     "Email already registered. Please use login instead.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newAuthFixture(t, false)
			fx.users.put(User{ID: newCUID(), Email: "ana@example.com", Provider: tt.provider})

			_, err := fx.service.StartRegistration(context.Background(), "ana@example.com", "Ana", "password123")
			var conflict conflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("err = %v, want conflictError", err)
			}
			if conflict.Error() != tt.want {
				t.Fatalf("message = %q, want %q", conflict.Error(), tt.want)
			}
		})
	}
}

func TestStartRegistrationRateLimited(t *testing.T) {
	fx := newAuthFixture(t, false)
	ctx := context.Background()

	if _, err := fx.service.StartRegistration(ctx, "ana@example.com", "Ana", "password123"); err != nil {
		t.Fatalf("first start: %v", err)
	}

	fx.clock.Advance(30 * time.Second)
	_, err := fx.service.StartRegistration(ctx, "ana@example.com", "Ana", "password123")
	var limited rateLimitError
	if !errors.As(err, &limited) {
		t.Fatalf("err = %v, want rateLimitError", err)
	}
	if limited.seconds != 30 || limited.minutes != 1 {
		t.Fatalf("cooldown = %ds/%dm, want 30s/1m", limited.seconds, limited.minutes)
	}
}

func TestStartRegistrationMailFailure(t *testing.T) {
	t.Run("production returns dependency error", func(t *testing.T) {
		fx := newAuthFixture(t, false)
		fx.mail.err = errors.New("smtp down")

		_, err := fx.service.StartRegistration(context.Background(), "ana@example.com", "Ana", "password123")
		if !errors.Is(err, errMailUnavailable) {
			t.Fatalf("err = %v, want errMailUnavailable", err)
		}
	})

	t.Run("debug falls back to inline code", func(t *testing.T) {
		fx := newAuthFixture(t, true)
		fx.mail.err = errors.New("smtp down")

		receipt, err := fx.service.StartRegistration(context.Background(), "ana@example.com", "Ana", "password123")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if receipt.EmailSent {
			t.Fatal("receipt should report mail failure")
		}
		if len(receipt.OTP) != 6 {
			t.Fatalf("inline code %q is not 6 digits", receipt.OTP)
		}
		if receipt.Warning == "" {
			t.Fatal("inline fallback should carry a warning")
		}
	})
}

func registerVerified(t *testing.T, fx *authFixture, email string) (User, Session) {
	t.Helper()
	fx.service.debug = true
	fx.mail.err = errors.New("capture code inline")
	receipt, err := fx.service.StartRegistration(context.Background(), email, "Ana", "password123")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	user, session, err := fx.service.CompleteRegistration(context.Background(), email, receipt.OTP)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return user, session
}

func TestCompleteRegistrationCreatesVerifiedUser(t *testing.T) {
	fx := newAuthFixture(t, true)

	user, session := registerVerified(t, fx, "ana@example.com")
	if user.Provider != providerCredentials {
		t.Fatalf("provider = %q, want %q", user.Provider, providerCredentials)
	}
	if user.EmailVerifiedAt == nil {
		t.Fatal("user should be email verified")
	}
	if user.PasswordHash == nil {
		t.Fatal("user should carry a password hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte("password123")); err != nil {
		t.Fatalf("stored hash does not match the password: %v", err)
	}
	if session.UserID != user.ID {
		t.Fatal("session should belong to the new user")
	}
	if got := session.ExpiresAt.Sub(fx.clock.Now()); got != sessionTTL {
		t.Fatalf("session ttl = %v, want %v", got, sessionTTL)
	}
}

func TestCompleteRegistrationResetsLimiter(t *testing.T) {
	fx := newAuthFixture(t, true)

	registerVerified(t, fx, "ana@example.com")

	decision, err := fx.service.limiter.Check(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("limiter check: %v", err)
	}
	if !decision.Allowed || decision.Attempt != 1 {
		t.Fatalf("limiter should start fresh after registration, got %+v", decision)
	}
}

func TestCompleteRegistrationRace(t *testing.T) {
	fx := newAuthFixture(t, true)
	fx.mail.err = errors.New("capture code inline")
	ctx := context.Background()

	receipt, err := fx.service.StartRegistration(ctx, "ana@example.com", "Ana", "password123")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Another channel claims the email before verification.
	fx.users.put(User{ID: newCUID(), Email: "ana@example.com", Provider: providerGoogle})

	_, _, err = fx.service.CompleteRegistration(ctx, "ana@example.com", receipt.OTP)
	var conflict conflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want conflictError", err)
	}
	if conflict.provider != providerGoogle {
		t.Fatalf("conflict provider = %q, want %q", conflict.provider, providerGoogle)
	}
}

func TestLogin(t *testing.T) {
	fx := newAuthFixture(t, true)
	user, _ := registerVerified(t, fx, "ana@example.com")

	t.Run("valid credentials", func(t *testing.T) {
		got, session, err := fx.service.Login(context.Background(), "ana@example.com", "password123")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if got.ID != user.ID {
			t.Fatal("login should return the registered user")
		}
		if got.LastLoginAt == nil {
			t.Fatal("login should stamp last login")
		}
		if session.Token == "" {
			t.Fatal("login should open a session")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := fx.service.Login(context.Background(), "ana@example.com", "wrong-password")
		if !errors.Is(err, errInvalidCredentials) {
			t.Fatalf("err = %v, want errInvalidCredentials", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := fx.service.Login(context.Background(), "nobody@example.com", "password123")
		if !errors.Is(err, errInvalidCredentials) {
			t.Fatalf("err = %v, want errInvalidCredentials", err)
		}
	})

	t.Run("passwordless account", func(t *testing.T) {
		fx.users.put(User{ID: newCUID(), Email: "oauth@example.com", Provider: providerGoogle})
		_, _, err := fx.service.Login(context.Background(), "oauth@example.com", "password123")
		if !errors.Is(err, errPasswordless) {
			t.Fatalf("err = %v, want errPasswordless", err)
		}
	})
}

func TestAdminLogin(t *testing.T) {
	fx := newAuthFixture(t, true)
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-password"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	hashStr := string(hash)
	fx.users.put(User{ID: newCUID(), Email: "admin@example.com", Provider: providerCredentials, PasswordHash: &hashStr, IsAdmin: true})
	userHash := hashStr
	fx.users.put(User{ID: newCUID(), Email: "user@example.com", Provider: providerCredentials, PasswordHash: &userHash})

	t.Run("admin succeeds", func(t *testing.T) {
		user, _, err := fx.service.AdminLogin(context.Background(), "admin@example.com", "admin-password")
		if err != nil {
			t.Fatalf("admin login: %v", err)
		}
		if !user.IsAdmin {
			t.Fatal("returned user should be admin")
		}
	})

	t.Run("non-admin rejected", func(t *testing.T) {
		_, _, err := fx.service.AdminLogin(context.Background(), "user@example.com", "admin-password")
		if !errors.Is(err, errAdminRequired) {
			t.Fatalf("err = %v, want errAdminRequired", err)
		}
	})
}

func TestLogoutRevokesSession(t *testing.T) {
	fx := newAuthFixture(t, true)
	_, session := registerVerified(t, fx, "ana@example.com")
	ctx := context.Background()

	if err := fx.service.Logout(ctx, session.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := fx.sessions.FindActive(ctx, session.Token, fx.clock.Now()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionAbsoluteExpiry(t *testing.T) {
	fx := newAuthFixture(t, true)
	_, session := registerVerified(t, fx, "ana@example.com")
	ctx := context.Background()

	fx.clock.Advance(29 * 24 * time.Hour)
	if _, err := fx.sessions.FindActive(ctx, session.Token, fx.clock.Now()); err != nil {
		t.Fatalf("session should still be active: %v", err)
	}

	fx.clock.Advance(2 * 24 * time.Hour)
	if _, err := fx.sessions.FindActive(ctx, session.Token, fx.clock.Now()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound after expiry", err)
	}
}
