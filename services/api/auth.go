package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"bayanihan/pkg/mail"
)

// authService orchestrates registration, login, and session lifecycle over
// the credential store, OTP ledger, limiter, and mail sender.
type authService struct {
	users    userDirectory
	sessions sessionDirectory
	otps     *otpLedger
	limiter  *otpLimiter
	mail     mail.Sender
	debug    bool
	log      zerolog.Logger
}

// registrationReceipt reports how the OTP reached (or failed to reach) the
// user. OTP and Warning are populated only on the debug-mode inline fallback.
type registrationReceipt struct {
	EmailSent bool
	OTP       string
	Warning   string
}

// StartRegistration validates availability, passes the limiter gate, issues a
// code, and dispatches it by mail. The password is hashed before it is cached
// so plaintext never reaches the KV store.
func (s *authService) StartRegistration(ctx context.Context, email, name, password string) (registrationReceipt, error) {
	if existing, err := s.users.FindByEmail(ctx, email); err == nil {
		return registrationReceipt{}, conflictError{provider: existing.Provider}
	} else if !errors.Is(err, ErrUserNotFound) {
		return registrationReceipt{}, err
	}

	decision, err := s.limiter.Check(ctx, email)
	if err != nil {
		return registrationReceipt{}, err
	}
	if !decision.Allowed {
		return registrationReceipt{}, rateLimitError{
			seconds: decision.WaitSeconds,
			minutes: decision.WaitMinutes,
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return registrationReceipt{}, err
	}

	code, err := s.otps.Issue(ctx, email, name, string(hash))
	if err != nil {
		return registrationReceipt{}, err
	}

	if err := s.sendOTP(ctx, email, name, code); err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("otp mail delivery failed")
		if !s.debug {
			return registrationReceipt{}, errMailUnavailable
		}
		return registrationReceipt{
			OTP:     code,
			Warning: "Email delivery failed. Use the code below to continue.",
		}, nil
	}
	return registrationReceipt{EmailSent: true}, nil
}

// CompleteRegistration consumes a verified code, admits the user, clears the
// limiter history, and opens their first session.
func (s *authService) CompleteRegistration(ctx context.Context, email, code string) (User, Session, error) {
	pending, err := s.otps.Verify(ctx, email, code)
	if err != nil {
		return User{}, Session{}, err
	}

	// Someone may have claimed the email between issuance and verification.
	if existing, err := s.users.FindByEmail(ctx, email); err == nil {
		return User{}, Session{}, conflictError{provider: existing.Provider}
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, Session{}, err
	}

	hash := pending.Password
	user, err := s.users.Create(ctx, NewUser{
		Name:          pending.Name,
		Email:         email,
		PasswordHash:  &hash,
		Provider:      providerCredentials,
		EmailVerified: true,
	})
	if errors.Is(err, ErrEmailTaken) {
		if existing, ferr := s.users.FindByEmail(ctx, email); ferr == nil {
			return User{}, Session{}, conflictError{provider: existing.Provider}
		}
		return User{}, Session{}, conflictError{provider: providerCredentials}
	}
	if err != nil {
		return User{}, Session{}, err
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("otp limiter reset failed")
	}

	session, err := s.sessions.Create(ctx, user.ID, sessionTTL)
	if err != nil {
		return User{}, Session{}, err
	}
	return user, session, nil
}

// Login authenticates a credentials-provider user and opens a session.
func (s *authService) Login(ctx context.Context, email, password string) (User, Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, Session{}, errInvalidCredentials
	}
	if err != nil {
		return User{}, Session{}, err
	}
	if user.PasswordHash == nil {
		return User{}, Session{}, errPasswordless
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return User{}, Session{}, errInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return User{}, Session{}, err
	}
	user.LastLoginAt = &now

	session, err := s.sessions.Create(ctx, user.ID, sessionTTL)
	if err != nil {
		return User{}, Session{}, err
	}
	return user, session, nil
}

// AdminLogin is Login with an admin gate. The gate runs before the password
// check so ordinary accounts learn nothing about admin credentials.
func (s *authService) AdminLogin(ctx context.Context, email, password string) (User, Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, Session{}, errInvalidCredentials
	}
	if err != nil {
		return User{}, Session{}, err
	}
	if !user.IsAdmin {
		return User{}, Session{}, errAdminRequired
	}
	if user.PasswordHash == nil {
		return User{}, Session{}, errAdminNoPassword
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return User{}, Session{}, errInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return User{}, Session{}, err
	}
	user.LastLoginAt = &now

	session, err := s.sessions.Create(ctx, user.ID, sessionTTL)
	if err != nil {
		return User{}, Session{}, err
	}
	return user, session, nil
}

// Logout revokes the presented token. Revoking an unknown token is a no-op.
func (s *authService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

func (s *authService) sendOTP(ctx context.Context, email, name, code string) error {
	if s.mail == nil {
		return mail.ErrNotConfigured
	}
	subject := "Your Bayanihan Vote verification code"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour verification code is %s. It expires in 5 minutes.\n\nIf you did not request this, you can ignore this email.\n",
		name, code,
	)
	return s.mail.Send(ctx, email, subject, body)
}
