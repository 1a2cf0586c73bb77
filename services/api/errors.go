package api

import (
	"errors"
	"fmt"
)

var (
	// ErrOTPNotFound is returned when no code matches the email/code pair.
	ErrOTPNotFound = errors.New("invalid otp code")
	// ErrOTPExpired is returned when a matching code has passed its expiry.
	ErrOTPExpired = errors.New("otp expired")
	// ErrRegistrationDataMissing is returned when the cached name/password
	// payload lapsed before verification completed.
	ErrRegistrationDataMissing = errors.New("registration data missing")

	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrSessionNotFound = errors.New("session not found")

	errInvalidCredentials = errors.New("Invalid credentials")
	errPasswordless       = errors.New("This account was created with Google. Please sign in with Google or set a password first.")
	errAdminRequired      = errors.New("Admin access required")
	errAdminNoPassword    = errors.New("Password not set for this admin account")
	errMailUnavailable    = errors.New("Email service is not configured. Please contact support.")
)

// conflictError carries the provider that already owns an email so the
// response can steer the user to the right sign-in path.
type conflictError struct {
	provider string
}

func (e conflictError) Error() string {
	if e.provider == providerGoogle {
		return "This email is already registered with Google. Please sign in using Google OAuth instead."
	}
	return "Email already registered. Please use login instead."
}

// rateLimitError reports how long the caller must wait before the next OTP.
type rateLimitError struct {
	seconds int
	minutes int
}

func (e rateLimitError) Error() string {
	return fmt.Sprintf("Please wait %d minute(s) before requesting a new OTP.", e.minutes)
}
