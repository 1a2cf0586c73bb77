package api

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"
)

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleSendOTP starts registration: issues a code and mails it.
func (a *API) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	errs := map[string]string{}
	if !validEmail(req.Email) {
		errs["email"] = "A valid email address is required."
	}
	if req.Name == "" || len(req.Name) > 255 {
		errs["name"] = "Name is required and may not exceed 255 characters."
	}
	if len(req.Password) < 8 {
		errs["password"] = "Password must be at least 8 characters."
	}
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	receipt, err := a.auth.StartRegistration(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		var conflict conflictError
		var limited rateLimitError
		switch {
		case errors.As(err, &conflict):
			respondError(w, http.StatusBadRequest, conflict)
		case errors.As(err, &limited):
			respondJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":            limited.Error(),
				"cooldown_seconds": limited.seconds,
				"cooldown_minutes": limited.minutes,
			})
		case errors.Is(err, errMailUnavailable):
			respondError(w, http.StatusInternalServerError, errMailUnavailable)
		default:
			a.log.Error().Err(err).Msg("send otp failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to send OTP"))
		}
		return
	}

	if !receipt.EmailSent {
		respondJSON(w, http.StatusOK, map[string]any{
			"message":    "OTP generated.",
			"otp":        receipt.OTP,
			"warning":    receipt.Warning,
			"email_sent": false,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "OTP sent to your email.",
		"email_sent": true,
	})
}

// handleVerifyOTP completes registration and opens the first session.
func (a *API) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	errs := map[string]string{}
	if !validEmail(req.Email) {
		errs["email"] = "A valid email address is required."
	}
	if len(req.OTP) != 6 {
		errs["otp"] = "The OTP must be 6 digits."
	}
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, session, err := a.auth.CompleteRegistration(ctx, req.Email, req.OTP)
	if err != nil {
		var conflict conflictError
		switch {
		case errors.As(err, &conflict):
			respondError(w, http.StatusBadRequest, conflict)
		case errors.Is(err, ErrOTPNotFound):
			respondError(w, http.StatusBadRequest, errors.New("Invalid OTP code"))
		case errors.Is(err, ErrOTPExpired):
			respondError(w, http.StatusBadRequest, errors.New("OTP has expired. Please request a new one."))
		case errors.Is(err, ErrRegistrationDataMissing):
			respondError(w, http.StatusBadRequest, errors.New("Registration data expired. Please start over."))
		default:
			a.log.Error().Err(err).Msg("verify otp failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to verify OTP"))
		}
		return
	}

	a.publishJSON(r.Context(), userRegisteredTopic, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})

	setSessionCookie(w, session.Token, session.ExpiresAt)
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful.",
		"user":    user,
		"token":   session.Token,
	})
}

// handleLogin authenticates a credentials user.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	user, session, ok := a.handleCredentialLogin(w, r, a.auth.Login)
	if !ok {
		return
	}
	setSessionCookie(w, session.Token, session.ExpiresAt)
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful.",
		"user":    user,
		"token":   session.Token,
	})
}

// handleAdminLogin authenticates an admin account.
func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	user, session, ok := a.handleCredentialLogin(w, r, a.auth.AdminLogin)
	if !ok {
		return
	}
	setSessionCookie(w, session.Token, session.ExpiresAt)
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful.",
		"user":    user,
		"token":   session.Token,
	})
}

type loginFunc func(ctx context.Context, email, password string) (User, Session, error)

// handleCredentialLogin shares decode, validation, and error mapping between
// the user and admin login endpoints.
func (a *API) handleCredentialLogin(w http.ResponseWriter, r *http.Request, login loginFunc) (User, Session, bool) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return User{}, Session{}, false
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	errs := map[string]string{}
	if !validEmail(req.Email) {
		errs["email"] = "A valid email address is required."
	}
	if req.Password == "" {
		errs["password"] = "Password is required."
	}
	if len(errs) > 0 {
		respondValidation(w, errs)
		return User{}, Session{}, false
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, session, err := login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidCredentials), errors.Is(err, errPasswordless), errors.Is(err, errAdminNoPassword):
			respondError(w, http.StatusUnauthorized, err)
		case errors.Is(err, errAdminRequired):
			respondError(w, http.StatusForbidden, err)
		default:
			a.log.Error().Err(err).Msg("login failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to log in"))
		}
		return User{}, Session{}, false
	}
	return user, session, true
}

// handleGoogleSignIn upserts a Google-provider user and opens a session.
func (a *API) handleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string  `json:"email"`
		Name     string  `json:"name"`
		GoogleID string  `json:"google_id"`
		Image    *string `json:"image"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	errs := map[string]string{}
	if !validEmail(req.Email) {
		errs["email"] = "A valid email address is required."
	}
	if req.Name == "" {
		errs["name"] = "Name is required."
	}
	if req.GoogleID == "" {
		errs["google_id"] = "Google account id is required."
	}
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	user, err := a.users.FindByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user, err = a.users.Create(ctx, NewUser{
			Name:          req.Name,
			Email:         req.Email,
			Provider:      providerGoogle,
			ProviderID:    &req.GoogleID,
			Image:         req.Image,
			EmailVerified: true,
		})
		if err != nil {
			a.log.Error().Err(err).Msg("google sign-in create failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to sign in"))
			return
		}
	case err != nil:
		a.log.Error().Err(err).Msg("google sign-in lookup failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to sign in"))
		return
	}

	if err := a.ensureGoogleAccount(ctx, user.ID, req.GoogleID); err != nil {
		a.log.Error().Err(err).Msg("google account link failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to sign in"))
		return
	}
	if err := a.users.RecordLogin(ctx, user.ID, now); err != nil {
		a.log.Error().Err(err).Msg("google sign-in stamp failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to sign in"))
		return
	}
	user.LastLoginAt = &now

	session, err := a.sessions.Create(ctx, user.ID, sessionTTL)
	if err != nil {
		a.log.Error().Err(err).Msg("google sign-in session failed")
		respondError(w, http.StatusInternalServerError, errors.New("failed to sign in"))
		return
	}

	setSessionCookie(w, session.Token, session.ExpiresAt)
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful.",
		"user":    user,
		"token":   session.Token,
	})
}

// ensureGoogleAccount links the oauth account row when it is missing.
func (a *API) ensureGoogleAccount(ctx context.Context, userID, googleID string) error {
	var count int64
	err := a.store.ORM.WithContext(ctx).Model(&accountModel{}).
		Where("provider = ? AND provider_account_id = ?", providerGoogle, googleID).
		Count(&count).Error
	if err != nil || count > 0 {
		return err
	}
	return a.store.ORM.WithContext(ctx).Create(&accountModel{
		ID:                newCUID(),
		UserID:            userID,
		Type:              "oauth",
		Provider:          providerGoogle,
		ProviderAccountID: googleID,
	}).Error
}

// handleLogout revokes the caller's session token.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromRequest(r)
	if token != "" {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		if err := a.auth.Logout(ctx, token); err != nil {
			a.log.Error().Err(err).Msg("logout failed")
			respondError(w, http.StatusInternalServerError, errors.New("failed to log out"))
			return
		}
	}
	clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]any{"message": "Logged out."})
}
