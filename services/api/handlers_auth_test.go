package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newHandlerFixture(t *testing.T, debug bool) (*API, *authFixture) {
	t.Helper()
	fx := newAuthFixture(t, debug)
	app := &API{
		config:   Config{Debug: debug},
		log:      zerolog.Nop(),
		auth:     fx.service,
		limiter:  fx.service.limiter,
		users:    fx.users,
		sessions: fx.sessions,
		resolvers: []identityResolver{
			&headerResolver{users: fx.users},
			&cookieResolver{users: fx.users, sessions: fx.sessions, now: fx.clock.Now},
		},
	}
	return app, fx
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler(rec, req)
	return rec
}

func TestHandleSendOTPValidation(t *testing.T) {
	app, _ := newHandlerFixture(t, false)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad email", `{"email":"not-an-email","name":"Ana","password":"password123"}`, "email"},
		{"missing name", `{"email":"ana@example.com","name":"","password":"password123"}`, "name"},
		{"short password", `{"email":"ana@example.com","name":"Ana","password":"short"}`, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, app.handleSendOTP, "/auth/send-otp", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rec.Code)
			}
			var body struct {
				Errors map[string]string `json:"errors"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := body.Errors[tt.field]; !ok {
				t.Fatalf("errors = %v, want %q entry", body.Errors, tt.field)
			}
		})
	}
}

func TestHandleSendOTPSuccess(t *testing.T) {
	app, fx := newHandlerFixture(t, false)

	rec := postJSON(t, app.handleSendOTP, "/auth/send-otp",
		`{"email":"ana@example.com","name":"Ana","password":"password123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		EmailSent bool   `json:"email_sent"`
		OTP       string `json:"otp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.EmailSent {
		t.Fatal("email_sent should be true")
	}
	if body.OTP != "" {
		t.Fatal("otp must not appear in the response when mail succeeds")
	}
	if fx.mail.sentCount() != 1 {
		t.Fatalf("mail sent = %d, want 1", fx.mail.sentCount())
	}
}

func TestHandleSendOTPRateLimitResponse(t *testing.T) {
	app, fx := newHandlerFixture(t, false)
	body := `{"email":"ana@example.com","name":"Ana","password":"password123"}`

	if rec := postJSON(t, app.handleSendOTP, "/auth/send-otp", body); rec.Code != http.StatusOK {
		t.Fatalf("first send status = %d", rec.Code)
	}

	fx.clock.Advance(30 * time.Second)
	rec := postJSON(t, app.handleSendOTP, "/auth/send-otp", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	var resp struct {
		Error           string `json:"error"`
		CooldownSeconds int    `json:"cooldown_seconds"`
		CooldownMinutes int    `json:"cooldown_minutes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CooldownSeconds != 30 || resp.CooldownMinutes != 1 {
		t.Fatalf("cooldown = %ds/%dm, want 30s/1m", resp.CooldownSeconds, resp.CooldownMinutes)
	}
	if resp.Error != "Please wait 1 minute(s) before requesting a new OTP." {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestHandleSendOTPConflict(t *testing.T) {
	app, fx := newHandlerFixture(t, false)
	fx.users.put(User{ID: newCUID(), Email: "ana@example.com", Provider: providerGoogle})

	rec := postJSON(t, app.handleSendOTP, "/auth/send-otp",
		`{"email":"ana@example.com","name":"Ana","password":"password123"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := errorBody(t, rec); got != "This email is already registered with Google. Please sign in using Google OAuth instead." {
		t.Fatalf("error = %q", got)
	}
}

func TestHandleVerifyOTPFlow(t *testing.T) {
	app, fx := newHandlerFixture(t, true)
	fx.mail.err = errors.New("capture code inline")

	rec := postJSON(t, app.handleSendOTP, "/auth/send-otp",
		`{"email":"ana@example.com","name":"Ana","password":"password123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("send status = %d: %s", rec.Code, rec.Body.String())
	}
	var sent struct {
		OTP string `json:"otp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&sent); err != nil {
		t.Fatalf("decode send: %v", err)
	}

	rec = postJSON(t, app.handleVerifyOTP, "/auth/verify-otp",
		`{"email":"ana@example.com","otp":"`+sent.OTP+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("verify status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var verified struct {
		User  User   `json:"user"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&verified); err != nil {
		t.Fatalf("decode verify: %v", err)
	}
	if verified.User.Email != "ana@example.com" {
		t.Fatalf("user email = %q", verified.User.Email)
	}
	if verified.Token == "" {
		t.Fatal("response should carry the session token")
	}

	var sessionCookie *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil || sessionCookie.Value != verified.Token {
		t.Fatal("verify should set the session cookie to the issued token")
	}
}

func TestHandleVerifyOTPBadCode(t *testing.T) {
	app, fx := newHandlerFixture(t, true)
	fx.mail.err = errors.New("capture code inline")

	if rec := postJSON(t, app.handleSendOTP, "/auth/send-otp",
		`{"email":"ana@example.com","name":"Ana","password":"password123"}`); rec.Code != http.StatusOK {
		t.Fatalf("send status = %d", rec.Code)
	}

	rec := postJSON(t, app.handleVerifyOTP, "/auth/verify-otp",
		`{"email":"ana@example.com","otp":"000000"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := errorBody(t, rec); got != "Invalid OTP code" {
		t.Fatalf("error = %q", got)
	}
}

func TestHandleLoginEndpoint(t *testing.T) {
	app, fx := newHandlerFixture(t, true)
	registerVerified(t, fx, "ana@example.com")

	rec := postJSON(t, app.handleLogin, "/login",
		`{"email":"ana@example.com","password":"password123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, app.handleLogin, "/login",
		`{"email":"ana@example.com","password":"wrong-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := errorBody(t, rec); got != "Invalid credentials" {
		t.Fatalf("error = %q", got)
	}
}

func TestHandleVerifyOTPValidation(t *testing.T) {
	app, _ := newHandlerFixture(t, false)

	rec := postJSON(t, app.handleVerifyOTP, "/auth/verify-otp",
		`{"email":"ana@example.com","otp":"123"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHandleSendOTPUnknownField(t *testing.T) {
	app, _ := newHandlerFixture(t, false)

	rec := postJSON(t, app.handleSendOTP, "/auth/send-otp",
		`{"email":"ana@example.com","name":"Ana","password":"password123","extra":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown field", rec.Code)
	}
}
