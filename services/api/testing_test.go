package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"bayanihan/pkg/cache"
)

// testCache backs the KV-dependent components with miniredis.
func testCache(t *testing.T) cache.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

// fakeClock is a settable time source for limiter and ledger tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memOTPStore is an in-memory otpStore.
type memOTPStore struct {
	mu     sync.Mutex
	nextID int64
	rows   []otpRecord
}

func (s *memOTPStore) Replace(ctx context.Context, email, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	for _, row := range s.rows {
		if row.Email != email {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	s.nextID++
	s.rows = append(s.rows, otpRecord{ID: s.nextID, Email: email, Code: code, ExpiresAt: expiresAt})
	return nil
}

func (s *memOTPStore) Find(ctx context.Context, email, code string) (otpRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.Email == email && row.Code == code {
			return row, nil
		}
	}
	return otpRecord{}, ErrOTPNotFound
}

func (s *memOTPStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	for _, row := range s.rows {
		if row.ID != id {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

func (s *memOTPStore) DeleteExpired(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	for _, row := range s.rows {
		if row.ExpiresAt.After(now) {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

func (s *memOTPStore) count(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.Email == email {
			n++
		}
	}
	return n
}

// memUserDirectory is an in-memory userDirectory.
type memUserDirectory struct {
	mu    sync.Mutex
	users map[string]User
}

func newMemUserDirectory() *memUserDirectory {
	return &memUserDirectory{users: map[string]User{}}
}

func (d *memUserDirectory) FindByEmail(ctx context.Context, email string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (d *memUserDirectory) FindByID(ctx context.Context, id string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (d *memUserDirectory) Create(ctx context.Context, nu NewUser) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if user.Email == nu.Email {
			return User{}, ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	user := User{
		ID:           newCUID(),
		Email:        nu.Email,
		Name:         nu.Name,
		PasswordHash: nu.PasswordHash,
		Provider:     nu.Provider,
		Image:        nu.Image,
		Language:     "en",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if nu.EmailVerified {
		user.EmailVerifiedAt = &now
	}
	d.users[user.ID] = user
	return user, nil
}

func (d *memUserDirectory) RecordLogin(ctx context.Context, id string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.LastLoginAt = &at
	d.users[id] = user
	return nil
}

func (d *memUserDirectory) put(user User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

// memSessionDirectory is an in-memory sessionDirectory.
type memSessionDirectory struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func newMemSessionDirectory(now func() time.Time) *memSessionDirectory {
	return &memSessionDirectory{sessions: map[string]Session{}, now: now}
}

func (d *memSessionDirectory) Create(ctx context.Context, userID string, ttl time.Duration) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	session := Session{
		ID:        newCUID(),
		Token:     newCUID(),
		UserID:    userID,
		ExpiresAt: d.now().Add(ttl),
	}
	d.sessions[session.Token] = session
	return session, nil
}

func (d *memSessionDirectory) FindActive(ctx context.Context, token string, now time.Time) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	session, ok := d.sessions[token]
	if !ok || !session.ExpiresAt.After(now) {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (d *memSessionDirectory) Revoke(ctx context.Context, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, token)
	return nil
}

func (d *memSessionDirectory) RevokeAll(ctx context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for token, session := range d.sessions {
		if session.UserID == userID {
			delete(d.sessions, token)
		}
	}
	return nil
}

// memMailSender records sent mail and can be told to fail.
type memMailSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *memMailSender) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func (m *memMailSender) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
