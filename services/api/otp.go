package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"bayanihan/pkg/cache"
)

// otpStore persists verification codes. Replace atomically swaps any codes
// already issued for the email with the new one, so at most one code per
// email is live at a time.
type otpStore interface {
	Replace(ctx context.Context, email, code string, expiresAt time.Time) error
	Find(ctx context.Context, email, code string) (otpRecord, error)
	Delete(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context, now time.Time) error
}

type otpRecord struct {
	ID        int64
	Email     string
	Code      string
	ExpiresAt time.Time
}

type gormOTPStore struct {
	orm *gorm.DB
}

func (s *gormOTPStore) Replace(ctx context.Context, email, code string, expiresAt time.Time) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", email).Delete(&otpModel{}).Error; err != nil {
			return err
		}
		return tx.Create(&otpModel{
			Email:     email,
			Code:      code,
			ExpiresAt: expiresAt,
		}).Error
	})
}

func (s *gormOTPStore) Find(ctx context.Context, email, code string) (otpRecord, error) {
	var model otpModel
	err := s.orm.WithContext(ctx).
		Where("email = ? AND code = ?", email, code).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return otpRecord{}, ErrOTPNotFound
	}
	if err != nil {
		return otpRecord{}, err
	}
	return otpRecord{
		ID:        model.ID,
		Email:     model.Email,
		Code:      model.Code,
		ExpiresAt: model.ExpiresAt,
	}, nil
}

func (s *gormOTPStore) Delete(ctx context.Context, id int64) error {
	return s.orm.WithContext(ctx).Delete(&otpModel{}, id).Error
}

func (s *gormOTPStore) DeleteExpired(ctx context.Context, now time.Time) error {
	return s.orm.WithContext(ctx).Where("expires_at < ?", now).Delete(&otpModel{}).Error
}

// otpLedger pairs the persisted codes with the cached registration payload
// that rides alongside them until verification.
type otpLedger struct {
	store otpStore
	cache cache.Store
	now   func() time.Time
}

func otpDataKey(email string) string { return "otp_data_" + email }

// Issue mints a fresh six-digit code for the email, replacing any earlier one,
// and caches the pending name/password for the verification step. Expired
// codes across all emails are swept opportunistically on the way in.
func (l *otpLedger) Issue(ctx context.Context, email, name, password string) (string, error) {
	now := l.now().UTC()
	if err := l.store.DeleteExpired(ctx, now); err != nil {
		return "", fmt.Errorf("sweep expired otps: %w", err)
	}

	code, err := generateOTPCode()
	if err != nil {
		return "", err
	}
	if err := l.store.Replace(ctx, email, code, now.Add(otpTTL)); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	payload, err := json.Marshal(pendingRegistration{Name: name, Password: password})
	if err != nil {
		return "", err
	}
	if err := l.cache.Put(ctx, otpDataKey(email), string(payload), otpTTL); err != nil {
		return "", fmt.Errorf("cache registration data: %w", err)
	}
	return code, nil
}

// Verify checks the code for the email and, on success, consumes it and
// returns the cached registration payload. A matching but stale code is
// reported as expired, not invalid.
func (l *otpLedger) Verify(ctx context.Context, email, code string) (pendingRegistration, error) {
	rec, err := l.store.Find(ctx, email, code)
	if err != nil {
		return pendingRegistration{}, err
	}
	if !rec.ExpiresAt.After(l.now().UTC()) {
		if err := l.store.Delete(ctx, rec.ID); err != nil {
			return pendingRegistration{}, err
		}
		return pendingRegistration{}, ErrOTPExpired
	}

	raw, err := l.cache.Get(ctx, otpDataKey(email))
	if errors.Is(err, cache.ErrMiss) {
		return pendingRegistration{}, ErrRegistrationDataMissing
	}
	if err != nil {
		return pendingRegistration{}, err
	}
	var pending pendingRegistration
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return pendingRegistration{}, ErrRegistrationDataMissing
	}

	if err := l.store.Delete(ctx, rec.ID); err != nil {
		return pendingRegistration{}, err
	}
	if err := l.cache.Forget(ctx, otpDataKey(email)); err != nil {
		return pendingRegistration{}, err
	}
	return pending, nil
}

// generateOTPCode draws a uniform six-digit code, zero padded.
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
