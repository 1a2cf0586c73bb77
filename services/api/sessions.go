package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sessionDirectory issues and resolves opaque bearer tokens. Expiry is
// absolute from creation, sessions are never renewed on use.
type sessionDirectory interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (Session, error)
	FindActive(ctx context.Context, token string, now time.Time) (Session, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID string) error
}

type gormSessionDirectory struct {
	orm *gorm.DB
}

func (d *gormSessionDirectory) Create(ctx context.Context, userID string, ttl time.Duration) (Session, error) {
	now := time.Now().UTC()
	model := sessionModel{
		ID:        newCUID(),
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := d.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return Session{}, err
	}
	return model.toAPI(), nil
}

func (d *gormSessionDirectory) FindActive(ctx context.Context, token string, now time.Time) (Session, error) {
	var model sessionModel
	err := d.orm.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, now).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return model.toAPI(), nil
}

func (d *gormSessionDirectory) Revoke(ctx context.Context, token string) error {
	return d.orm.WithContext(ctx).Where("token = ?", token).Delete(&sessionModel{}).Error
}

func (d *gormSessionDirectory) RevokeAll(ctx context.Context, userID string) error {
	return d.orm.WithContext(ctx).Where("user_id = ?", userID).Delete(&sessionModel{}).Error
}
