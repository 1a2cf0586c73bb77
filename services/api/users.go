package api

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// userDirectory is the credential store consulted by the auth flows. It is an
// interface so the registration state machine can be exercised without a
// database.
type userDirectory interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, nu NewUser) (User, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

type gormUserDirectory struct {
	orm *gorm.DB
}

func (d *gormUserDirectory) FindByEmail(ctx context.Context, email string) (User, error) {
	var model userModel
	err := d.orm.WithContext(ctx).Where("email = ?", email).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return model.toAPI(), nil
}

func (d *gormUserDirectory) FindByID(ctx context.Context, id string) (User, error) {
	var model userModel
	err := d.orm.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return model.toAPI(), nil
}

func (d *gormUserDirectory) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	model := userModel{
		ID:           newCUID(),
		Email:        nu.Email,
		Name:         nu.Name,
		PasswordHash: nu.PasswordHash,
		Provider:     nu.Provider,
		ProviderID:   nu.ProviderID,
		Image:        nu.Image,
		Language:     "en",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if nu.EmailVerified {
		model.EmailVerifiedAt = &now
	}

	if err := d.orm.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return model.toAPI(), nil
}

func (d *gormUserDirectory) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return d.orm.WithContext(ctx).Model(&userModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_login_at": at, "updated_at": at}).Error
}

// isUniqueViolation recognises a duplicate-key failure so concurrent inserts
// on the unique email index surface as a conflict, not a 500.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
