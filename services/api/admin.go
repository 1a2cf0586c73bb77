package api

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateAdmin provisions (or promotes) an admin account. An existing user
// with the email is promoted and gets the new password; otherwise a fresh
// verified account is created.
func CreateAdmin(ctx context.Context, orm *gorm.DB, email, name, password string) (User, error) {
	if email == "" || name == "" {
		return User{}, errors.New("email and name are required")
	}
	if len(password) < 8 {
		return User{}, errors.New("password must be at least 8 characters")
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	hash := string(hashBytes)
	now := time.Now().UTC()

	var model userModel
	err = orm.WithContext(ctx).Where("email = ?", email).First(&model).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"is_admin":      true,
			"password_hash": hash,
			"name":          name,
			"updated_at":    now,
		}
		if err := orm.WithContext(ctx).Model(&userModel{}).
			Where("id = ?", model.ID).
			Updates(updates).Error; err != nil {
			return User{}, err
		}
		model.IsAdmin = true
		model.PasswordHash = &hash
		model.Name = name
		model.UpdatedAt = now
		return model.toAPI(), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		model = userModel{
			ID:              newCUID(),
			Email:           email,
			Name:            name,
			PasswordHash:    &hash,
			Provider:        providerCredentials,
			Language:        "en",
			IsAdmin:         true,
			EmailVerifiedAt: &now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := orm.WithContext(ctx).Create(&model).Error; err != nil {
			return User{}, err
		}
		return model.toAPI(), nil
	default:
		return User{}, err
	}
}
