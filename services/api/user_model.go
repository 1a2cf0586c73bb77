package api

import "time"

type userModel struct {
	ID              string     `gorm:"type:text;primaryKey"`
	Email           string     `gorm:"type:text;uniqueIndex;not null"`
	Name            string     `gorm:"type:text;not null"`
	PasswordHash    *string    `gorm:"type:text"`
	Provider        string     `gorm:"type:text;not null;default:'credentials'"`
	ProviderID      *string    `gorm:"type:text"`
	Image           *string    `gorm:"type:text"`
	Language        string     `gorm:"type:text;not null;default:'en'"`
	IsAdmin         bool       `gorm:"not null;default:false"`
	EmailVerifiedAt *time.Time `gorm:"type:timestamptz"`
	LastLoginAt     *time.Time `gorm:"type:timestamptz"`
	CreatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (userModel) TableName() string { return "users" }

func (m userModel) toAPI() User {
	return User{
		ID:              m.ID,
		Email:           m.Email,
		Name:            m.Name,
		PasswordHash:    m.PasswordHash,
		Provider:        m.Provider,
		Image:           m.Image,
		Language:        m.Language,
		IsAdmin:         m.IsAdmin,
		EmailVerifiedAt: m.EmailVerifiedAt,
		LastLoginAt:     m.LastLoginAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type accountModel struct {
	ID                string    `gorm:"type:text;primaryKey"`
	UserID            string    `gorm:"type:text;not null;index"`
	Type              string    `gorm:"type:text;not null"`
	Provider          string    `gorm:"type:text;not null"`
	ProviderAccountID string    `gorm:"type:text;not null"`
	CreatedAt         time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (accountModel) TableName() string { return "accounts" }
