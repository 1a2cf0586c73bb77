package api

import "time"

type sessionModel struct {
	ID        string    `gorm:"type:text;primaryKey"`
	Token     string    `gorm:"type:text;uniqueIndex;not null"`
	UserID    string    `gorm:"type:text;not null;index"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (sessionModel) TableName() string { return "sessions" }

func (m sessionModel) toAPI() Session {
	return Session{
		ID:        m.ID,
		Token:     m.Token,
		UserID:    m.UserID,
		ExpiresAt: m.ExpiresAt,
	}
}
