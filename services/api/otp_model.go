package api

import "time"

type otpModel struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	Email     string    `gorm:"type:text;not null;index"`
	Code      string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (otpModel) TableName() string { return "otps" }
