package api

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type postModel struct {
	ID           int64          `gorm:"type:bigserial;primaryKey"`
	UserID       string         `gorm:"type:text;not null;index"`
	Name         string         `gorm:"type:text;not null"`
	Level        string         `gorm:"type:text;not null"`
	Position     string         `gorm:"type:text;not null"`
	Bio          string         `gorm:"type:text;not null"`
	Platform     *string        `gorm:"type:text"`
	Education    datatypes.JSON `gorm:"type:jsonb"`
	Achievements datatypes.JSON `gorm:"type:jsonb"`
	Images       datatypes.JSON `gorm:"type:jsonb"`
	ProfilePhoto *string        `gorm:"type:text"`
	Party        *string        `gorm:"type:text;index"`
	CityID       *int64         `gorm:"index"`
	DistrictID   *int64         `gorm:"index"`
	BarangayID   *int64         `gorm:"index"`
	Status       string         `gorm:"type:text;not null;default:'pending';index"`
	AdminNotes   *string        `gorm:"type:text"`
	ApprovedAt   *time.Time     `gorm:"type:timestamptz"`
	RejectedAt   *time.Time     `gorm:"type:timestamptz"`
	CreatedAt    time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (postModel) TableName() string { return "posts" }

func (m postModel) toAPI() Post {
	post := Post{
		ID:           m.ID,
		UserID:       m.UserID,
		Name:         m.Name,
		Level:        m.Level,
		Position:     m.Position,
		Bio:          m.Bio,
		Platform:     m.Platform,
		ProfilePhoto: m.ProfilePhoto,
		Party:        m.Party,
		CityID:       m.CityID,
		DistrictID:   m.DistrictID,
		BarangayID:   m.BarangayID,
		Status:       m.Status,
		AdminNotes:   m.AdminNotes,
		ApprovedAt:   m.ApprovedAt,
		RejectedAt:   m.RejectedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}

	// JSON columns written by this service always hold the expected shapes;
	// anything unreadable renders as empty rather than failing the request.
	_ = json.Unmarshal(m.Education, &post.Education)
	_ = json.Unmarshal(m.Achievements, &post.Achievements)
	_ = json.Unmarshal(m.Images, &post.Images)

	return post
}

func toJSONColumn(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
