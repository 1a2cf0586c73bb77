package api

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type partyListModel struct {
	ID          int64          `gorm:"type:bigserial;primaryKey"`
	Name        string         `gorm:"type:text;uniqueIndex;not null"`
	Acronym     *string        `gorm:"type:varchar(50)"`
	Description *string        `gorm:"type:text"`
	Sector      *string        `gorm:"type:varchar(100);index"`
	Platform    datatypes.JSON `gorm:"type:jsonb"`
	LogoURL     *string        `gorm:"type:text"`
	Website     *string        `gorm:"type:text"`
	Email       *string        `gorm:"type:text"`
	SocialMedia datatypes.JSON `gorm:"type:jsonb"`
	Votes       int            `gorm:"not null;default:0"`
	MemberCount int            `gorm:"not null;default:0"`
	IsActive    bool           `gorm:"not null;default:true;index"`
	CreatedAt   time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (partyListModel) TableName() string { return "party_lists" }

func (m partyListModel) toAPI() PartyList {
	list := PartyList{
		ID:          m.ID,
		Name:        m.Name,
		Acronym:     m.Acronym,
		Description: m.Description,
		Sector:      m.Sector,
		LogoURL:     m.LogoURL,
		MemberCount: m.MemberCount,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
	}
	_ = json.Unmarshal(m.Platform, &list.Platform)
	return list
}

type partyListMemberModel struct {
	ID            int64     `gorm:"type:bigserial;primaryKey"`
	PartyListID   int64     `gorm:"not null;index"`
	PostID        int64     `gorm:"not null;index"`
	PositionOrder int       `gorm:"not null;default:0;index"`
	CreatedAt     time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (partyListMemberModel) TableName() string { return "party_list_members" }
