package api

import "time"

type voteModel struct {
	ID          int64     `gorm:"type:bigserial;primaryKey"`
	PostID      int64     `gorm:"not null;uniqueIndex:idx_votes_post_user"`
	UserID      string    `gorm:"type:text;not null;uniqueIndex:idx_votes_post_user"`
	IsAnonymous bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (voteModel) TableName() string { return "votes" }
