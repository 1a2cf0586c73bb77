package api

import "time"

type commentModel struct {
	ID          int64     `gorm:"type:bigserial;primaryKey"`
	PostID      int64     `gorm:"not null;index"`
	ParentID    *int64    `gorm:"index"`
	UserID      string    `gorm:"type:text;not null;index"`
	Content     string    `gorm:"type:text;not null"`
	IsAnonymous bool      `gorm:"not null;default:false"`
	LikesCount  int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (commentModel) TableName() string { return "comments" }

type commentLikeModel struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	CommentID int64     `gorm:"not null;uniqueIndex:idx_comment_likes_comment_user"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex:idx_comment_likes_comment_user"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (commentLikeModel) TableName() string { return "comment_likes" }
