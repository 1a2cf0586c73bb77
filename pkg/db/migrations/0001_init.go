package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type User struct {
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

type Account struct {
	ID                string    `gorm:"type:text;primaryKey"`
	UserID            string    `gorm:"type:text;not null;index"`
	Type              string    `gorm:"type:text;not null"`
	Provider          string    `gorm:"type:text;not null;uniqueIndex:idx_accounts_provider_account"`
	ProviderAccountID string    `gorm:"type:text;not null;uniqueIndex:idx_accounts_provider_account"`
	CreatedAt         time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	User              User      `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

type Session struct {
	ID        string    `gorm:"type:text;primaryKey"`
	Token     string    `gorm:"type:text;uniqueIndex;not null"`
	UserID    string    `gorm:"type:text;not null;index"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	User      User      `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

type OTP struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	Email     string    `gorm:"type:text;not null;index"`
	Code      string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type Region struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	Code      string    `gorm:"type:varchar(20);uniqueIndex;not null"`
	Name      string    `gorm:"type:text;not null"`
	PSGCCode  *string   `gorm:"type:varchar(20)"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type Province struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	RegionID  int64     `gorm:"not null;index"`
	Name      string    `gorm:"type:text;not null"`
	PSGCCode  *string   `gorm:"type:varchar(20)"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Region    Region    `gorm:"foreignKey:RegionID;references:ID;constraint:OnDelete:CASCADE"`
}

type City struct {
	ID           int64     `gorm:"type:bigserial;primaryKey"`
	RegionID     int64     `gorm:"not null;index"`
	ProvinceID   *int64    `gorm:"index"`
	ParentCityID *int64    `gorm:"index"`
	Name         string    `gorm:"type:text;not null"`
	Type         string    `gorm:"type:text;not null;default:'city'"`
	IsDistrict   bool      `gorm:"not null;default:false;index"`
	PSGCCode     *string   `gorm:"type:varchar(20);index"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Region       Region    `gorm:"foreignKey:RegionID;references:ID;constraint:OnDelete:CASCADE"`
	Province     *Province `gorm:"foreignKey:ProvinceID;references:ID;constraint:OnDelete:CASCADE"`
}

type Barangay struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	CityID    int64     `gorm:"not null;index"`
	Name      string    `gorm:"type:text;not null"`
	PSGCCode  *string   `gorm:"type:varchar(20);index"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	City      City      `gorm:"foreignKey:CityID;references:ID;constraint:OnDelete:CASCADE"`
}

type Post struct {
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
	CreatedAt    time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime;index"`
	UpdatedAt    time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	User         User           `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

type Comment struct {
	ID          int64     `gorm:"type:bigserial;primaryKey"`
	PostID      int64     `gorm:"not null;index"`
	ParentID    *int64    `gorm:"index"`
	UserID      string    `gorm:"type:text;not null;index"`
	Content     string    `gorm:"type:text;not null"`
	IsAnonymous bool      `gorm:"not null;default:false"`
	LikesCount  int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Post        Post      `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE"`
	User        User      `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

type CommentLike struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	CommentID int64     `gorm:"not null;uniqueIndex:idx_comment_likes_comment_user"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex:idx_comment_likes_comment_user"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Comment   Comment   `gorm:"foreignKey:CommentID;references:ID;constraint:OnDelete:CASCADE"`
	User      User      `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

type Vote struct {
	ID          int64     `gorm:"type:bigserial;primaryKey"`
	PostID      int64     `gorm:"not null;uniqueIndex:idx_votes_post_user"`
	UserID      string    `gorm:"type:text;not null;uniqueIndex:idx_votes_post_user"`
	IsAnonymous bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Post        Post      `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE"`
	User        User      `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

type PartyList struct {
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

type PartyListMember struct {
	ID            int64     `gorm:"type:bigserial;primaryKey"`
	PartyListID   int64     `gorm:"not null;index"`
	PostID        int64     `gorm:"not null;index"`
	PositionOrder int       `gorm:"not null;default:0;index"`
	CreatedAt     time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	PartyList     PartyList `gorm:"foreignKey:PartyListID;references:ID;constraint:OnDelete:CASCADE"`
	Post          Post      `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE"`
}

func openTx(ctx context.Context, tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(ctx, tx)
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&User{},
		&Account{},
		&Session{},
		&OTP{},
		&Region{},
		&Province{},
		&City{},
		&Barangay{},
		&Post{},
		&Comment{},
		&CommentLike{},
		&Vote{},
		&PartyList{},
		&PartyListMember{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	for _, c := range []struct {
		model any
		name  string
	}{
		{&Account{}, "User"},
		{&Session{}, "User"},
		{&Province{}, "Region"},
		{&City{}, "Region"},
		{&City{}, "Province"},
		{&Barangay{}, "City"},
		{&Post{}, "User"},
		{&Comment{}, "Post"},
		{&Comment{}, "User"},
		{&CommentLike{}, "Comment"},
		{&CommentLike{}, "User"},
		{&Vote{}, "Post"},
		{&Vote{}, "User"},
		{&PartyListMember{}, "PartyList"},
		{&PartyListMember{}, "Post"},
	} {
		if err := m.CreateConstraint(c.model, c.name); err != nil {
			return err
		}
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(ctx, tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&PartyListMember{},
		&PartyList{},
		&Vote{},
		&CommentLike{},
		&Comment{},
		&Post{},
		&Barangay{},
		&City{},
		&Province{},
		&Region{},
		&OTP{},
		&Session{},
		&Account{},
		&User{},
	)
}
