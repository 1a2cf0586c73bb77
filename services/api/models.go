package api

import "time"

const (
	providerCredentials = "credentials"
	providerGoogle      = "google"
)

// Post moderation states.
const (
	statusPending  = "pending"
	statusApproved = "approved"
	statusRejected = "rejected"
)

// User is the public identity record. The password hash never leaves the
// storage layer in responses.
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	PasswordHash    *string    `json:"-"`
	Provider        string     `json:"provider"`
	Image           *string    `json:"image"`
	Language        string     `json:"language"`
	IsAdmin         bool       `json:"is_admin"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	LastLoginAt     *time.Time `json:"last_login_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewUser carries the fields needed to admit a user into the credential store.
type NewUser struct {
	Name          string
	Email         string
	PasswordHash  *string
	Provider      string
	ProviderID    *string
	Image         *string
	EmailVerified bool
}

// Session binds an opaque bearer token to a user until an absolute expiry.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// pendingRegistration is the cached name/password payload held between OTP
// issuance and verification.
type pendingRegistration struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// EducationEntry is one row of a candidate's schooling history.
type EducationEntry struct {
	Level  string `json:"level"`
	School string `json:"school"`
}

// PostImage is a gallery entry on a candidate profile.
type PostImage struct {
	URL     *string `json:"url"`
	Caption string  `json:"caption"`
}

// Post is a candidate profile submitted for moderation.
type Post struct {
	ID           int64            `json:"id"`
	UserID       string           `json:"user_id"`
	Name         string           `json:"name"`
	Level        string           `json:"level"`
	Position     string           `json:"position"`
	Bio          string           `json:"bio"`
	Platform     *string          `json:"platform"`
	Education    []EducationEntry `json:"education"`
	Achievements []string         `json:"achievements"`
	Images       []PostImage      `json:"images"`
	ProfilePhoto *string          `json:"profile_photo"`
	Party        *string          `json:"party"`
	CityID       *int64           `json:"city_id"`
	DistrictID   *int64           `json:"district_id"`
	BarangayID   *int64           `json:"barangay_id"`
	Status       string           `json:"status"`
	AdminNotes   *string          `json:"admin_notes"`
	ApprovedAt   *time.Time       `json:"approved_at"`
	RejectedAt   *time.Time       `json:"rejected_at"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// PostAuthor is the trimmed author payload embedded in post listings.
type PostAuthor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CommentNode is a comment formatted for display, replies nested.
type CommentNode struct {
	ID           int64          `json:"id"`
	PostID       int64          `json:"post_id"`
	ParentID     *int64         `json:"parent_id"`
	UserID       string         `json:"user_id"`
	UserName     string         `json:"user_name"`
	Content      string         `json:"content"`
	IsAnonymous  bool           `json:"is_anonymous"`
	LikesCount   int            `json:"likes_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UserHasLiked bool           `json:"user_has_liked"`
	Replies      []*CommentNode `json:"replies"`
}

// PartyList groups candidate posts under a shared list entity.
type PartyList struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Acronym     *string   `json:"acronym"`
	Description *string   `json:"description"`
	Sector      *string   `json:"sector"`
	Platform    []string  `json:"platform"`
	LogoURL     *string   `json:"logo_url"`
	MemberCount int       `json:"member_count"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
