package api

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const (
	otpTTL           = 5 * time.Minute
	otpRateWindow    = 24 * time.Hour
	sessionTTL       = 30 * 24 * time.Hour
	locationCacheTTL = time.Hour
	statsCacheTTL    = 5 * time.Minute

	postApprovedTopic   = "bayanihan.posts.approved"
	postRejectedTopic   = "bayanihan.posts.rejected"
	userRegisteredTopic = "bayanihan.users.registered"
)

// Config controls runtime behaviour for the API handlers.
type Config struct {
	// Debug gates the inline OTP fallback when mail delivery is unavailable.
	// Never enable outside development: it hands the verification code to the
	// caller without proving mailbox ownership.
	Debug bool
}

// API wires storage, cache, bus, and mail dependencies for the HTTP handlers.
type API struct {
	store     *Store
	config    Config
	log       zerolog.Logger
	auth      *authService
	limiter   *otpLimiter
	users     userDirectory
	sessions  sessionDirectory
	resolvers []identityResolver
}

// New initialises the API layer. The pgx pool and bus are optional; handlers
// that need them degrade (stats fall back to the ORM, events are skipped).
func New(store *Store, cfg Config, log zerolog.Logger) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if store.ORM == nil {
		return nil, errors.New("store ORM is required")
	}
	if store.Cache == nil {
		return nil, errors.New("store cache is required")
	}

	users := &gormUserDirectory{orm: store.ORM}
	sessions := &gormSessionDirectory{orm: store.ORM}
	otps := &otpLedger{
		store: &gormOTPStore{orm: store.ORM},
		cache: store.Cache,
		now:   time.Now,
	}
	limiter := &otpLimiter{cache: store.Cache, now: time.Now}

	auth := &authService{
		users:    users,
		sessions: sessions,
		otps:     otps,
		limiter:  limiter,
		mail:     store.Mail,
		debug:    cfg.Debug,
		log:      log,
	}

	return &API{
		store:    store,
		config:   cfg,
		log:      log,
		auth:     auth,
		limiter:  limiter,
		users:    users,
		sessions: sessions,
		resolvers: []identityResolver{
			&headerResolver{users: users},
			&cookieResolver{users: users, sessions: sessions, now: time.Now},
		},
	}, nil
}
