package api

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"bayanihan/pkg/bus"
	"bayanihan/pkg/cache"
	"bayanihan/pkg/mail"
)

// Store holds external dependencies required by the API layer.
type Store struct {
	ORM   *gorm.DB
	DB    *pgxpool.Pool
	Cache cache.Store
	Bus   *bus.Bus
	Mail  mail.Sender
}
