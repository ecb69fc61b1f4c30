// Package models contains the persistent entities of the federation
// subsystem and small per-entity service types that wrap a *gorm.DB.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Env is the environment handed to request handlers and workers.
type Env struct {
	DB     *gorm.DB
	Config Config
}

// Config carries the instance-level federation settings.
type Config struct {
	// Domain is the instance's own domain name, e.g. "glade.example".
	Domain string
	// FederationEnabled gates all outbound delivery.
	FederationEnabled bool
	// MaxDeliveryAttempts bounds retries of a delivery task.
	MaxDeliveryAttempts int
	// FetchTimeout bounds any single remote fetch or delivery POST.
	FetchTimeout time.Duration
	// ActorCacheTTL is the lifetime of the in-process actor cache.
	ActorCacheTTL time.Duration
}

// DefaultConfig returns the settings used when a flag is not given.
func DefaultConfig(domain string) Config {
	return Config{
		Domain:              domain,
		FederationEnabled:   true,
		MaxDeliveryAttempts: 5,
		FetchTimeout:        30 * time.Second,
		ActorCacheTTL:       time.Hour,
	}
}

// AllTables returns the models managed by AutoMigrate, in an order that
// satisfies their foreign key constraints.
func AllTables() []any {
	return []any{
		&User{},
		&RemoteInstance{},
		&RemoteUser{},
		&Post{},
		&Like{},
		&RemoteFollow{},
		&RemoteFollower{},
		&RemotePost{},
		&Boost{},
		&Activity{},
		&DeliveryRequest{},
	}
}
