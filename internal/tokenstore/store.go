// Package tokenstore persists the bearer credential of a client session.
//
// Stores treat the credential as an opaque string: no shape or expiry checks
// happen here. Every backend is safe to use before its storage is available;
// a nil store or a store without a client reads as empty and ignores writes.
package tokenstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Behnamfe76/ticket-portal/internal/config"
)

// StorageKey is the fixed key the credential is stored under.
const StorageKey = "accessToken"

// Store holds a single credential slot, last writer wins.
type Store interface {
	// Get returns the credential, or "" when none is stored.
	Get(ctx context.Context) (string, error)
	// Set replaces the stored credential.
	Set(ctx context.Context, credential string) error
	// Clear removes the stored credential. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}

// Factory opens stores scoped to one client (a visitor, or the CLI user).
type Factory struct {
	Driver string
	Dir    string
	Redis  *redis.Client
	PG     Querier
}

// Open returns the store for scope using the configured driver.
func (f Factory) Open(scope string) (Store, error) {
	switch f.Driver {
	case config.DriverMemory, "":
		return NewMemory(), nil
	case config.DriverFile:
		return NewFile(f.Dir, scope), nil
	case config.DriverRedis:
		return NewRedis(f.Redis, scope), nil
	case config.DriverPostgres:
		return NewPostgres(f.PG, scope), nil
	default:
		return nil, fmt.Errorf("unknown token store driver %q", f.Driver)
	}
}
