// Package store provides the persistent session store: a small durable key/value
// space that survives between CLI invocations.
package store

import (
	"errors"
	"fmt"

	"github.com/templeadmin/templeadmin/internal/config"
)

// ErrNotFound is returned when a key has no value
var ErrNotFound = errors.New("not found")

// Store defines durable key/value storage for session data.
// Every Get re-reads the backing storage; implementations must not cache values.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	Close() error
}

// Open returns the store selected by configuration
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreFile, "":
		return NewFileStore(cfg.Path), nil
	case config.StoreKeyring:
		return NewKeyringStore(KeyringService), nil
	case config.StoreBolt:
		return NewBoltStore(cfg.Path)
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend '%s'", cfg.Backend)
	}
}
