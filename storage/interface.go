package storage

import (
	"context"
	"errors"
	"time"

	"github.com/johnwmail/pastelite/models"
)

// ErrDuplicateID is returned by Store when a paste with the same ID already exists
var ErrDuplicateID = errors.New("paste id already exists")

// PasteStore defines the interface for paste storage backends
type PasteStore interface {
	// Store saves a new paste. It never overwrites an existing ID.
	Store(ctx context.Context, paste *models.Paste) error

	// Get retrieves a paste by its ID. It returns (nil, nil) when the
	// paste does not exist and has no side effects.
	Get(ctx context.Context, id string) (*models.Paste, error)

	// IncrementViewAndFetch atomically adds one to the view count and
	// returns the post-increment record. It returns (nil, nil) when the
	// paste does not exist and never creates one.
	IncrementViewAndFetch(ctx context.Context, id string) (*models.Paste, error)

	// Delete removes a paste from storage
	Delete(ctx context.Context, id string) error

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the storage connection
	Close() error
}

// Sweeper is implemented by backends without a native expiry mechanism.
// DeleteExpired removes every paste whose expiry is at or before now and
// returns the number removed.
type Sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
