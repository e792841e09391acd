// Package recordstore provides durable storage for small named JSON records.
// Each record is written whole on every mutation (last-write-wins, no
// incremental patching); callers own serialization.
package recordstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no record exists under the given name.
var ErrNotFound = errors.New("record not found")

// Store abstracts persistence of named records across restarts.
type Store interface {
	// Load returns the current contents of the named record.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save replaces the named record, creating it if absent.
	Save(ctx context.Context, name string, data []byte) error

	Close() error
}
