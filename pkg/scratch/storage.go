// Package scratch manages per-job working storage: the staging area indirect
// writes load from, and the temporary directories deleted when a job is
// finalized. Implementations cover the local filesystem and S3-compatible
// object stores (including GCS in interoperability mode).
package scratch

import (
	"context"
	"errors"
)

// ErrInvalidPrefix is returned when a prefix would escape the storage root.
var ErrInvalidPrefix = errors.New("invalid scratch prefix")

// Storage is per-job working storage.
type Storage interface {
	// List returns the URIs of all objects under prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// RemoveAll deletes every object under prefix. Removing a prefix that
	// does not exist is not an error.
	RemoveAll(ctx context.Context, prefix string) error
}
