package storage

import (
	"context"
	"time"
)

// Backend is the underlying byte store. Identifiers are relative paths.
//
// Move must be atomic: within one volume a native rename, across volumes
// either fully complete or leave the source untouched. A half-moved state is
// never acceptable.
type Backend interface {
	Save(ctx context.Context, data []byte, identifier string) (string, error)
	GetPath(identifier string) (string, error)
	Delete(ctx context.Context, identifier string) error
	Move(ctx context.Context, source, target string) (string, error)
}

// Registry is the durable record of temporary files awaiting confirmation.
// It is the sole source of truth for expiration; the backend carries no TTL
// metadata.
type Registry interface {
	// Track records a path. Persistence failures come back as errors so the
	// caller can run its own retry-then-compensate policy.
	Track(ctx context.Context, path string, createdAt time.Time) error
	// Untrack removes a path, reporting whether it was present.
	Untrack(ctx context.Context, path string) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	// IsExpired treats unknown paths as not (yet known to be) expired.
	IsExpired(ctx context.Context, path string, now time.Time) (bool, error)
}
