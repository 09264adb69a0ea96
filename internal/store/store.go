// Package store abstracts the blob backends that hold per-application stats
// documents: S3 in production, the local filesystem for development, and an
// in-memory map for tests and forced dry-run deployments.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Head and Get when no document exists under a key.
var ErrNotFound = errors.New("document not found")

// TransientError marks a store failure worth retrying: timeouts, throttling
// and other time-bound conditions. Anything else is fatal for the invocation.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err may succeed on a retry.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// PutResult carries the version identifiers assigned by a successful write.
// VersionID is only set by backends with object versioning (S3).
type PutResult struct {
	ETag      string
	VersionID string
}

// Store is the document store adapter. ETags are opaque version tokens
// identifying the exact stored content.
type Store interface {
	// Bucket names the backing location, for response envelopes and logs.
	Bucket() string
	// Head probes existence and returns the current version token.
	Head(ctx context.Context, key string) (string, error)
	// Get returns the stored bytes and their version token.
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Put writes data under key and returns the new version token.
	Put(ctx context.Context, key string, data []byte) (PutResult, error)
}

// Change is an out-of-band modification of a stored document.
type Change struct {
	AppName string
	Data    []byte
}

// Watcher is implemented by backends that can report document changes made
// outside this process, so subscribers still see them.
type Watcher interface {
	Changes() <-chan Change
}

// Key returns the storage key of an application's stats document.
func Key(appName string) string {
	return appName + "/stats.json"
}
