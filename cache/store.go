// Package cache persists the distance field artifact so that it is computed at
// most once per storage lifetime.
//
// Artifacts are kept in a [Store], of which there are three implementations:
//   - [FileStore]: one file per artifact in a directory, for CLI usage
//   - [RedisStore]: Redis-backed storage shared between machines
//   - [MemStore]: in-memory storage for tests and dry runs
//
// Entries are looked up by [Key]. A logical key never invalidates its entry,
// so stale data is returned after the inputs change. A content key carries a
// digest of the inputs and the artifact format version; a stored entry with a
// different digest is recomputed and overwritten.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for cache operations.
var (
	// ErrNotExist is returned by a Store when the named artifact is absent.
	ErrNotExist = errors.New("artifact does not exist")

	// ErrCorrupt is returned when a stored artifact is present but unreadable.
	// It is never recovered from by recomputing.
	ErrCorrupt = errors.New("corrupt artifact")
)

// Store holds encoded artifacts by name.
type Store interface {
	// Get returns the data stored under name or ErrNotExist.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put stores data under name, replacing any existing entry.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes the entry under name. Deleting an absent entry is not an error.
	Delete(ctx context.Context, name string) error
}

// ValidName rejects artifact names that could escape a store's namespace.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`+"\x00") {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}
