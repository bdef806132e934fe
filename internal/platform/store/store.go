// Package store abstracts the shared key-value store that holds all relay
// state: registration counters, tag secrets, and mailboxes. The service itself
// is stateless; every guarantee about uniqueness and delivery derives from the
// atomicity of these operations in the backing store, never from in-process
// locking.
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors for store operations.
var (
	ErrNotFound = errors.New("key not found")
	ErrClosed   = errors.New("store closed")
)

// Store defines the key-value operations the relay needs.
// Implementations must be safe for concurrent use, and Increment and
// HashGetAllDelete must be atomic across all clients of the backing store,
// not just within one process.
type Store interface {
	// Increment atomically adds delta to the integer stored at key and
	// returns the new value. A missing key counts as zero.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Get retrieves the value at key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key with no expiry.
	Set(ctx context.Context, key, value string) error

	// HashSet stores value under field in the hash at key, replacing any
	// previous value for that field.
	HashSet(ctx context.Context, key, field, value string) error

	// HashGetAll returns all field-value pairs of the hash at key.
	// A missing key yields an empty map, not an error.
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// HashGetAllDelete atomically reads all field-value pairs of the hash
	// at key and deletes the key. No concurrent write to the hash can land
	// between the read and the delete.
	HashGetAllDelete(ctx context.Context, key string) (map[string]string, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Expire sets the time-to-live of key. Each call restarts the window.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Close releases resources held by the store client.
	Close() error
}
