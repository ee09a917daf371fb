// Package kvstore provides the byte-addressable persistent key/value store
// consumed by pkg/fabric and pkg/ota for on-device state.
//
// Keys live in a single flat namespace: "Fabric{XX}" (uppercase hex fabric
// index) for fabric table entries, and "O/dflt", "O/cur", "O/tok" for OTA
// requestor state.
package kvstore

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the byte-addressable persistent key/value store (spec C1).
//
// All methods must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound if absent.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any existing value.
	Set(key string, value []byte) error

	// Delete removes key. It is not an error to delete an absent key.
	Delete(key string) error
}
