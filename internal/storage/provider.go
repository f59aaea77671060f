// Package storage persists the serialised calendar state as opaque
// blobs keyed by name. The core never interprets the bytes; the codec
// does that on either side.
package storage

// Well-known blob keys.
const (
	KeyEvents     = "events"
	KeyCategories = "categories"
)

// Provider is a byte-oriented key-value store for state blobs.
type Provider interface {
	// Load returns the blob for key, or an error wrapping
	// os.ErrNotExist semantics when it has never been saved.
	Load(key string) ([]byte, error)
	// Save overwrites the blob for key atomically.
	Save(key string, data []byte) error
	// Keys lists every stored blob key.
	Keys() ([]string, error)
}
