package storage

import "errors"

// Store errors
var (
	ErrNotExist    = errors.New("resource does not exist")
	ErrInvalidPath = errors.New("invalid resource path")
)

// FileStore provides byte-level access to named resources. Implementations
// map resource URIs to their own backing locations; read and write failures
// are returned unchanged to the caller.
type FileStore interface {
	// Read returns the full contents of the resource. Returns an error
	// wrapping ErrNotExist when the resource is absent.
	Read(uri string) ([]byte, error)

	// Write replaces the resource contents, creating it if needed.
	Write(uri string, data []byte) error

	// Delete removes the resource. Deleting an absent resource returns an
	// error wrapping ErrNotExist.
	Delete(uri string) error

	// Exists reports whether the resource is present.
	Exists(uri string) bool
}
