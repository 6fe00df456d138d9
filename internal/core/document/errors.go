package document

import "errors"

// Document errors
var (
	ErrDisposed   = errors.New("document is disposed")
	ErrNoProvider = errors.New("document has no bytes provider")
)
