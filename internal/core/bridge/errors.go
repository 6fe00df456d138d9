package bridge

import "errors"

// Bridge errors
var (
	ErrInvalidEnvelope = errors.New("invalid message envelope")
	ErrNilSurface      = errors.New("nil surface")
)
