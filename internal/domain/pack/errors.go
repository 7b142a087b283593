package pack

import "errors"

// Sentinel kinds for pack opening.
var (
	ErrUnknownPackType = errors.New("unknown pack type")
	ErrInvalidRequest  = errors.New("invalid pack request")
)
