package hand

import "errors"

// Sentinel kinds for hand submission.
var (
	// ErrInvalidHand is a caller error: wrong size, bad reference, or the
	// round is not accepting hands.
	ErrInvalidHand = errors.New("invalid hand")
	// ErrHandExists is returned when the player already holds a hand this round.
	ErrHandExists = errors.New("hand already submitted for this round")
)
