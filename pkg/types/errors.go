package types

import "errors"

// Domain errors shared across packages
var (
	ErrInvalidState = errors.New("invalid embedding state")

	// ErrInvariant marks a broken internal invariant, such as a vector id
	// with no metadata row behind it. Code that sees it should abort.
	ErrInvariant = errors.New("invariant violation")
)
