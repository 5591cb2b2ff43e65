package pipeline

import "errors"

var (
	// ErrNotFound means the id did not resolve to a stored entry.
	ErrNotFound = errors.New("pipeline entry not found")

	// ErrInvalidArgument means a caller-supplied value could not be used,
	// such as an unparsable or negative money amount.
	ErrInvalidArgument = errors.New("invalid argument")
)
