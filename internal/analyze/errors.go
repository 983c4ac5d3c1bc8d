package analyze

import "errors"

// Error definitions for the analyze package. Only the root input can fail a
// run; every other problem is recorded on the snapshot.
var (
	ErrUnreadableRoot = errors.New("cannot read start file")
	ErrNoRoot         = errors.New("project root is not set")
)
