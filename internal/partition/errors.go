package partition

import "errors"

// ErrLockReentrant is raised when a vertex's edge lock is acquired while
// already held. Under the single-owner-per-vertex design this can only
// happen if a bug breaks the owner/back-edge routing invariant.
var ErrLockReentrant = errors.New("partition: vertex lock re-acquired while held")
