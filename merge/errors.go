package merge

import "errors"

// ErrGlobalIDGap is returned when the merge heap produces a global id out
// of sequence, meaning some vertex in [0, N) is missing a record from
// every partition that was supposed to cover it.
var ErrGlobalIDGap = errors.New("merge: global id sequence has a gap")
