package queue

// candidate is one entry in a GreedyCandidateQueue: a vertex together with
// its best known distance to the query and whether that distance is a PQ
// estimate still awaiting precise rescoring.
type candidate struct {
	vertexID uint32
	distance float32
	estimate bool
	checked  bool
}

// GreedyCandidateQueue is the bounded, sorted candidate list that drives
// both greedySearchPrune (build time) and greedySearchNearest (query time).
// It keeps at most capacity entries sorted ascending by distance, and tracks
// which entries have already been expanded (their neighbours visited) so
// the search can resume from the best not-yet-expanded candidate.
//
// Entries added from the PQ lookup table carry estimate=true; once a
// caller has the precise distance it calls Resort to re-key the entry and
// clear the flag, which is what the search loop uses to batch four
// PQ-estimate entries before ever reading disk.
type GreedyCandidateQueue struct {
	items    []candidate
	capacity int
}

// New creates a GreedyCandidateQueue bounded to the given capacity.
func New(capacity int) *GreedyCandidateQueue {
	return &GreedyCandidateQueue{
		items:    make([]candidate, 0, capacity),
		capacity: capacity,
	}
}

// Len returns the number of candidates currently held.
func (q *GreedyCandidateQueue) Len() int { return len(q.items) }

// Reset clears the queue for reuse without reallocating its backing array.
func (q *GreedyCandidateQueue) Reset() {
	q.items = q.items[:0]
}

// Add inserts a candidate in sorted position. If the queue is already at
// capacity the worst (largest-distance) entry is dropped to make room, or
// the new candidate is discarded outright if it wouldn't make the cut.
// Returns true if the candidate was inserted.
func (q *GreedyCandidateQueue) Add(vertexID uint32, distance float32, estimate bool) bool {
	if len(q.items) == q.capacity && distance >= q.items[len(q.items)-1].distance {
		return false
	}

	pos := q.searchPosition(distance)
	c := candidate{vertexID: vertexID, distance: distance, estimate: estimate}

	if len(q.items) < q.capacity {
		q.items = append(q.items, candidate{})
		copy(q.items[pos+1:], q.items[pos:len(q.items)-1])
		q.items[pos] = c
		return true
	}

	// At capacity: shift down and drop the tail.
	copy(q.items[pos+1:], q.items[pos:len(q.items)-1])
	q.items[pos] = c
	return true
}

func (q *GreedyCandidateQueue) searchPosition(distance float32) int {
	lo, hi := 0, len(q.items)
	for lo < hi {
		mid := (lo + hi) / 2
		if q.items[mid].distance < distance {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// NextUnchecked returns the index of the first not-yet-checked entry,
// scanning in ascending distance order, or -1 if every entry has been
// checked (the search frontier is exhausted).
func (q *GreedyCandidateQueue) NextUnchecked() int {
	for i := range q.items {
		if !q.items[i].checked {
			return i
		}
	}
	return -1
}

// Cap returns the queue's bounded capacity.
func (q *GreedyCandidateQueue) Cap() int { return q.capacity }

// Full reports whether the queue currently holds capacity entries.
func (q *GreedyCandidateQueue) Full() bool { return len(q.items) == q.capacity }

// MaxDistance returns the worst (largest) distance currently held, used to
// decide whether a new PQ-estimated candidate is worth admitting once the
// queue is at capacity. Callers must not call this on an empty queue.
func (q *GreedyCandidateQueue) MaxDistance() float32 {
	return q.items[len(q.items)-1].distance
}

// IsEstimate reports whether the entry at idx still carries a PQ estimate.
func (q *GreedyCandidateQueue) IsEstimate(idx int) bool { return q.items[idx].estimate }

// VertexID returns the vertex id stored at idx.
func (q *GreedyCandidateQueue) VertexID(idx int) uint32 { return q.items[idx].vertexID }

// Distance returns the distance currently stored at idx.
func (q *GreedyCandidateQueue) Distance(idx int) float32 { return q.items[idx].distance }

// MarkChecked flags the entry at idx as expanded: its neighbours have been
// (or are about to be) visited, so the search loop should not pick it again.
func (q *GreedyCandidateQueue) MarkChecked(idx int) { q.items[idx].checked = true }

// IsChecked reports whether the entry at idx has already been expanded.
func (q *GreedyCandidateQueue) IsChecked(idx int) bool { return q.items[idx].checked }

// Resort updates the distance at idx to a newly computed precise value,
// clears its estimate flag, and re-inserts it at its correct sorted
// position. It returns the entry's new index so a caller juggling several
// indices at once (the 1x4 batched rescore) can repair the indices of
// entries it is still holding: an index past idx moves down by one when the
// entry is removed, and an index at or past newIdx then moves up by one when
// it is reinserted (see repairIndex in internal/diskgraph).
func (q *GreedyCandidateQueue) Resort(idx int, newDistance float32) int {
	c := q.items[idx]
	c.distance = newDistance
	c.estimate = false

	// Remove from idx, then re-insert at the right spot.
	copy(q.items[idx:], q.items[idx+1:])
	q.items = q.items[:len(q.items)-1]

	newIdx := q.searchPosition(newDistance)
	q.items = append(q.items, candidate{})
	copy(q.items[newIdx+1:], q.items[newIdx:len(q.items)-1])
	q.items[newIdx] = c

	return newIdx
}

// VertexIDs writes up to k vertex ids, ascending by distance, into a
// freshly allocated slice and returns it.
func (q *GreedyCandidateQueue) VertexIDs(k int) []uint32 {
	if k > len(q.items) {
		k = len(q.items)
	}
	out := make([]uint32, k)
	for i := 0; i < k; i++ {
		out[i] = q.items[i].vertexID
	}
	return out
}
