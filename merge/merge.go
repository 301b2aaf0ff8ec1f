// Package merge N-way merges the finalized per-partition Vamana graphs
// into the final on-disk adjacency, one record per global vertex id. This
// is the one priority-queue component SPEC_FULL.md treats as an external
// collaborator (distinct from the in-scope GreedyCandidateQueue), so it is
// built directly on container/heap rather than internal/queue.
package merge

import (
	"container/heap"
	"fmt"

	"github.com/qwwdfsad/xodus/util"
)

// PartitionGraph is the subset of partition.Graph the merger needs: a
// sequence of vertices already sorted ascending by global id.
type PartitionGraph interface {
	Size() int
	LocalToGlobal(i int) uint32
	Edges(i int) []int32
}

// EdgeWriter receives the merged adjacency for each global vertex id, in
// ascending id order, and flushes once the merge completes.
type EdgeWriter interface {
	WriteEdges(gid uint32, edges []int32) error
	Sync() error
}

type heapItem struct {
	gid       uint32
	partition int
	local     int
}

type cursorHeap []heapItem

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if h[i].gid != h[j].gid {
		return h[i].gid < h[j].gid
	}
	return h[i].partition < h[j].partition
}
func (h cursorHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merge drains every partition's cursor in ascending global-id order,
// unions the adjacency any partitions contribute for a given id, caps the
// union to maxDegree via a Fisher-Yates subset when it overflows, and
// writes exactly one record per id in [0, N). Running Merge twice over
// identical partitions with an rng seeded the same way produces
// byte-identical output, since the only randomness is the capping shuffle.
func Merge(writer EdgeWriter, graphs []PartitionGraph, maxDegree int, rng *util.RNG) error {
	h := &cursorHeap{}
	cursors := make([]int, len(graphs))
	for i, g := range graphs {
		if g.Size() > 0 {
			heap.Push(h, heapItem{gid: g.LocalToGlobal(0), partition: i, local: 0})
		}
	}

	var expected uint32
	unionSet := make(map[int32]bool)

	for h.Len() > 0 {
		gid := (*h)[0].gid
		if gid != expected {
			return fmt.Errorf("%w: expected %d, got %d", ErrGlobalIDGap, expected, gid)
		}

		for k := range unionSet {
			delete(unionSet, k)
		}
		union := make([]int32, 0, maxDegree)

		for h.Len() > 0 && (*h)[0].gid == gid {
			item := heap.Pop(h).(heapItem)
			g := graphs[item.partition]
			for _, e := range g.Edges(item.local) {
				if !unionSet[e] {
					unionSet[e] = true
					union = append(union, e)
				}
			}

			cursors[item.partition] = item.local + 1
			if cursors[item.partition] < g.Size() {
				heap.Push(h, heapItem{
					gid:       g.LocalToGlobal(cursors[item.partition]),
					partition: item.partition,
					local:     cursors[item.partition],
				})
			}
		}

		if len(union) > maxDegree {
			rng.Shuffle(len(union), func(i, j int) { union[i], union[j] = union[j], union[i] })
			union = union[:maxDegree]
		}

		if err := writer.WriteEdges(gid, union); err != nil {
			return err
		}

		expected++
	}

	return writer.Sync()
}
