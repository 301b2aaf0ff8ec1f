package partition

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/qwwdfsad/xodus/util"
	"golang.org/x/sync/errgroup"
)

// generateRandomEdges seeds every vertex with min(size-1, M) distinct
// random neighbors drawn from a shuffled permutation of [0, size), reused
// across vertices and refreshed once exhausted.
func (g *Graph) generateRandomEdges(rng *util.RNG) {
	if g.size < 2 {
		return
	}

	k := g.maxDegree
	if g.size-1 < k {
		k = g.size - 1
	}

	perm := rng.Permutation(g.size)
	pos := 0

	for v := 0; v < g.size; v++ {
		seen := make(map[int]bool, k)
		neighbors := make([]int32, 0, k)
		for len(neighbors) < k {
			if pos >= len(perm) {
				perm = rng.Permutation(g.size)
				pos = 0
			}
			cand := perm[pos]
			pos++
			if cand == v || seen[cand] {
				continue
			}
			seen[cand] = true
			neighbors = append(neighbors, int32(cand))
		}
		g.writeEdgesLocked(v, neighbors)
	}
}

// backEdgeMsg is a message-passed request: the mutator owning u should
// ensure v appears in u's adjacency.
type backEdgeMsg struct {
	u int
	v int32
}

// mutator is the inbound queue for one build worker's owned vertex range,
// a direct translation of the original's per-worker ConcurrentLinkedQueue
// into a mutex-guarded slice: non-blocking push from any worker, drained
// in batches by the owner.
type mutator struct {
	mu    sync.Mutex
	queue []backEdgeMsg
}

func (m *mutator) push(msg backEdgeMsg) {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
}

func (m *mutator) drain() []backEdgeMsg {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return nil
	}
	out := m.queue
	m.queue = nil
	m.mu.Unlock()
	return out
}

// Build runs the partitioned parallel Vamana construction: random initial
// edges, then T = min(GOMAXPROCS, size) mutator workers each own every
// vertex v with v%T == workerID. A worker harvests candidates for its own
// vertices via greedySearchPrune+robustPrune, and posts back-edge
// requests for newly adjacent neighbors to the worker owning them, so
// writes to any vertex u are always performed by u's single owner.
func (g *Graph) Build(ctx context.Context, alpha float32, beamSize int, rng *util.RNG) error {
	if g.size == 0 {
		return nil
	}

	g.generateRandomEdges(rng)

	if g.size == 1 {
		return nil
	}

	t := runtime.GOMAXPROCS(0)
	if t > g.size {
		t = g.size
	}
	if t < 1 {
		t = 1
	}

	perm := rng.Permutation(g.size)
	vertexLists := make([][]int, t)
	for _, v := range perm {
		w := v % t
		vertexLists[w] = append(vertexLists[w], v)
	}

	mutators := make([]*mutator, t)
	for i := range mutators {
		mutators[i] = &mutator{}
	}

	var done atomic.Int64
	medoid := g.Medoid()

	eg, egCtx := errgroup.WithContext(ctx)
	for w := 0; w < t; w++ {
		w := w
		eg.Go(func() error {
			return g.runWorker(egCtx, w, t, medoid, vertexLists[w], mutators, alpha, beamSize, &done, int64(t))
		})
	}
	return eg.Wait()
}

func (g *Graph) runWorker(ctx context.Context, workerID, t, medoid int, vertices []int, mutators []*mutator, alpha float32, beamSize int, done *atomic.Int64, total int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: worker %d: %v", ErrLockReentrant, workerID, r)
		}
	}()

	scratch := make([]int32, g.maxDegree)
	idx := 0
	signaled := false

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		for _, msg := range mutators[workerID].drain() {
			if err := g.handleBackEdge(msg.u, msg.v, alpha, beamSize, scratch); err != nil {
				return err
			}
		}

		if idx < len(vertices) {
			v := vertices[idx]
			idx++

			checked := g.greedySearchPrune(medoid, v, beamSize)
			if err := g.robustPrune(v, checked, alpha); err != nil {
				return err
			}

			n := g.fetchNeighbours(v, scratch)
			for i := 0; i < n; i++ {
				u := int(scratch[i])
				mutators[u%t].push(backEdgeMsg{u: u, v: int32(v)})
			}
			continue
		}

		if !signaled {
			done.Add(1)
			signaled = true
		}
		if done.Load() == total {
			for _, msg := range mutators[workerID].drain() {
				if err := g.handleBackEdge(msg.u, msg.v, alpha, beamSize, scratch); err != nil {
					return err
				}
			}
			return nil
		}
		runtime.Gosched()
	}
}

// handleBackEdge implements the owner-side reaction to a back-edge
// request from SPEC_FULL.md §4.3: if v is already adjacent to u, nothing
// to do; if u has spare degree, append; otherwise re-run robustPrune with
// v as a new candidate so the diversity selection can decide whether v
// displaces an existing neighbor.
func (g *Graph) handleBackEdge(u int, v int32, alpha float32, beamSize int, scratch []int32) error {
	deg := g.fetchNeighbours(u, scratch)
	for i := 0; i < deg; i++ {
		if scratch[i] == v {
			return nil
		}
	}

	if deg < g.maxDegree {
		g.acquire(u)
		off := g.recordOffset(u)
		curDeg := int(g.edges[off])
		g.edges[off] = int32(curDeg + 1)
		g.edges[off+1+curDeg] = v
		g.release(u)
		return nil
	}

	return g.robustPrune(u, []prCandidate{{id: v, dist: float32(math.NaN())}}, alpha)
}
