package diskgraph

import (
	"fmt"
	"math"
	"sync"

	"github.com/qwwdfsad/xodus/distance"
	"github.com/qwwdfsad/xodus/internal/queue"
	"github.com/qwwdfsad/xodus/internal/visited"
)

// SearchContext is one query's scratch state: a visited set, the bounded
// candidate queue, the lazily-built PQ lookup table, and a neighbor read
// buffer. It must not be shared across concurrent queries; callers pool
// these with sync.Pool and Reset between uses.
type SearchContext struct {
	visited  *visited.VisitedSet
	cands    *queue.GreedyCandidateQueue
	table    []float32
	neighBuf []int32
}

// NewSearchContext allocates scratch sized for beam width l and out-degree
// cap maxDegree.
func NewSearchContext(l, maxDegree int) *SearchContext {
	return &SearchContext{
		visited:  visited.New(1024),
		cands:    queue.New(l),
		neighBuf: make([]int32, maxDegree),
	}
}

// Reset clears a SearchContext for reuse by the next query on the same
// goroutine.
func (sc *SearchContext) Reset() {
	sc.visited.Reset()
	sc.cands.Reset()
	sc.table = nil
}

// pqStats accumulates the running PQ-estimate error used by PQErrorAvg.
// Search may run from several goroutines concurrently, so updates are
// mutex-guarded rather than thread-local.
type pqStats struct {
	mu          sync.Mutex
	count       int64
	sumErrorPct float64
}

// record folds one precise-vs-estimate comparison into the running
// average. Matches SPEC_FULL.md §4.5: only re-scores with a nonzero
// precise distance count toward the average, since the percentage error
// is undefined at zero.
func (s *pqStats) record(precise, pq float32) {
	if precise == 0 {
		return
	}
	errPct := 100 * math.Abs(float64(precise-pq)) / math.Abs(float64(precise))
	s.mu.Lock()
	s.count++
	s.sumErrorPct += errPct
	s.mu.Unlock()
}

func (s *pqStats) avg() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return 0
	}
	return s.sumErrorPct / float64(s.count)
}

func (s *pqStats) reset() {
	s.mu.Lock()
	s.count = 0
	s.sumErrorPct = 0
	s.mu.Unlock()
}

// Search runs greedySearchNearest from SPEC_FULL.md §4.5: best-first
// expansion scored by PQ estimates, with precise rescoring on promotion,
// writing up to k ascending-distance global ids into out and returning
// how many were written.
func (g *Graph) Search(sc *SearchContext, query []float32, out []uint32, k int) (int, error) {
	if len(query) != g.layout.dim {
		return 0, fmt.Errorf("diskgraph: query has %d dims, want %d", len(query), g.layout.dim)
	}
	if g.n == 0 {
		return 0, nil
	}

	sc.Reset()
	raw := g.mapping.Bytes()

	d0 := g.distFnB(query, raw, g.vectorOffset(g.medoid))
	sc.cands.Add(g.medoid, d0, false)
	sc.visited.Visit(uint64(g.medoid))

	for {
		idx, done := g.selectNext(sc, query)
		if done {
			break
		}

		cur := sc.cands.VertexID(idx)
		sc.cands.MarkChecked(idx)

		if sc.table == nil {
			sc.table = g.estimator.BuildLookupTable(query)
		}

		deg := g.readEdges(cur, sc.neighBuf)
		for i := 0; i < deg; i++ {
			nb := sc.neighBuf[i]
			if sc.visited.Visited(uint64(nb)) {
				continue
			}
			sc.visited.Visit(uint64(nb))

			code := g.codes[int(nb)*g.q : int(nb)*g.q+g.q]
			est := g.estimator.Estimate(code, sc.table)
			// GreedyCandidateQueue.Add already rejects, once at capacity,
			// any estimate that is not strictly below the current worst
			// distance, so no separate admission check is made here.
			sc.cands.Add(uint32(nb), est, true)
		}
	}

	ids := sc.cands.VertexIDs(k)
	return copy(out, ids), nil
}

// selectNext implements the "select next vertex to expand" procedure:
// scan forward (candidates are kept sorted ascending) for the first
// not-checked entry. If it's already a precise distance, it's the vertex
// to expand. If it's a PQ estimate, collect up to four consecutive
// not-checked estimates, rescore them precisely in one batched pass, and
// restart the scan since resorting changes positions.
func (g *Graph) selectNext(sc *SearchContext, query []float32) (idx int, done bool) {
	for {
		n := sc.cands.Len()
		i := 0
		for i < n && sc.cands.IsChecked(i) {
			i++
		}
		if i >= n {
			return 0, true
		}
		if !sc.cands.IsEstimate(i) {
			return i, false
		}

		batch := make([]int, 0, 4)
		for i < n && len(batch) < 4 {
			if sc.cands.IsChecked(i) {
				i++
				continue
			}
			if !sc.cands.IsEstimate(i) {
				break
			}
			batch = append(batch, i)
			i++
		}

		g.rescoreBatch(sc, query, batch)
	}
}

// rescoreBatch computes precise distances for up to four candidates at
// once (the mandated 1x4 batched form) and re-keys each one via Resort,
// repairing the indices of batch entries still pending with the explicit
// conditional SPEC_FULL.md §4.5 and §9 sanction in place of the source's
// branchless bit-shift idiom: observable behavior is identical.
func (g *Graph) rescoreBatch(sc *SearchContext, query []float32, batch []int) {
	raw := g.mapping.Bytes()
	n := len(batch)
	newDist := make([]float32, n)

	var buf4 [4]float32
	i := 0
	for ; i+4 <= n; i += 4 {
		v0 := sc.cands.VertexID(batch[i])
		v1 := sc.cands.VertexID(batch[i+1])
		v2 := sc.cands.VertexID(batch[i+2])
		v3 := sc.cands.VertexID(batch[i+3])
		distance.Batch4Bytes(g.kind, query, raw,
			g.vectorOffset(v0), g.vectorOffset(v1), g.vectorOffset(v2), g.vectorOffset(v3), buf4[:])
		newDist[i], newDist[i+1], newDist[i+2], newDist[i+3] = buf4[0], buf4[1], buf4[2], buf4[3]
	}
	for ; i < n; i++ {
		v := sc.cands.VertexID(batch[i])
		newDist[i] = g.distFnB(query, raw, g.vectorOffset(v))
	}

	for k := 0; k < n; k++ {
		idx := batch[k]
		pqDist := sc.cands.Distance(idx)
		precise := newDist[k]
		g.stats.record(precise, pqDist)

		newIdx := sc.cands.Resort(idx, precise)
		for rk := k + 1; rk < n; rk++ {
			batch[rk] = repairIndex(batch[rk], idx, newIdx)
		}
	}
}

// repairIndex adjusts j for the position shift Resort(oldIdx, ...) caused
// when it removed the entry at oldIdx and reinserted it at newIdx.
func repairIndex(j, oldIdx, newIdx int) int {
	if j > oldIdx {
		j--
	}
	if j >= newIdx {
		j++
	}
	return j
}
