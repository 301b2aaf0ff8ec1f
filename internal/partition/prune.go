package partition

import (
	"math"
	"sort"

	"github.com/qwwdfsad/xodus/distance"
	"github.com/qwwdfsad/xodus/internal/queue"
)

// prCandidate is one entry considered by robustPrune: a local vertex id
// together with its distance to the vertex being pruned. dist is NaN for
// entries whose distance still needs to be filled in.
type prCandidate struct {
	id   int32
	dist float32
}

func isNaN32(f float32) bool { return f != f }

// robustPrune implements the diversity-aware neighbor selection from
// SPEC_FULL.md §4.3: merge v's current neighbors into candidates (with a
// NaN distance sentinel, filled in precisely below), sort ascending, then
// repeatedly keep the closest remaining candidate and exclude anything it
// dominates under the current alpha multiplier, restoring excluded
// candidates and raising alpha by 1.2x when the keep-list doesn't reach M,
// until alpha exceeds alphaMax. The keep-list is written in reverse order.
func (g *Graph) robustPrune(v int, candidates []prCandidate, alphaMax float32) error {
	g.acquire(v)
	defer g.release(v)

	off := g.recordOffset(v)
	deg := int(g.edges[off])

	seen := make(map[int32]bool, len(candidates)+deg)
	merged := make([]prCandidate, 0, len(candidates)+deg)
	for _, c := range candidates {
		if int(c.id) == v || seen[c.id] {
			continue
		}
		seen[c.id] = true
		merged = append(merged, c)
	}
	for i := 0; i < deg; i++ {
		nb := g.edges[off+1+i]
		if int(nb) == v || seen[nb] {
			continue
		}
		seen[nb] = true
		merged = append(merged, prCandidate{id: nb, dist: float32(math.NaN())})
	}

	g.fillDistances(v, merged)

	sort.Slice(merged, func(i, j int) bool { return merged[i].dist < merged[j].dist })

	kept := make([]bool, len(merged))
	excluded := make([]bool, len(merged))
	var keepOrder []int32

	alpha := float32(1.0)
	for {
		for i := 0; i < len(merged) && len(keepOrder) < g.maxDegree; i++ {
			if kept[i] || excluded[i] {
				continue
			}
			kept[i] = true
			keepOrder = append(keepOrder, merged[i].id)
			if len(keepOrder) >= g.maxDegree {
				break
			}
			a := g.VectorAt(int(merged[i].id))
			for j := i + 1; j < len(merged); j++ {
				if kept[j] || excluded[j] {
					continue
				}
				b := g.VectorAt(int(merged[j].id))
				if g.distFunc(a, b)*alpha <= merged[j].dist {
					excluded[j] = true
				}
			}
		}

		if len(keepOrder) >= g.maxDegree {
			break
		}
		alpha *= 1.2
		if alpha > alphaMax {
			break
		}

		for i := range excluded {
			if !kept[i] {
				excluded[i] = false
			}
		}
	}

	for i, j := 0, len(keepOrder)-1; i < j; i, j = i+1, j-1 {
		keepOrder[i], keepOrder[j] = keepOrder[j], keepOrder[i]
	}
	g.writeEdgesLocked(v, keepOrder)
	return nil
}

// fillDistances computes the precise distance from v to every candidate
// whose dist is still the NaN sentinel, batching four at a time to keep
// the distance kernel's load pattern in its mandated 1x4 shape.
func (g *Graph) fillDistances(v int, candidates []prCandidate) {
	query := g.VectorAt(v)

	pending := make([]int, 0, len(candidates))
	for i, c := range candidates {
		if isNaN32(c.dist) {
			pending = append(pending, i)
		}
	}

	out := make([]float32, 4)
	i := 0
	for ; i+4 <= len(pending); i += 4 {
		a := g.VectorAt(int(candidates[pending[i]].id))
		b := g.VectorAt(int(candidates[pending[i+1]].id))
		c := g.VectorAt(int(candidates[pending[i+2]].id))
		d := g.VectorAt(int(candidates[pending[i+3]].id))
		distance.Batch4(g.kind, query, a, b, c, d, out)
		candidates[pending[i]].dist = out[0]
		candidates[pending[i+1]].dist = out[1]
		candidates[pending[i+2]].dist = out[2]
		candidates[pending[i+3]].dist = out[3]
	}
	for ; i < len(pending); i++ {
		idx := pending[i]
		candidates[idx].dist = g.distFunc(query, g.VectorAt(int(candidates[idx].id)))
	}
}

// greedySearchPrune runs a best-first walk from medoid toward v's vector
// with beam width beamSize, using precise in-memory distances, and
// returns every vertex it visited together with its precise distance to
// v — the candidate set robustPrune(v, ...) consumes.
func (g *Graph) greedySearchPrune(medoid, v, beamSize int) []prCandidate {
	target := g.VectorAt(v)

	visited := make(map[int32]bool, beamSize*4)
	q := queue.New(beamSize)

	d0 := g.distFunc(target, g.VectorAt(medoid))
	q.Add(uint32(medoid), d0, false)
	visited[int32(medoid)] = true

	checked := make([]prCandidate, 0, beamSize*2)
	neighBuf := make([]int32, g.maxDegree)

	for {
		idx := q.NextUnchecked()
		if idx < 0 {
			break
		}
		cur := q.VertexID(idx)
		curDist := q.Distance(idx)
		q.MarkChecked(idx)
		checked = append(checked, prCandidate{id: int32(cur), dist: curDist})

		if int(cur) == v {
			continue
		}

		n := g.fetchNeighbours(int(cur), neighBuf)
		for i := 0; i < n; i++ {
			nb := neighBuf[i]
			if int(nb) == v || visited[nb] {
				continue
			}
			visited[nb] = true
			d := g.distFunc(target, g.VectorAt(int(nb)))
			q.Add(uint32(nb), d, false)
		}
	}

	return checked
}
