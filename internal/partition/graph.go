// Package partition implements the per-partition in-memory Vamana graph:
// randomized initial edges, greedy-search candidate harvesting, robust
// pruning under a diversity multiplier, and the parallel mutator-worker
// build loop that routes back-edge updates to the worker owning the
// target vertex.
package partition

import (
	"math"
	"sort"
	"sync"

	"github.com/qwwdfsad/xodus/distance"
)

// Graph is one partition's mutable working set: a fixed-size slab of
// vectors, a capped adjacency list, and a per-vertex version used as a
// seqlock. Edge ids are local indices into this partition until
// ConvertLocalEdgesToGlobal rewrites them.
type Graph struct {
	size      int
	dim       int
	maxDegree int
	kind      distance.Kind
	distFunc  distance.Func

	localToGlobal []uint32
	vectors       []float32 // size*dim; released by ReleaseVectors once copied to disk
	edges         []int32   // size*(maxDegree+1); slot 0 is degree, followed by up to maxDegree neighbor ids
	edgeVersion   []uint64  // seqlock version per vertex, even = unlocked

	medoidOnce sync.Once
	medoid     int
}

// New builds a partition Graph over the given member vectors (flat,
// size*dim floats) and their global ids. vectors is retained directly, not
// copied; callers must not mutate it afterward.
func New(localToGlobal []uint32, vectors []float32, dim, maxDegree int, kind distance.Kind) (*Graph, error) {
	size := len(localToGlobal)

	distFunc, err := distance.Provider(kind)
	if err != nil {
		return nil, err
	}

	return &Graph{
		size:          size,
		dim:           dim,
		maxDegree:     maxDegree,
		kind:          kind,
		distFunc:      distFunc,
		localToGlobal: localToGlobal,
		vectors:       vectors,
		edges:         make([]int32, size*(maxDegree+1)),
		edgeVersion:   make([]uint64, size),
	}, nil
}

// Size returns the number of vertices held by this partition.
func (g *Graph) Size() int { return g.size }

// Dim returns the vector dimension.
func (g *Graph) Dim() int { return g.dim }

// MaxDegree returns the configured out-degree cap M.
func (g *Graph) MaxDegree() int { return g.maxDegree }

// LocalToGlobal returns the global id of local vertex i.
func (g *Graph) LocalToGlobal(i int) uint32 { return g.localToGlobal[i] }

// VectorAt returns the full-precision vector for local vertex i. The
// returned slice aliases the partition's vector slab and is invalid after
// ReleaseVectors.
func (g *Graph) VectorAt(i int) []float32 { return g.vectors[i*g.dim : (i+1)*g.dim] }

// ReleaseVectors frees the partition's vector slab once every vertex has
// been copied into the final paged file.
func (g *Graph) ReleaseVectors() { g.vectors = nil }

func (g *Graph) recordOffset(v int) int { return v * (g.maxDegree + 1) }

// Degree returns the current out-degree of local vertex v, without
// seqlock revalidation. Safe to call from the vertex's owning worker.
func (g *Graph) Degree(v int) int { return int(g.edges[g.recordOffset(v)]) }

// Edges returns the current neighbor ids of local vertex v, without
// seqlock revalidation. Safe to call from the vertex's owning worker; all
// other callers should use fetchNeighbours.
func (g *Graph) Edges(v int) []int32 {
	off := g.recordOffset(v)
	deg := int(g.edges[off])
	return g.edges[off+1 : off+1+deg]
}

// fetchNeighbours copies v's current adjacency into dst (which must have
// capacity maxDegree) using the seqlock read protocol: read the version,
// read degree+edges, read the version again, and retry if it changed or
// was odd (locked) throughout. Returns the degree copied.
func (g *Graph) fetchNeighbours(v int, dst []int32) int {
	off := g.recordOffset(v)
	for {
		v1 := loadVersion(&g.edgeVersion[v])
		if v1&1 != 0 {
			continue
		}
		deg := int(g.edges[off])
		n := copy(dst, g.edges[off+1:off+1+deg])
		v2 := loadVersion(&g.edgeVersion[v])
		if v1 == v2 {
			return n
		}
	}
}

// acquire takes the exclusive lock for vertex v via a CAS even-to-odd
// transition. It panics if v is already locked: under the single-owner
// routing design no two goroutines ever contend for the same vertex, so
// an odd version observed here means the owner/back-edge routing
// invariant has been broken.
func (g *Graph) acquire(v int) {
	for {
		old := loadVersion(&g.edgeVersion[v])
		if old&1 != 0 {
			panic(ErrLockReentrant)
		}
		if casVersion(&g.edgeVersion[v], old, old+1) {
			return
		}
	}
}

// release returns vertex v's lock to even, making pending writes visible
// to seqlock readers.
func (g *Graph) release(v int) {
	addVersion(&g.edgeVersion[v], 1)
}

// writeEdgesLocked overwrites v's adjacency with neighbors. Caller must
// hold v's lock.
func (g *Graph) writeEdgesLocked(v int, neighbors []int32) {
	off := g.recordOffset(v)
	g.edges[off] = int32(len(neighbors))
	copy(g.edges[off+1:off+1+len(neighbors)], neighbors)
}

// Medoid returns the local id minimizing mean-vector distance, computed
// once and cached.
func (g *Graph) Medoid() int {
	g.medoidOnce.Do(func() {
		if g.size == 0 {
			return
		}
		mean := make([]float32, g.dim)
		for i := 0; i < g.size; i++ {
			v := g.VectorAt(i)
			for d := 0; d < g.dim; d++ {
				mean[d] += v[d]
			}
		}
		inv := 1.0 / float32(g.size)
		for d := range mean {
			mean[d] *= inv
		}

		best, bestDist := 0, float32(math.MaxFloat32)
		for i := 0; i < g.size; i++ {
			d := g.distFunc(mean, g.VectorAt(i))
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
		g.medoid = best
	})
	return g.medoid
}

// ConvertLocalEdgesToGlobal rewrites every stored edge id from a local
// index into its global id. Must run exactly once, after the build
// completes and before SortEdgesByGlobalIndex.
func (g *Graph) ConvertLocalEdgesToGlobal() {
	for v := 0; v < g.size; v++ {
		off := g.recordOffset(v)
		deg := int(g.edges[off])
		for i := 0; i < deg; i++ {
			local := g.edges[off+1+i]
			g.edges[off+1+i] = int32(g.localToGlobal[local])
		}
	}
}

// SortEdgesByGlobalIndex permutes this partition's vertices so that local
// order matches ascending global id order, which the merger requires of
// every partition it consumes. Edge ids must already be global.
func (g *Graph) SortEdgesByGlobalIndex() {
	order := make([]int, g.size)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return g.localToGlobal[order[i]] < g.localToGlobal[order[j]]
	})

	recSize := g.maxDegree + 1
	newLocalToGlobal := make([]uint32, g.size)
	newEdges := make([]int32, len(g.edges))
	for newIdx, oldIdx := range order {
		newLocalToGlobal[newIdx] = g.localToGlobal[oldIdx]
		srcOff := oldIdx * recSize
		dstOff := newIdx * recSize
		copy(newEdges[dstOff:dstOff+recSize], g.edges[srcOff:srcOff+recSize])
	}
	g.localToGlobal = newLocalToGlobal
	g.edges = newEdges
}
