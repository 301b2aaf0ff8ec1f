// Package diskgraph implements the paged, memory-mapped on-disk vertex
// record layout and the PQ-estimate-then-precise-rescore beam search that
// answers top-K nearest-neighbor queries against it.
package diskgraph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/qwwdfsad/xodus/distance"
	"github.com/qwwdfsad/xodus/internal/mmap"
)

// Estimator is the narrow PQ surface the beam search needs: build a
// per-query lookup table, then sum it against a code to get a distance
// estimate. pq.Codec satisfies this.
type Estimator interface {
	BuildLookupTable(query []float32) []float32
	Estimate(code []byte, table []float32) float32
}

// Graph is the paged on-disk vertex store: every global id in [0, N) has
// a fixed-size record holding its full vector, up to M edges, and a
// degree byte. PQ codes used for estimation during search are kept
// entirely in process memory, never written to the paged file.
type Graph struct {
	mapping *mmap.Mapping
	path    string
	layout  layout
	n       int
	kind    distance.Kind
	distFn  distance.Func
	distFnB distance.FuncBytes

	medoid uint32

	codes     []byte
	q         int
	estimator Estimator

	stats pqStats
}

// Create allocates and zero-fills a fresh paged file for n vertices of
// dimension dim with out-degree cap maxDegree, stamps n into every page
// header, and maps it read-write for the build that is about to populate
// it. codes is the flat n*q PQ code array and estimator backs PQ distance
// estimation during search; both are kept resident in memory only.
func Create(path string, n, dim, maxDegree int, kind distance.Kind, pageSize int, codes []byte, q int, estimator Estimator) (*Graph, error) {
	distFn, err := distance.Provider(kind)
	if err != nil {
		return nil, err
	}
	distFnB, err := distance.ProviderBytes(kind)
	if err != nil {
		return nil, err
	}

	l := newLayout(dim, maxDegree, pageSize)
	pages := pageCount(n, l.verticesPerPage)
	size := pages * pageSize

	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("diskgraph: removing stale file %s: %w", path, err)
		}
	}

	mapping, err := mmap.Create(path, size)
	if err != nil {
		return nil, fmt.Errorf("diskgraph: creating %s: %w", path, err)
	}

	data := mapping.Bytes()
	for p := 0; p < pages; p++ {
		binary.LittleEndian.PutUint32(data[p*pageSize:], uint32(n))
	}

	return &Graph{
		mapping:   mapping,
		path:      path,
		layout:    l,
		n:         n,
		kind:      kind,
		distFn:    distFn,
		distFnB:   distFnB,
		codes:     codes,
		q:         q,
		estimator: estimator,
	}, nil
}

// Dim returns the vector dimension.
func (g *Graph) Dim() int { return g.layout.dim }

// MaxDegree returns the out-degree cap M.
func (g *Graph) MaxDegree() int { return g.layout.maxDegree }

// Size returns the total vertex count N.
func (g *Graph) Size() int { return g.n }

// SetMedoid records the global id used as the beam search's entry point.
func (g *Graph) SetMedoid(gid uint32) { g.medoid = gid }

// Medoid returns the stored search entry point.
func (g *Graph) Medoid() uint32 { return g.medoid }

// WriteVector copies vector into gid's record slot, skipping the write when
// the slot already holds exactly these bytes (a vertex that belongs to two
// partitions is saved twice). Called during build while the mapping is
// still read-write.
func (g *Graph) WriteVector(gid uint32, vector []float32) error {
	if len(vector) != g.layout.dim {
		return fmt.Errorf("diskgraph: vector has %d dims, want %d", len(vector), g.layout.dim)
	}
	off := g.layout.offset(gid) + g.layout.vectorOffset()
	buf := make([]byte, g.layout.dim*4)
	for i, f := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	if data := g.mapping.Bytes(); off+int64(len(buf)) <= int64(len(data)) && bytes.Equal(data[off:off+int64(len(buf))], buf) {
		return nil
	}
	_, err := g.mapping.WriteAt(buf, off)
	return err
}

// WriteEdges writes gid's degree and neighbor ids. It implements
// merge.EdgeWriter: the merger calls it once per global id in ascending
// order. Unused edge slots beyond degree are left as whatever the
// zero-filled file already holds and are never read.
func (g *Graph) WriteEdges(gid uint32, edges []int32) error {
	if len(edges) > g.layout.maxDegree {
		return fmt.Errorf("diskgraph: %d edges exceeds max degree %d", len(edges), g.layout.maxDegree)
	}
	base := g.layout.offset(gid)

	buf := make([]byte, len(edges)*4)
	for i, e := range edges {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(e))
	}
	if _, err := g.mapping.WriteAt(buf, base+g.layout.edgesOffset()); err != nil {
		return err
	}

	degByte := []byte{byte(len(edges))}
	_, err := g.mapping.WriteAt(degByte, base+g.layout.degreeOffset())
	return err
}

// degree returns the stored degree for gid.
func (g *Graph) degree(gid uint32) int {
	base := g.layout.offset(gid)
	return int(g.mapping.Bytes()[base+g.layout.degreeOffset()])
}

// readEdges copies gid's neighbor ids into dst (capacity >= MaxDegree)
// and returns the degree copied.
func (g *Graph) readEdges(gid uint32, dst []int32) int {
	base := g.layout.offset(gid)
	deg := g.degree(gid)
	data := g.mapping.Bytes()
	off := base + g.layout.edgesOffset()
	for i := 0; i < deg; i++ {
		dst[i] = int32(binary.LittleEndian.Uint32(data[off+int64(i*4):]))
	}
	return deg
}

// vectorOffset returns gid's vector byte offset, for precise distance
// rescoring straight out of the mapping.
func (g *Graph) vectorOffset(gid uint32) int {
	return int(g.layout.offset(gid) + g.layout.vectorOffset())
}

// Sync flushes dirty pages to disk.
func (g *Graph) Sync() error { return g.mapping.Sync() }

// Finalize flushes the build-time mapping, closes it, and reopens the
// file read-only for query time, per the lifecycle in SPEC_FULL.md §3.
func (g *Graph) Finalize() error {
	if err := g.mapping.Sync(); err != nil {
		return err
	}
	if err := g.mapping.Close(); err != nil {
		return err
	}
	mapping, err := mmap.Open(g.path)
	if err != nil {
		return fmt.Errorf("diskgraph: reopening %s read-only: %w", g.path, err)
	}
	g.mapping = mapping
	return nil
}

// Close unmaps the paged file.
func (g *Graph) Close() error { return g.mapping.Close() }

// PQErrorAvg returns the running average percentage error between PQ
// estimates and the precise distances that superseded them during
// search.
func (g *Graph) PQErrorAvg() float64 { return g.stats.avg() }

// ResetPQErrorStat clears the PQ error accumulator.
func (g *Graph) ResetPQErrorStat() { g.stats.reset() }
