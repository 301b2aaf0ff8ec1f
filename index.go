package xodus

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/qwwdfsad/xodus/distance"
	"github.com/qwwdfsad/xodus/internal/diskgraph"
	"github.com/qwwdfsad/xodus/pq"
	"github.com/qwwdfsad/xodus/util"
)

// Index is a DiskANN/Vamana-family on-disk approximate nearest-neighbor
// index augmented with Product Quantization for in-memory distance
// estimation. An Index is unusable for Nearest until BuildIndex succeeds.
type Index struct {
	mu sync.RWMutex

	name string
	path string

	dim         int
	kind        distance.Kind
	distFn      distance.Func
	alpha       float32
	maxDegree   int // M
	beamWidth   int // L
	compression int

	logger *Logger
	rng    *util.RNG

	codec *pq.Codec
	graph *diskgraph.Graph
	ready bool

	scratchPool sync.Pool // *diskgraph.SearchContext
}

// New constructs an Index for D-dimensional vectors. It validates the
// configuration but does not touch the filesystem or build anything; call
// BuildIndex to populate it.
func New(name, path string, d int, kind distance.Kind, alpha float32, m, l, compression int, opts ...Option) (*Index, error) {
	if name == "" {
		return nil, newConfigError("name must not be empty")
	}
	if d <= 0 {
		return nil, newConfigError("dimension must be positive")
	}
	if m <= 0 {
		return nil, newConfigError("M must be positive")
	}
	if l < m {
		return nil, newConfigError("L must be >= M")
	}
	if alpha <= 0 {
		return nil, newConfigError("alpha must be positive")
	}

	distFn, err := distance.Provider(kind)
	if err != nil {
		return nil, wrapConfigError("unsupported distance kind", err)
	}

	q, s, err := pqGeometry(d, compression)
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)

	codec, err := pq.New(d, q, kind, o.trainer)
	if err != nil {
		return nil, wrapConfigError(fmt.Sprintf("pq geometry D=%d Q=%d S=%d", d, q, s), err)
	}

	rng := o.rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) // nolint gosec
	}

	return &Index{
		name:        name,
		path:        path,
		dim:         d,
		kind:        kind,
		distFn:      distFn,
		alpha:       alpha,
		maxDegree:   m,
		beamWidth:   l,
		compression: compression,
		logger:      o.logger.WithName(name),
		rng:         util.WrapRNG(rng),
		codec:       codec,
	}, nil
}

// pqGeometry derives the quantizer count Q and sub-vector width S from the
// overall compression ratio (original bytes per vector / bytes per code),
// per SPEC_FULL.md §3.
func pqGeometry(d, compression int) (q, s int, err error) {
	if compression <= 0 || compression%4 != 0 {
		return 0, 0, newConfigError("compression must be a positive multiple of 4")
	}
	if (d*4)%compression != 0 {
		return 0, 0, newConfigError("compression does not evenly divide the vector's byte size")
	}
	q = d * 4 / compression
	if q <= 0 || d%q != 0 {
		return 0, 0, newConfigError("compression yields a quantizer count that does not divide D")
	}
	return q, d / q, nil
}

func (idx *Index) filePath() string {
	return filepath.Join(idx.path, idx.name+".graph")
}

// Nearest writes up to K global ids, ascending by distance to query, into
// out and returns how many were written. Returns NotFound if called before
// a successful BuildIndex or with a wrongly-dimensioned query.
func (idx *Index) Nearest(query []float32, out []uint32, k int) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.ready {
		return 0, newNotFound("index has not been built")
	}
	if len(query) != idx.dim {
		return 0, newNotFound("query has %d dims, want %d", len(query), idx.dim)
	}

	sc := idx.acquireScratch()
	defer idx.releaseScratch(sc)

	n, err := idx.graph.Search(sc, query, out, k)
	if err != nil {
		return 0, err
	}
	idx.logger.LogSearch(k, n)
	return n, nil
}

func (idx *Index) acquireScratch() *diskgraph.SearchContext {
	if v := idx.scratchPool.Get(); v != nil {
		return v.(*diskgraph.SearchContext)
	}
	return diskgraph.NewSearchContext(idx.beamWidth, idx.maxDegree)
}

func (idx *Index) releaseScratch(sc *diskgraph.SearchContext) {
	idx.scratchPool.Put(sc)
}

// PQErrorAvg returns the running average percentage error between PQ
// estimates and the precise distances that superseded them during search.
func (idx *Index) PQErrorAvg() float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.graph == nil {
		return 0
	}
	return idx.graph.PQErrorAvg()
}

// ResetPQErrorStat clears the PQ error accumulator.
func (idx *Index) ResetPQErrorStat() {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.graph != nil {
		idx.graph.ResetPQErrorStat()
	}
}

// Close releases the memory-mapped paged file, if one is open.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.graph == nil {
		return nil
	}
	err := idx.graph.Close()
	idx.graph = nil
	idx.ready = false
	return err
}
