package merge

import (
	"testing"

	"github.com/qwwdfsad/xodus/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGraph struct {
	globalIDs []uint32
	edges     [][]int32
}

func (f *fakeGraph) Size() int                     { return len(f.globalIDs) }
func (f *fakeGraph) LocalToGlobal(i int) uint32     { return f.globalIDs[i] }
func (f *fakeGraph) Edges(i int) []int32            { return f.edges[i] }

type fakeWriter struct {
	records map[uint32][]int32
	order   []uint32
	synced  bool
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{records: make(map[uint32][]int32)}
}

func (w *fakeWriter) WriteEdges(gid uint32, edges []int32) error {
	cp := append([]int32(nil), edges...)
	w.records[gid] = cp
	w.order = append(w.order, gid)
	return nil
}

func (w *fakeWriter) Sync() error {
	w.synced = true
	return nil
}

func TestMerge_UnionsOverlappingPartitions(t *testing.T) {
	// gid 0 lives in both partitions with different neighbor sets; gid 1
	// and gid 2 live in only one partition each.
	p0 := &fakeGraph{
		globalIDs: []uint32{0, 2},
		edges:     [][]int32{{1}, {0}},
	}
	p1 := &fakeGraph{
		globalIDs: []uint32{0, 1},
		edges:     [][]int32{{2}, {0}},
	}

	w := newFakeWriter()
	rng := util.NewRNG(1)
	require.NoError(t, Merge(w, []PartitionGraph{p0, p1}, 4, rng))

	assert.True(t, w.synced)
	assert.Equal(t, []uint32{0, 1, 2}, w.order)
	assert.ElementsMatch(t, []int32{1, 2}, w.records[0])
	assert.Equal(t, []int32{0}, w.records[1])
	assert.Equal(t, []int32{0}, w.records[2])
}

func TestMerge_CapsUnionToMaxDegree(t *testing.T) {
	p0 := &fakeGraph{
		globalIDs: []uint32{0},
		edges:     [][]int32{{1, 2, 3, 4, 5}},
	}

	w := newFakeWriter()
	rng := util.NewRNG(7)
	require.NoError(t, Merge(w, []PartitionGraph{p0}, 3, rng))

	assert.Len(t, w.records[0], 3)
}

func TestMerge_DetectsGlobalIDGap(t *testing.T) {
	p0 := &fakeGraph{
		globalIDs: []uint32{0, 2}, // id 1 is never covered
		edges:     [][]int32{{}, {}},
	}

	w := newFakeWriter()
	rng := util.NewRNG(1)
	err := Merge(w, []PartitionGraph{p0}, 4, rng)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGlobalIDGap)
}

func TestMerge_Idempotent(t *testing.T) {
	p0 := &fakeGraph{
		globalIDs: []uint32{0, 1},
		edges:     [][]int32{{1}, {0}},
	}
	p1 := &fakeGraph{
		globalIDs: []uint32{0, 1},
		edges:     [][]int32{{1}, {0}},
	}

	run := func(seed int64) map[uint32][]int32 {
		w := newFakeWriter()
		rng := util.NewRNG(seed)
		require.NoError(t, Merge(w, []PartitionGraph{p0, p1}, 4, rng))
		return w.records
	}

	a := run(99)
	b := run(99)
	assert.Equal(t, a, b)
}
