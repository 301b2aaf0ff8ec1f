package partition

import (
	"context"
	"runtime"
	"testing"

	"github.com/qwwdfsad/xodus/distance"
	"github.com/qwwdfsad/xodus/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaussianGraph(t *testing.T, n, dim, m int, seed int64) (*Graph, *util.RNG) {
	t.Helper()
	rng := util.NewRNG(seed)
	vecs := rng.GenerateGaussianVectors(n, dim)
	flat := make([]float32, 0, n*dim)
	localToGlobal := make([]uint32, n)
	for i, v := range vecs {
		flat = append(flat, v...)
		localToGlobal[i] = uint32(i)
	}
	g, err := New(localToGlobal, flat, dim, m, distance.L2)
	require.NoError(t, err)
	return g, rng
}

func TestBuild_DegreeCapAndNoDuplicates(t *testing.T) {
	g, rng := gaussianGraph(t, 200, 8, 16, 1)
	require.NoError(t, g.Build(context.Background(), 1.2, 32, rng))

	maxDeg := 0
	sumDeg := 0
	for v := 0; v < g.Size(); v++ {
		deg := g.Degree(v)
		assert.LessOrEqual(t, deg, g.MaxDegree())
		assert.GreaterOrEqual(t, deg, 0)

		seen := make(map[int32]bool, deg)
		for _, nb := range g.Edges(v) {
			assert.NotEqual(t, int32(v), nb, "no self-loops")
			assert.False(t, seen[nb], "no duplicate neighbors")
			seen[nb] = true
			assert.GreaterOrEqual(t, int(nb), 0)
			assert.Less(t, int(nb), g.Size())
		}

		if deg > maxDeg {
			maxDeg = deg
		}
		sumDeg += deg
	}

	assert.Equal(t, 16, maxDeg)
	mean := float64(sumDeg) / float64(g.Size())
	assert.GreaterOrEqual(t, mean, 8.0)
	assert.LessOrEqual(t, mean, 16.0)
}

func TestBuild_TrivialSizes(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		g, err := New(nil, nil, 2, 4, distance.L2)
		require.NoError(t, err)
		rng := util.NewRNG(1)
		require.NoError(t, g.Build(context.Background(), 1.2, 4, rng))
	})

	t.Run("single vertex", func(t *testing.T) {
		g, err := New([]uint32{7}, []float32{1, 2}, 2, 4, distance.L2)
		require.NoError(t, err)
		rng := util.NewRNG(1)
		require.NoError(t, g.Build(context.Background(), 1.2, 4, rng))
		assert.Equal(t, 0, g.Degree(0))
		assert.Equal(t, 0, g.Medoid())
	})
}

func TestMedoid_OnALine(t *testing.T) {
	// Vectors at x=0..4 along axis 0: medoid is the middle point, id 2.
	vectors := []float32{
		0, 0, 0,
		1, 0, 0,
		2, 0, 0,
		3, 0, 0,
		4, 0, 0,
	}
	localToGlobal := []uint32{0, 1, 2, 3, 4}
	g, err := New(localToGlobal, vectors, 3, 3, distance.L2)
	require.NoError(t, err)

	assert.Equal(t, 2, g.Medoid())
}

func TestConvertAndSortByGlobalIndex(t *testing.T) {
	// Three local vertices whose global ids are deliberately out of order.
	vectors := []float32{0, 0, 1, 1, 2, 2}
	localToGlobal := []uint32{5, 1, 3}
	g, err := New(localToGlobal, vectors, 2, 2, distance.L2)
	require.NoError(t, err)

	g.writeEdgesLocked(0, []int32{1, 2})
	g.writeEdgesLocked(1, []int32{0})
	g.writeEdgesLocked(2, []int32{0, 1})

	g.ConvertLocalEdgesToGlobal()
	g.SortEdgesByGlobalIndex()

	require.Equal(t, []uint32{1, 3, 5}, g.localToGlobal)

	for i := 1; i < g.Size(); i++ {
		assert.Less(t, g.LocalToGlobal(i-1), g.LocalToGlobal(i))
	}

	for v := 0; v < g.Size(); v++ {
		for _, nb := range g.Edges(v) {
			found := false
			for _, gid := range g.localToGlobal {
				if int32(gid) == nb {
					found = true
					break
				}
			}
			assert.True(t, found, "edge %d must reference a known global id", nb)
		}
	}
}

func TestBuild_DeterministicSingleWorker(t *testing.T) {
	// With GOMAXPROCS pinned to 1 there is exactly one mutator worker, so
	// the build has no concurrent interleaving left to be nondeterministic
	// about: the same seed must reproduce byte-identical adjacency.
	prev := runtime.GOMAXPROCS(1)
	defer runtime.GOMAXPROCS(prev)

	build := func(seed int64) *Graph {
		g, rng := gaussianGraph(t, 64, 4, 8, seed)
		require.NoError(t, g.Build(context.Background(), 1.2, 16, rng))
		return g
	}

	a := build(42)
	b := build(42)

	for v := 0; v < a.Size(); v++ {
		assert.Equal(t, a.Edges(v), b.Edges(v), "vertex %d", v)
	}
}
