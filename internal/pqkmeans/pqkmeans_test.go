package pqkmeans

import (
	"testing"

	"github.com/qwwdfsad/xodus/distance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleCentroids() [][][]float32 {
	// 2 quantizers, 4 codes each, subDim 1.
	return [][][]float32{
		{{0}, {1}, {10}, {11}},
		{{0}, {1}, {10}, {11}},
	}
}

func TestDistanceTables(t *testing.T) {
	tables := DistanceTables(simpleCentroids(), distance.SquaredL2)
	require.Len(t, tables, 2)

	assert.InDelta(t, float32(0), tables[0][0][0], 1e-6)
	assert.InDelta(t, float32(1), tables[0][0][1], 1e-6)
	assert.InDelta(t, float32(100), tables[0][0][2], 1e-6)
	// symmetric
	assert.InDelta(t, tables[0][1][2], tables[0][2][1], 1e-6)
}

func TestCodeDistance(t *testing.T) {
	tables := DistanceTables(simpleCentroids(), distance.SquaredL2)

	a := []byte{0, 0}
	b := []byte{2, 2} // far in both quantizers
	d := CodeDistance(tables, a, b)
	assert.InDelta(t, float32(200), d, 1e-6)

	self := CodeDistance(tables, a, a)
	assert.InDelta(t, float32(0), self, 1e-6)
}

func TestCalculatePartitions_SeparatesClusters(t *testing.T) {
	tables := DistanceTables(simpleCentroids(), distance.SquaredL2)

	codes := [][]byte{
		{0, 0}, {0, 1}, {1, 0}, // cluster near "low" codes
		{2, 2}, {2, 3}, {3, 2}, // cluster near "high" codes
	}

	centroids := CalculatePartitions(tables, codes, 2, 20)
	require.Len(t, centroids, 2)

	firstCluster, _ := FindTwoClosestClusters(tables, codes[0], centroids)
	highCluster, _ := FindTwoClosestClusters(tables, codes[3], centroids)
	assert.NotEqual(t, firstCluster, highCluster)
}

func TestCalculatePartitions_SingleCluster(t *testing.T) {
	tables := DistanceTables(simpleCentroids(), distance.SquaredL2)
	codes := [][]byte{{0, 0}, {1, 1}, {0, 1}}

	centroids := CalculatePartitions(tables, codes, 1, 1)
	require.Len(t, centroids, 1)
	assert.Len(t, centroids[0], 2)
}

func TestFindTwoClosestClusters(t *testing.T) {
	tables := DistanceTables(simpleCentroids(), distance.SquaredL2)
	centroids := [][]byte{{0, 0}, {1, 1}, {2, 2}, {3, 3}}

	first, second := FindTwoClosestClusters(tables, []byte{0, 0}, centroids)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestFindTwoClosestClusters_SingleCentroid(t *testing.T) {
	tables := DistanceTables(simpleCentroids(), distance.SquaredL2)
	centroids := [][]byte{{0, 0}}

	first, second := FindTwoClosestClusters(tables, []byte{1, 1}, centroids)
	assert.Equal(t, 0, first)
	assert.Equal(t, 0, second)
}
