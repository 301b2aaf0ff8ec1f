// Package pqkmeans runs k-means entirely in PQ code space: it clusters
// vectors that have already been encoded into Product Quantization codes,
// using precomputed per-quantizer sub-distance tables instead of ever
// decoding a code back into a float32 vector. The index build uses it
// twice: once with k=1 to locate a single global centroid (an estimate
// used to pick the medoid), and once with k=P to split the corpus into P
// build partitions.
package pqkmeans

import (
	"math"
	"math/rand"

	"github.com/qwwdfsad/xodus/distance"
)

// SubDistanceTables holds, for each of the M quantizers, the pairwise
// distance between every pair of that quantizer's 256 codebook centroids.
// Because PQ distance is additive across quantizers, summing one lookup per
// quantizer gives the total distance between two codes without ever
// touching a float32 vector.
type SubDistanceTables [][256][256]float32

// DistanceTables builds SubDistanceTables from a PQ codebook: centroids is
// laid out quantizer-major, centroids[q][c] is the subDim-wide centroid
// vector for code c of quantizer q.
func DistanceTables(centroids [][][]float32, distFunc distance.Func) SubDistanceTables {
	m := len(centroids)
	tables := make(SubDistanceTables, m)

	inf := float32(math.Inf(1))
	for q := 0; q < m; q++ {
		codes := centroids[q]
		n := len(codes)
		// Bytes past the end of a codebook shorter than 256 address no
		// centroid; an infinite distance keeps CalculatePartitions from
		// ever picking them.
		for i := range tables[q] {
			for j := range tables[q][i] {
				if i >= n || j >= n {
					tables[q][i][j] = inf
				}
			}
		}
		for i := 0; i < n; i++ {
			tables[q][i][i] = 0
			for j := i + 1; j < n; j++ {
				d := distFunc(codes[i], codes[j])
				tables[q][i][j] = d
				tables[q][j][i] = d
			}
		}
	}

	return tables
}

// CodeDistance sums the additive per-quantizer distance between two PQ
// codes of M bytes each.
func CodeDistance(tables SubDistanceTables, a, b []byte) float32 {
	var sum float32
	for q, t := range tables {
		sum += t[a[q]][b[q]]
	}
	return sum
}

// CalculatePartitions runs k-means over code space and returns k centroid
// codes (flattened k*M bytes). A code-space centroid can't be an average of
// bytes, so the update step instead picks, independently per quantizer
// (additivity makes this exact), the single byte value minimizing total
// distance to every code currently assigned to that cluster.
func CalculatePartitions(tables SubDistanceTables, codes [][]byte, k int, maxIter int) [][]byte {
	n := len(codes)
	m := len(tables)

	centroids := make([][]byte, k)
	perm := rand.Perm(n)
	for i := 0; i < k; i++ {
		src := codes[perm[i%n]]
		centroids[i] = append([]byte(nil), src...)
	}

	assignments := make([]int, n)

	for iter := 0; iter < maxIter; iter++ {
		changed := false

		for i := 0; i < n; i++ {
			best, bestDist := 0, float32(math.MaxFloat32)
			for c := 0; c < k; c++ {
				d := CodeDistance(tables, codes[i], centroids[c])
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if iter > 0 && !changed {
			break
		}

		members := make([][]int, k)
		for i := 0; i < n; i++ {
			members[assignments[i]] = append(members[assignments[i]], i)
		}

		for c := 0; c < k; c++ {
			if len(members[c]) == 0 {
				continue
			}
			for q := 0; q < m; q++ {
				var bestByte byte
				bestSum := float32(math.MaxFloat32)
				for b := 0; b < 256; b++ {
					var sum float32
					for _, idx := range members[c] {
						sum += tables[q][b][codes[idx][q]]
					}
					if sum < bestSum {
						bestSum = sum
						bestByte = byte(b)
					}
				}
				centroids[c][q] = bestByte
			}
		}
	}

	return centroids
}

// FindTwoClosestClusters returns the indices of the two nearest cluster
// centroids to a code, used to assign each vector to its primary partition
// plus one overlap partition so a vector near a partition boundary is
// reachable from either side during beam search.
func FindTwoClosestClusters(tables SubDistanceTables, code []byte, centroids [][]byte) (first, second int) {
	first, second = -1, -1
	var firstDist, secondDist float32 = math.MaxFloat32, math.MaxFloat32

	for c, centroid := range centroids {
		d := CodeDistance(tables, code, centroid)
		switch {
		case d < firstDist:
			second, secondDist = first, firstDist
			first, firstDist = c, d
		case d < secondDist:
			second, secondDist = c, d
		}
	}

	if second < 0 {
		second = first
	}

	return first, second
}
