package pq

import (
	"context"
	"fmt"

	"github.com/qwwdfsad/xodus/distance"
	"github.com/qwwdfsad/xodus/internal/kmeans"
	"github.com/qwwdfsad/xodus/internal/pqkmeans"
)

// Codes is the cardinality of every sub-codebook: one byte per quantizer
// addresses exactly 256 centroids.
const Codes = 256

// KMeansTrainer fits k centroids from dim-wide training vectors. PQCodec
// consumes it through this narrow interface so the clustering algorithm
// backing codebook training is swappable; internal/kmeans.TrainKMeans is
// the default, injected by New when no trainer is supplied.
type KMeansTrainer interface {
	Train(ctx context.Context, vectors []float32, dim, k int, kind distance.Kind, maxIter int) ([]float32, error)
}

type lloydsTrainer struct{}

func (lloydsTrainer) Train(ctx context.Context, vectors []float32, dim, k int, kind distance.Kind, maxIter int) ([]float32, error) {
	return kmeans.TrainKMeans(ctx, vectors, dim, k, kind, maxIter)
}

// Codec fits, encodes, and scores Product Quantization codes for vectors
// of dimension D, split into Q quantizers of S=D/Q floats each.
type Codec struct {
	d, q, s   int
	kind      distance.Kind
	trainer   KMeansTrainer
	distFunc  distance.Func
	codebooks [][][]float32 // [quantizer][code][S]
}

// New constructs a Codec for vectors of dimension d, split into q
// quantizers. trainer may be nil, in which case the default Lloyd's
// implementation is used.
func New(d, q int, kind distance.Kind, trainer KMeansTrainer) (*Codec, error) {
	if q <= 0 || d <= 0 || d%q != 0 {
		return nil, fmt.Errorf("pq: dimension %d is not divisible by quantizer count %d", d, q)
	}

	distFunc, err := distance.Provider(kind)
	if err != nil {
		return nil, err
	}

	if trainer == nil {
		trainer = lloydsTrainer{}
	}

	return &Codec{
		d:        d,
		q:        q,
		s:        d / q,
		kind:     kind,
		trainer:  trainer,
		distFunc: distFunc,
	}, nil
}

// D returns the full vector dimension.
func (c *Codec) D() int { return c.d }

// Q returns the quantizer count.
func (c *Codec) Q() int { return c.q }

// S returns the sub-vector width of a single quantizer.
func (c *Codec) S() int { return c.s }

// Fit trains the Q sub-codebooks from a flat vectors buffer (n*D floats),
// running k-means independently over each quantizer's column slice.
func (c *Codec) Fit(ctx context.Context, vectors []float32, maxIter int) error {
	n := len(vectors) / c.d
	if n == 0 {
		return fmt.Errorf("pq: fit requires at least one training vector")
	}

	codebooks := make([][][]float32, c.q)

	for quant := 0; quant < c.q; quant++ {
		column := make([]float32, n*c.s)
		for i := 0; i < n; i++ {
			src := vectors[i*c.d+quant*c.s : i*c.d+(quant+1)*c.s]
			copy(column[i*c.s:(i+1)*c.s], src)
		}

		k := Codes
		if n < k {
			k = n
		}

		flat, err := c.trainer.Train(ctx, column, c.s, k, c.kind, maxIter)
		if err != nil {
			return fmt.Errorf("pq: training quantizer %d: %w", quant, err)
		}

		centroids := make([][]float32, k)
		for i := 0; i < k; i++ {
			centroids[i] = flat[i*c.s : (i+1)*c.s]
		}
		// Pad out to Codes entries by repeating the last centroid so a code
		// byte always addresses a valid centroid even when there were
		// fewer training vectors than codes.
		for len(centroids) < Codes {
			centroids = append(centroids, centroids[len(centroids)-1])
		}

		codebooks[quant] = centroids
	}

	c.codebooks = codebooks
	return nil
}

// Encode picks, for every quantizer, the codebook entry minimizing the
// sub-distance to the vector's corresponding column slice.
func (c *Codec) Encode(vector []float32) []byte {
	code := make([]byte, c.q)
	for quant := 0; quant < c.q; quant++ {
		sub := vector[quant*c.s : (quant+1)*c.s]
		best, bestDist := 0, c.distFunc(sub, c.codebooks[quant][0])
		for i := 1; i < len(c.codebooks[quant]); i++ {
			d := c.distFunc(sub, c.codebooks[quant][i])
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
		code[quant] = byte(best)
	}
	return code
}

// Decode concatenates the code's per-quantizer centroids back into a
// D-wide float32 vector.
func (c *Codec) Decode(code []byte) []float32 {
	out := make([]float32, c.d)
	for quant := 0; quant < c.q; quant++ {
		copy(out[quant*c.s:(quant+1)*c.s], c.codebooks[quant][code[quant]])
	}
	return out
}

// BuildLookupTable precomputes, for every (quantizer, code) pair, the
// sub-distance between query's column slice and that codebook entry. The
// result is laid out quantizer-major: table[q*Codes+c].
func (c *Codec) BuildLookupTable(query []float32) []float32 {
	table := make([]float32, c.q*Codes)
	for quant := 0; quant < c.q; quant++ {
		sub := query[quant*c.s : (quant+1)*c.s]
		base := quant * Codes
		for code, centroid := range c.codebooks[quant] {
			table[base+code] = c.distFunc(sub, centroid)
		}
	}
	return table
}

// Estimate sums the Q table lookups addressed by code into a single
// distance estimate, without ever touching a float32 vector.
func (c *Codec) Estimate(code []byte, table []float32) float32 {
	var sum float32
	for quant, b := range code {
		sum += table[quant*Codes+int(b)]
	}
	return sum
}

// DistanceTables returns the pairwise sub-centroid distance tables used by
// PartitionAssign and by internal/pqkmeans to cluster in code space.
func (c *Codec) DistanceTables() pqkmeans.SubDistanceTables {
	return pqkmeans.DistanceTables(c.codebooks, c.distFunc)
}

// PartitionAssign returns the two partition centroid codes closest to code
// under PQ distance. If there is only a single partition centroid both
// return values are equal; otherwise they are always distinct.
func (c *Codec) PartitionAssign(code []byte, partitionCentroidCodes [][]byte) (p1, p2 int) {
	tables := c.DistanceTables()
	return pqkmeans.FindTwoClosestClusters(tables, code, partitionCentroidCodes)
}
