package distance

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/qwwdfsad/xodus/internal/simd"
)

// Kind selects which of the two supported distance kinds a Func computes.
type Kind uint8

const (
	// L2 is the squared Euclidean distance. Never negative.
	L2 Kind = iota
	// NegDot is the negated inner product, so that "smaller is closer"
	// holds for both kinds.
	NegDot
)

func (k Kind) String() string {
	switch k {
	case L2:
		return "L2"
	case NegDot:
		return "NegDot"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Func computes the distance between two equal-length in-memory vectors.
type Func func(a, b []float32) float32

// FuncBytes computes the distance between an in-memory vector and a D-wide
// little-endian float32 record read directly out of raw at byte offset off,
// so a caller holding a memory-mapped page never has to materialize a
// []float32 copy just to score a candidate.
type FuncBytes func(a []float32, raw []byte, off int) float32

// SquaredL2 returns Σ(aᵢ-bᵢ)².
func SquaredL2(a, b []float32) float32 {
	return simd.SquaredL2(a, b)
}

// NegDotProduct returns -Σaᵢ·bᵢ.
func NegDotProduct(a, b []float32) float32 {
	return -simd.Dot(a, b)
}

// Provider returns the Func implementing the given Kind.
func Provider(k Kind) (Func, error) {
	switch k {
	case L2:
		return SquaredL2, nil
	case NegDot:
		return NegDotProduct, nil
	default:
		return nil, fmt.Errorf("distance: unsupported kind %v", k)
	}
}

// ProviderBytes returns the FuncBytes implementing the given Kind.
func ProviderBytes(k Kind) (FuncBytes, error) {
	switch k {
	case L2:
		return squaredL2Bytes, nil
	case NegDot:
		return negDotBytes, nil
	default:
		return nil, fmt.Errorf("distance: unsupported kind %v", k)
	}
}

func squaredL2Bytes(a []float32, raw []byte, off int) float32 {
	var sum float32
	for i, av := range a {
		bv := math.Float32frombits(binary.LittleEndian.Uint32(raw[off+i*4:]))
		d := av - bv
		sum += d * d
	}
	return sum
}

func negDotBytes(a []float32, raw []byte, off int) float32 {
	var sum float32
	for i, av := range a {
		bv := math.Float32frombits(binary.LittleEndian.Uint32(raw[off+i*4:]))
		sum += av * bv
	}
	return -sum
}

// Batch4 computes dist(query,a), dist(query,b), dist(query,c), dist(query,d)
// for a given Kind and writes the four results into out[0:4]. This is the
// mandated 1x4 batched form: the partition builder and the disk graph use
// it to keep four independent candidate lookups in flight at once.
func Batch4(k Kind, query, a, b, c, d []float32, out []float32) {
	fn, err := Provider(k)
	if err != nil {
		panic(err)
	}
	simd.Batch4(fn, query, a, b, c, d, out)
}

// Batch4Bytes is the byte-offset counterpart of Batch4: offA..offD are
// offsets into raw at which four D-wide little-endian float32 records live.
func Batch4Bytes(k Kind, query []float32, raw []byte, offA, offB, offC, offD int, out []float32) {
	fn, err := ProviderBytes(k)
	if err != nil {
		panic(err)
	}
	out[0] = fn(query, raw, offA)
	out[1] = fn(query, raw, offB)
	out[2] = fn(query, raw, offC)
	out[3] = fn(query, raw, offD)
}
