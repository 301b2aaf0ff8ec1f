// Package simd provides the scalar fallback vector-distance kernels used by
// the distance package.
//
// The real machine-specific SIMD kernels (AVX/NEON) are an external,
// swappable collaborator by design; this package only supplies the generic
// Go implementation behind the same dotImpl/squaredL2Impl indirection the
// optimized variants would plug into.
package simd
