// Package distance implements the two distance kinds the index supports,
// L2 and NegDot, as pure functions over equal-length vector slices, plus a
// batched 1x4 form used by the partition builder and the disk graph to
// amortize load and prefetch cost across four candidates at a time.
//
// Both kinds agree on the convention "smaller is closer": L2 is already
// non-negative, and NegDot negates the inner product so that the closest
// vectors still sort first.
package distance
