// Package pq implements Product Quantization: fitting per-subspace
// codebooks from training vectors, encoding vectors into compact byte
// codes, and scoring codes against a query via precomputed lookup tables
// instead of ever decoding them back to float32.
package pq
