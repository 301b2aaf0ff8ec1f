// Package xodus implements an on-disk approximate nearest-neighbor vector
// index in the DiskANN/Vamana family, augmented with Product Quantization
// for in-memory distance estimation during query search (the build's
// candidate search uses precise distances).
//
// A build partitions the dataset, runs a parallel Vamana graph construction
// per partition, and merges the partitions into a single paged,
// memory-mapped file. Queries perform a best-first beam search over that
// file, scoring candidates with PQ estimates and confirming the most
// promising ones with precise distances read straight out of the mapping.
//
// # Quick start
//
//	reader := xodus.NewInMemoryReader(vectors, nil)
//	idx, err := xodus.New("products", "./data", reader.Dimensions(), distance.L2,
//	        1.2, 64, 128, 32)
//	if err != nil {
//	        // ...
//	}
//	defer idx.Close()
//
//	if err := idx.BuildIndex(context.Background(), 4, reader); err != nil {
//	        // ...
//	}
//
//	out := make([]uint32, 10)
//	n, err := idx.Nearest(query, out, 10)
package xodus
