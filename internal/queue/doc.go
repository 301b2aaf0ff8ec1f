// Package queue provides GreedyCandidateQueue, the bounded sorted candidate
// list that drives both build-time pruning and query-time beam search. The
// partition merger's own min-heap is a distinct, simpler shape built
// directly on container/heap; see merge.Merge.
package queue
