package partition

import "sync/atomic"

func loadVersion(v *uint64) uint64 { return atomic.LoadUint64(v) }

func casVersion(v *uint64, old, new uint64) bool {
	return atomic.CompareAndSwapUint64(v, old, new)
}

func addVersion(v *uint64, delta uint64) { atomic.AddUint64(v, delta) }
