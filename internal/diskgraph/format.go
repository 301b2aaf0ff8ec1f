package diskgraph

// DefaultPageSize is the page size used by Create when the caller doesn't
// override it. 4 KiB matches a typical filesystem block, keeping one page
// read/write a single syscall-sized unit.
const DefaultPageSize = 4096

const pageHeaderSize = 4 // u32 little-endian vertex count N, repeated on every page

// recordSize returns R = align(D*4 + M*4 + 1) to the next 4-byte boundary,
// so every record starts on a float32-aligned offset.
func recordSize(dim, maxDegree int) int {
	raw := dim*4 + maxDegree*4 + 1
	return (raw + 3) &^ 3
}

// verticesPerPage returns ⌊(pageSize-4)/R⌋.
func verticesPerPage(pageSize, recSize int) int {
	return (pageSize - pageHeaderSize) / recSize
}

// pageCount returns ⌈n/verticesPerPage⌉, using the arithmetic-ceiling form
// rather than the operator-precedence bug present in the original source.
func pageCount(n, vpp int) int {
	if n == 0 {
		return 0
	}
	return (n + vpp - 1) / vpp
}

// layout bundles the geometry derived from (D, M, pageSize) so Graph can
// compute any record's byte offset in O(1).
type layout struct {
	dim, maxDegree      int
	pageSize, recSize   int
	verticesPerPage     int
}

func newLayout(dim, maxDegree, pageSize int) layout {
	recSize := recordSize(dim, maxDegree)
	return layout{
		dim:             dim,
		maxDegree:       maxDegree,
		pageSize:        pageSize,
		recSize:         recSize,
		verticesPerPage: verticesPerPage(pageSize, recSize),
	}
}

// offset returns the byte offset of global vertex gid's record within the
// paged file.
func (l layout) offset(gid uint32) int64 {
	page := int64(gid) / int64(l.verticesPerPage)
	rec := int64(gid) % int64(l.verticesPerPage)
	return page*int64(l.pageSize) + pageHeaderSize + rec*int64(l.recSize)
}

// vectorOffset, edgesOffset, and degreeOffset are the intra-record byte
// offsets of each field, relative to l.offset(gid).
func (l layout) vectorOffset() int64 { return 0 }
func (l layout) edgesOffset() int64  { return int64(l.dim * 4) }
func (l layout) degreeOffset() int64 { return int64(l.dim*4 + l.maxDegree*4) }
