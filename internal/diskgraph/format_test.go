package diskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordSize_AlignedTo4Bytes(t *testing.T) {
	// D=3, M=5: raw = 3*4 + 5*4 + 1 = 33, aligned up to 36.
	assert.Equal(t, 36, recordSize(3, 5))
	// D=4, M=4: raw = 16+16+1 = 33, aligned up to 36.
	assert.Equal(t, 36, recordSize(4, 4))
}

func TestPageCount_Ceiling(t *testing.T) {
	assert.Equal(t, 0, pageCount(0, 10))
	assert.Equal(t, 1, pageCount(1, 10))
	assert.Equal(t, 1, pageCount(10, 10))
	assert.Equal(t, 2, pageCount(11, 10))
	assert.Equal(t, 2, pageCount(20, 10))
	assert.Equal(t, 3, pageCount(21, 10))
}

func TestLayout_OffsetsAreMonotonicAndPacked(t *testing.T) {
	l := newLayout(8, 16, DefaultPageSize)
	assert.Greater(t, l.verticesPerPage, 0)

	prev := l.offset(0)
	for gid := uint32(1); gid < uint32(3*l.verticesPerPage); gid++ {
		off := l.offset(gid)
		assert.Greater(t, off, prev)
		prev = off
	}

	assert.Equal(t, int64(0), l.vectorOffset())
	assert.Equal(t, int64(8*4), l.edgesOffset())
	assert.Equal(t, int64(8*4+16*4), l.degreeOffset())
}
