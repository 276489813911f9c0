package deltamatrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResized(rows, cols int) *Matrix {
	mx := New()
	mx.Resize(rows, cols)
	return mx
}

func TestSetThenClearCancelsPendingInsert(t *testing.T) {
	mx := newResized(4, 4)
	mx.SetElement(1, 1)
	_, present := mx.Extract(1, 1)
	require.True(t, present)

	mx.ClearElement(1, 1)
	_, present = mx.Extract(1, 1)
	assert.False(t, present)
	assert.Equal(t, 0, mx.DPNVals())
}

func TestClearThenSetCancelsTombstone(t *testing.T) {
	mx := newResized(4, 4)
	mx.SetElement(0, 0)
	mx.Flush()
	require.Equal(t, 1, mx.NVals())

	mx.ClearElement(0, 0)
	assert.Equal(t, 1, mx.DMNVals())

	mx.SetElement(0, 0)
	assert.Equal(t, 0, mx.DMNVals())
	_, present := mx.Extract(0, 0)
	assert.True(t, present)
}

func TestExportEqualsLogicalContents(t *testing.T) {
	mx := newResized(3, 3)
	mx.SetElement(0, 0)
	mx.Flush()
	mx.SetElement(1, 1) // pending insert
	mx.ClearElement(0, 0) // pending delete

	out := mx.Export()
	_, p00 := out.Extract(0, 0)
	_, p11 := out.Extract(1, 1)
	assert.False(t, p00)
	assert.True(t, p11)
	assert.Equal(t, 0, out.DPNVals())
	assert.Equal(t, 0, out.DMNVals())
}

func TestFlushClearsDeltasAndPreservesLogicalContents(t *testing.T) {
	mx := newResized(2, 2)
	mx.SetElement(0, 1)
	before := mx.NVals()

	mx.Flush()

	assert.Equal(t, 0, mx.DPNVals())
	assert.Equal(t, 0, mx.DMNVals())
	assert.Equal(t, before, mx.NVals())
	_, present := mx.Extract(0, 1)
	assert.True(t, present)
}

func TestSetElementClearElementIdempotent(t *testing.T) {
	mx := newResized(2, 2)
	mx.SetElement(0, 0)
	mx.Flush()

	mx.ClearElement(0, 0)
	mx.SetElement(0, 0)
	mx.ClearElement(0, 0)
	mx.SetElement(0, 0)

	_, present := mx.Extract(0, 0)
	assert.True(t, present)
	assert.Equal(t, 0, mx.DMNVals())
}

// TestEWiseAddWithPendingDeltas reproduces spec.md scenario 6: A has a
// flushed (0,0) plus a pending insert at (1,1); B has a flushed (2,2) plus a
// pending insert at (0,1). The sum must contain all four coordinates, with
// C left freshly-flushed.
func TestEWiseAddWithPendingDeltas(t *testing.T) {
	a := newResized(3, 3)
	a.SetElement(0, 0)
	a.Flush()
	a.SetElement(1, 1)

	b := newResized(3, 3)
	b.SetElement(2, 2)
	b.Flush()
	b.SetElement(0, 1)

	c := newResized(3, 3)

	require.NoError(t, EWiseAdd(c, a, b, OrSemiring))

	for _, coord := range [][2]int{{0, 0}, {0, 1}, {1, 1}, {2, 2}} {
		_, present := c.Extract(coord[0], coord[1])
		assert.Truef(t, present, "expected (%d,%d) present", coord[0], coord[1])
	}
	assert.Equal(t, 4, c.NVals())
	assert.Equal(t, 0, c.DPNVals())
	assert.Equal(t, 0, c.DMNVals())
}

func TestEWiseAddDimensionMismatch(t *testing.T) {
	a := newResized(2, 2)
	b := newResized(3, 3)
	c := newResized(2, 2)
	err := EWiseAdd(c, a, b, OrSemiring)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestResizeDropsOutOfBoundsEntries(t *testing.T) {
	mx := newResized(4, 4)
	mx.SetElement(3, 3)
	mx.Flush()

	mx.Resize(2, 2)
	_, present := mx.Extract(3, 3)
	assert.False(t, present)
	assert.Equal(t, 0, mx.NVals())
}
