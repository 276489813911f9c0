// Package deltamatrix implements the mutable sparse-matrix representation
// that backs graph topology: label membership, the node-label mapping, and
// relationship adjacency.
//
// A Matrix is a triple (M, Δ+, Δ-) of sparse matrices of identical
// dimensions. M is the flushed base; Δ+ holds entries pending insertion; Δ-
// marks entries pending deletion. The logical contents are always
// (M \ Δ-) ∪ Δ+, letting readers and a single writer share a matrix without
// rebuilding it on every mutation.
package deltamatrix

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when two matrices passed to EWiseAdd do
// not share identical dimensions.
var ErrDimensionMismatch = errors.New("deltamatrix: dimension mismatch")

// SyncPolicy governs whether matrix accessors may resize and/or flush the
// delta overlay. It is ambient state owned by the graph, not the matrix
// itself (spec: "attribute of the owning graph, not the matrix").
type SyncPolicy uint8

const (
	// PolicyNOP assumes dimensions and flush state are already correct; no
	// work is performed by accessors.
	PolicyNOP SyncPolicy = iota
	// PolicyResize resizes to current graph capacity but never flushes.
	PolicyResize
	// PolicyFlushResize may both flush deltas and resize; the steady state
	// for readers.
	PolicyFlushResize
)

// Entry is a boolean or indexed cell value. For boolean (label/adjacency)
// matrices only Present matters; for indexed (relation) matrices Val carries
// the edge id stored at that cell.
type Entry struct {
	Present bool
	Val     uint64
}

// sparse is a row-major map-of-maps cell store, built directly on the
// standard library rather than a pack dependency — see DESIGN.md for why no example library fits an online
// insert/delete sparse-boolean-matrix overlay.
type sparse struct {
	rows map[int]map[int]Entry
}

func newSparse() *sparse {
	return &sparse{rows: make(map[int]map[int]Entry)}
}

func (s *sparse) get(i, j int) (Entry, bool) {
	row, ok := s.rows[i]
	if !ok {
		return Entry{}, false
	}
	e, ok := row[j]
	return e, ok
}

func (s *sparse) set(i, j int, e Entry) {
	row, ok := s.rows[i]
	if !ok {
		row = make(map[int]Entry)
		s.rows[i] = row
	}
	row[j] = e
}

func (s *sparse) clear(i, j int) {
	row, ok := s.rows[i]
	if !ok {
		return
	}
	delete(row, j)
	if len(row) == 0 {
		delete(s.rows, i)
	}
}

func (s *sparse) nvals() int {
	n := 0
	for _, row := range s.rows {
		n += len(row)
	}
	return n
}

func (s *sparse) forEach(fn func(i, j int, e Entry)) {
	for i, row := range s.rows {
		for j, e := range row {
			fn(i, j, e)
		}
	}
}

// Matrix is the delta-overlaid sparse matrix (M, Δ+, Δ-).
type Matrix struct {
	rows, cols int
	m          *sparse // flushed base
	plus       *sparse // Δ+ pending insertions
	minus      *sparse // Δ- pending deletions
}

// New creates a zero-dimension matrix. Call Resize before use.
func New() *Matrix {
	return &Matrix{m: newSparse(), plus: newSparse(), minus: newSparse()}
}

// Resize grows (or shrinks) the matrix's logical dimensions. Entries outside
// the new bounds are dropped from all three planes.
func (mx *Matrix) Resize(rows, cols int) {
	mx.rows, mx.cols = rows, cols
	drop := func(s *sparse) {
		for i, row := range s.rows {
			if i >= rows {
				delete(s.rows, i)
				continue
			}
			for j := range row {
				if j >= cols {
					delete(row, j)
				}
			}
		}
	}
	drop(mx.m)
	drop(mx.plus)
	drop(mx.minus)
}

// Nrows returns the matrix's current row dimension.
func (mx *Matrix) Nrows() int { return mx.rows }

// Ncols returns the matrix's current column dimension.
func (mx *Matrix) Ncols() int { return mx.cols }

// NVals returns the number of logically-present entries: |M \ Δ-| + |Δ+|.
func (mx *Matrix) NVals() int {
	n := 0
	mx.m.forEach(func(i, j int, _ Entry) {
		if _, tomb := mx.minus.get(i, j); !tomb {
			n++
		}
	})
	n += mx.plus.nvals()
	return n
}

// DPNVals returns |Δ+|, the number of pending insertions.
func (mx *Matrix) DPNVals() int { return mx.plus.nvals() }

// DMNVals returns |Δ-|, the number of pending deletions.
func (mx *Matrix) DMNVals() int { return mx.minus.nvals() }

// SetElement inserts (i, j) with the boolean-true entry into the overlay.
// If the cell is already present in M and not tombstoned, this is a no-op.
// If the cell was tombstoned in Δ-, the set cancels the tombstone rather
// than duplicating the entry into Δ+ (Δ+ ∩ M = ∅ is preserved).
func (mx *Matrix) SetElement(i, j int) {
	mx.SetElementValue(i, j, 0)
}

// SetElementValue is SetElement for an indexed matrix, storing val at (i, j).
func (mx *Matrix) SetElementValue(i, j int, val uint64) {
	entry := Entry{Present: true, Val: val}
	if _, inM := mx.m.get(i, j); inM {
		if _, tomb := mx.minus.get(i, j); tomb {
			// cancel the pending deletion; logically present again via M
			mx.minus.clear(i, j)
		}
		return
	}
	mx.plus.set(i, j, entry)
}

// ClearElement marks (i, j) for deletion. If the cell is present in M and
// not already tombstoned, it is inserted into Δ-. If the cell only exists in
// Δ+ (never flushed to M), the clear simply removes it from Δ+ rather than
// tombstoning it, since Δ- only ever needs to shadow entries in M.
func (mx *Matrix) ClearElement(i, j int) {
	if _, inPlus := mx.plus.get(i, j); inPlus {
		mx.plus.clear(i, j)
		return
	}
	if _, inM := mx.m.get(i, j); inM {
		mx.minus.set(i, j, Entry{Present: true})
	}
}

// Extract reports whether (i, j) is logically present, consulting Δ+, Δ-,
// and M in that priority order.
func (mx *Matrix) Extract(i, j int) (Entry, bool) {
	if e, ok := mx.plus.get(i, j); ok {
		return e, true
	}
	if _, tomb := mx.minus.get(i, j); tomb {
		return Entry{}, false
	}
	if e, ok := mx.m.get(i, j); ok {
		return e, true
	}
	return Entry{}, false
}

// Export materializes the logical matrix (M \ Δ-) ∪ Δ+ into a freshly
// allocated standalone Matrix with no pending deltas. Ownership of the
// result belongs to the caller.
func (mx *Matrix) Export() *Matrix {
	out := New()
	out.Resize(mx.rows, mx.cols)
	mx.m.forEach(func(i, j int, e Entry) {
		if _, tomb := mx.minus.get(i, j); tomb {
			return
		}
		out.m.set(i, j, e)
	})
	mx.plus.forEach(func(i, j int, e Entry) {
		out.m.set(i, j, e)
	})
	return out
}

// Flush applies Δ+ and Δ- into M and clears both deltas.
func (mx *Matrix) Flush() {
	mx.minus.forEach(func(i, j int, _ Entry) {
		mx.m.clear(i, j)
	})
	mx.plus.forEach(func(i, j int, e Entry) {
		mx.m.set(i, j, e)
	})
	mx.plus = newSparse()
	mx.minus = newSparse()
}

// hasPendingDeltas reports whether either overlay plane holds entries.
func (mx *Matrix) hasPendingDeltas() bool {
	return mx.plus.nvals() > 0 || mx.minus.nvals() > 0
}

// Semiring combines two present entries at the same coordinate during
// EWiseAdd. For boolean label/adjacency matrices the natural choice is
// "logical or" (either operand present implies the sum is present); callers
// with indexed matrices can supply a combiner that prefers one side's Val.
type Semiring func(a, b Entry) Entry

// OrSemiring is the default boolean semiring: presence in either operand
// implies presence in the sum.
func OrSemiring(a, b Entry) Entry {
	if a.Present {
		return a
	}
	return b
}

// EWiseAdd computes c = a ⊕ b using semiring, writing the result directly
// into c's base M. This is a *materializing* operation: because either
// operand may carry non-empty deltas, a plain base-only sum would miss
// pending inserts and retain tombstoned entries. Policy: any operand with a
// non-empty overlay is first Export-ed into a temporary standalone matrix;
// an operand with empty deltas is summed directly from its base. C's
// previous base contents are discarded and replaced by the sum; C's delta
// counters are reset to zero, so callers must treat C as freshly-flushed
// afterward (overlay-preserving semantics are NOT provided here).
func EWiseAdd(c, a, b *Matrix, semiring Semiring) error {
	if a.rows != b.rows || a.cols != b.cols || a.rows != c.rows || a.cols != c.cols {
		return fmt.Errorf("%w: a=%dx%d b=%dx%d c=%dx%d", ErrDimensionMismatch,
			a.rows, a.cols, b.rows, b.cols, c.rows, c.cols)
	}
	if semiring == nil {
		semiring = OrSemiring
	}

	aBase := a.m
	if a.hasPendingDeltas() {
		aBase = a.Export().m
	}
	bBase := b.m
	if b.hasPendingDeltas() {
		bBase = b.Export().m
	}

	result := newSparse()
	aBase.forEach(func(i, j int, e Entry) {
		result.set(i, j, e)
	})
	bBase.forEach(func(i, j int, e Entry) {
		if existing, ok := result.get(i, j); ok {
			result.set(i, j, semiring(existing, e))
		} else {
			result.set(i, j, e)
		}
	})

	c.m = result
	c.plus = newSparse()
	c.minus = newSparse()
	return nil
}
