// Package plan implements the pull-based execution-plan operator runtime:
// OperatorBase, ExecutionPlan, the record pool, and the alias->slot mapping
// (spec §4.5).
package plan

// SlotType tags the kind of value a Record slot carries.
type SlotType uint8

const (
	SlotUnknown SlotType = iota
	SlotScalar
	SlotNode
	SlotEdge
	SlotPath
)

// Slot is one cell of a Record.
type Slot struct {
	Type  SlotType
	Value any
}

// Record is a fixed-width vector of slots flowing through the operator
// tree. Slots are addressed by the dense index the owning plan's mapping
// assigned to an alias (spec glossary: "Record").
type Record struct {
	owner *ExecutionPlan
	slots []Slot
}

// Owner returns the plan that allocated r and to which it is returned on
// release.
func (r *Record) Owner() *ExecutionPlan { return r.owner }

// Len returns the number of slots in the record.
func (r *Record) Len() int { return len(r.slots) }

// Get returns the slot at idx.
func (r *Record) Get(idx int) Slot { return r.slots[idx] }

// Set assigns the slot at idx.
func (r *Record) Set(idx int, s Slot) { r.slots[idx] = s }

// SetScalar is a convenience wrapper for the common scalar case.
func (r *Record) SetScalar(idx int, v any) { r.slots[idx] = Slot{Type: SlotScalar, Value: v} }

// reset clears all slots to their zero value without shrinking the backing
// array, so a released record can be reused by a later borrower.
func (r *Record) reset() {
	for i := range r.slots {
		r.slots[i] = Slot{}
	}
}

// recordPool is the per-plan, non-thread-safe free list backing
// CreateRecord/DeleteRecord (spec §5: "per-plan and not thread-safe").
type recordPool struct {
	width int
	free  []*Record
}

func newRecordPool(width int) *recordPool {
	return &recordPool{width: width}
}

func (p *recordPool) borrow(owner *ExecutionPlan) *Record {
	if n := len(p.free); n > 0 {
		r := p.free[n-1]
		p.free = p.free[:n-1]
		r.reset()
		return r
	}
	return &Record{owner: owner, slots: make([]Slot, p.width)}
}

func (p *recordPool) release(r *Record) {
	p.free = append(p.free, r)
}

// growTo expands every pooled (and future) record to width slots. Called
// when the plan's mapping grows past the pool's current width.
func (p *recordPool) growTo(width int) {
	if width <= p.width {
		return
	}
	p.width = width
	for _, r := range p.free {
		if len(r.slots) < width {
			grown := make([]Slot, width)
			copy(grown, r.slots)
			r.slots = grown
		}
	}
}
