package plan

import "fmt"

// mapping is the plan-wide alias->slot dictionary (spec glossary: "Plan
// mapping"). Slot ids are dense and assigned in insertion order; once
// assigned an id never changes for the lifetime of the plan.
type mapping struct {
	index map[string]int
	order []string
}

func newMapping() *mapping {
	return &mapping{index: make(map[string]int)}
}

// idFor returns the existing slot id for alias, or allocates a new dense id
// if alias is unseen.
func (m *mapping) idFor(alias string) int {
	if id, ok := m.index[alias]; ok {
		return id
	}
	id := len(m.order)
	m.index[alias] = id
	m.order = append(m.order, alias)
	return id
}

func (m *mapping) lookup(alias string) (int, bool) {
	id, ok := m.index[alias]
	return id, ok
}

func (m *mapping) width() int { return len(m.order) }

// ExecutionPlan owns the record pool and the alias->slot mapping shared by
// every operator in the tree (spec §4.5: "ExecutionPlan").
type ExecutionPlan struct {
	root Operator

	mapping *mapping
	pool    *recordPool
}

// NewExecutionPlan creates an empty plan with no root operator.
func NewExecutionPlan() *ExecutionPlan {
	return &ExecutionPlan{
		mapping: newMapping(),
		pool:    newRecordPool(0),
	}
}

// SetRoot installs op as the plan's root and binds the whole subtree to the
// plan via BindOpToPlan.
func (p *ExecutionPlan) SetRoot(op Operator) {
	p.root = op
	bindSubtree(op, p)
}

// Root returns the plan's root operator, or nil if none was set.
func (p *ExecutionPlan) Root() Operator { return p.root }

func bindSubtree(op Operator, p *ExecutionPlan) {
	op.Base().bindToPlan(op, p)
	for _, c := range op.Base().Children() {
		bindSubtree(c, p)
	}
}

// Modifies declares that op writes alias into outgoing records, allocating a
// dense slot in the plan's mapping if alias is new. Returns the stable slot
// id (spec §4.5: "Modifies").
func (p *ExecutionPlan) Modifies(op *OperatorBase, alias string) int {
	id := p.mapping.idFor(alias)
	op.modifies = appendUnique(op.modifies, alias)
	p.pool.growTo(p.mapping.width())
	return id
}

// AliasModifier declares alias as a synonym of an already-registered
// existing alias; both resolve to the same slot id.
func (p *ExecutionPlan) AliasModifier(op *OperatorBase, existing, alias string) (int, error) {
	id, ok := p.mapping.lookup(existing)
	if !ok {
		return 0, fmt.Errorf("plan: AliasModifier: %q is not a registered alias", existing)
	}
	p.mapping.index[alias] = id
	op.modifies = appendUnique(op.modifies, alias)
	return id, nil
}

// Aware reports whether alias exists anywhere in the plan's mapping.
func (p *ExecutionPlan) Aware(alias string) (int, bool) {
	return p.mapping.lookup(alias)
}

// ChildrenAware reports whether any descendant of op (inclusive) declares
// alias via its Modifies list — a structural proof, distinct from Aware's
// plan-wide lookup (spec §4.5).
func ChildrenAware(op Operator, alias string) (int, bool) {
	for _, m := range op.Base().modifies {
		if m == alias {
			if id, ok := op.Base().plan.mapping.lookup(alias); ok {
				return id, true
			}
		}
	}
	for _, c := range op.Base().Children() {
		if id, ok := ChildrenAware(c, alias); ok {
			return id, true
		}
	}
	return 0, false
}

// CreateRecord borrows a record from the plan's pool.
func (p *ExecutionPlan) CreateRecord() *Record {
	return p.pool.borrow(p)
}

// DeleteRecord returns r to its owning plan's pool.
func DeleteRecord(r *Record) {
	if r == nil || r.owner == nil {
		return
	}
	r.owner.pool.release(r)
}

// CloneRecord borrows a new record from r's owner and copies its slots
// shallowly.
func CloneRecord(r *Record) *Record {
	clone := r.owner.CreateRecord()
	copy(clone.slots, r.slots)
	return clone
}

// DeepCloneRecord is CloneRecord, except slot values that implement Cloner
// are deep-copied rather than shared.
func DeepCloneRecord(r *Record) *Record {
	clone := r.owner.CreateRecord()
	for i, s := range r.slots {
		if c, ok := s.Value.(Cloner); ok {
			s.Value = c.Clone()
		}
		clone.slots[i] = s
	}
	return clone
}

// Cloner is implemented by slot values that own heap state requiring a deep
// copy under DeepCloneRecord (e.g. a node's attribute set).
type Cloner interface {
	Clone() any
}

func appendUnique(list []string, alias string) []string {
	for _, a := range list {
		if a == alias {
			return list
		}
	}
	return append(list, alias)
}
