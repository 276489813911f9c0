package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testOp is a minimal Operator used only by this package's tests. It emits
// a fixed number of records and records every Reset call so tests can assert
// on ordering.
type testOp struct {
	*OperatorBase
	emit       int
	emitted    int
	resetOrder *[]string
}

func newTestOp(kind Kind, name string, order *[]string, children ...Operator) *testOp {
	return &testOp{OperatorBase: NewOperatorBase(kind, name, children...), resetOrder: order}
}

func (t *testOp) Init() error { return nil }

func (t *testOp) Consume() (*Record, error) {
	if t.emitted >= t.emit {
		return nil, nil
	}
	t.emitted++
	return t.Plan().CreateRecord(), nil
}

func (t *testOp) Reset() error {
	if t.resetOrder != nil {
		*t.resetOrder = append(*t.resetOrder, t.Name())
	}
	t.emitted = 0
	return nil
}

func (t *testOp) Clone(newPlan *ExecutionPlan) Operator {
	clone := newTestOp(t.Kind(), t.Name(), t.resetOrder)
	clone.emit = t.emit
	return clone
}

func (t *testOp) Free() {}

func (t *testOp) String() string { return t.baseToString() }

func TestModifiesAllocatesDenseMonotonicSlots(t *testing.T) {
	p := NewExecutionPlan()
	op := newTestOp(KindScan, "scan", nil)
	p.SetRoot(op)

	id1 := p.Modifies(op.OperatorBase, "n")
	id2 := p.Modifies(op.OperatorBase, "m")
	id1Again := p.Modifies(op.OperatorBase, "n")

	assert.Equal(t, 0, id1)
	assert.Equal(t, 1, id2)
	assert.Equal(t, id1, id1Again, "Modifies must return the same id for an already-registered alias")
}

func TestAliasModifierMapsToExistingSlot(t *testing.T) {
	p := NewExecutionPlan()
	op := newTestOp(KindProject, "project", nil)
	p.SetRoot(op)

	id := p.Modifies(op.OperatorBase, "n")
	aliasID, err := p.AliasModifier(op.OperatorBase, "n", "person")
	require.NoError(t, err)
	assert.Equal(t, id, aliasID)

	resolved, ok := p.Aware("person")
	require.True(t, ok)
	assert.Equal(t, id, resolved)
}

func TestAliasModifierRequiresExistingAlias(t *testing.T) {
	p := NewExecutionPlan()
	op := newTestOp(KindProject, "project", nil)
	p.SetRoot(op)

	_, err := p.AliasModifier(op.OperatorBase, "nope", "alias")
	assert.Error(t, err)
}

func TestAwareIsPlanWideAndChildrenAwareIsStructural(t *testing.T) {
	p := NewExecutionPlan()
	leaf := newTestOp(KindScan, "scan", nil)
	root := newTestOp(KindProject, "project", nil, leaf)
	p.SetRoot(root)

	p.Modifies(leaf.OperatorBase, "n")

	_, ok := p.Aware("n")
	assert.True(t, ok, "Aware looks up the plan-wide mapping regardless of which operator declared it")

	_, ok = ChildrenAware(root, "n")
	assert.True(t, ok, "ChildrenAware must find n via the leaf descendant's Modifies list")

	_, ok = ChildrenAware(leaf, "missing")
	assert.False(t, ok)
}

func TestPropagateResetResetsReadersBeforeWriters(t *testing.T) {
	var order []string

	leaf := newTestOp(KindScan, "scan", &order)
	writer := newTestOp(KindCreate, "create", &order, leaf)
	filter := newTestOp(KindFilter, "filter", &order, writer)

	p := NewExecutionPlan()
	p.SetRoot(filter)

	require.NoError(t, PropagateReset(filter))

	require.Len(t, order, 3)
	assert.Equal(t, "create", order[2], "the writer must be reset last")
	assert.ElementsMatch(t, []string{"scan", "filter"}, order[:2])
}

func TestPropagateResetNeverResetsRootInPlaceOfWriter(t *testing.T) {
	// Regression test for the upstream bug (spec §9): the root operator
	// itself must never be reset more than once, even when the subtree
	// contains multiple writers.
	var order []string

	w1 := newTestOp(KindCreate, "create1", &order)
	w2 := newTestOp(KindCreate, "create2", &order)
	root := newTestOp(KindAggregate, "root", &order, w1, w2)

	p := NewExecutionPlan()
	p.SetRoot(root)

	require.NoError(t, PropagateReset(root))

	rootResets := 0
	for _, name := range order {
		if name == "root" {
			rootResets++
		}
	}
	assert.Equal(t, 1, rootResets, "root must be reset exactly once, not once per writer")
	assert.Equal(t, []string{"root", "create1", "create2"}, order)
}

func TestRecordPoolBorrowAndRelease(t *testing.T) {
	p := NewExecutionPlan()
	op := newTestOp(KindScan, "scan", nil)
	p.SetRoot(op)
	p.Modifies(op.OperatorBase, "n")

	r1 := p.CreateRecord()
	require.Equal(t, 1, r1.Len())
	r1.SetScalar(0, 42)

	DeleteRecord(r1)
	r2 := p.CreateRecord()
	assert.Same(t, r1, r2, "a released record must be reused by the next borrow")
	assert.Nil(t, r2.Get(0).Value, "a reused record must come back cleared")
}

func TestCloneRecordCopiesSlotsIndependently(t *testing.T) {
	p := NewExecutionPlan()
	op := newTestOp(KindScan, "scan", nil)
	p.SetRoot(op)
	p.Modifies(op.OperatorBase, "n")

	r := p.CreateRecord()
	r.SetScalar(0, "hello")

	clone := CloneRecord(r)
	clone.SetScalar(0, "world")

	assert.Equal(t, "hello", r.Get(0).Value)
	assert.Equal(t, "world", clone.Get(0).Value)
}

func TestOpBaseConsumeRunsInitExactlyOnce(t *testing.T) {
	p := NewExecutionPlan()
	op := newTestOp(KindScan, "scan", nil)
	op.emit = 2
	p.SetRoot(op)

	initCalls := 0
	wrapped := &initCountingOp{testOp: op, onInit: func() { initCalls++ }}

	_, err := OpBaseConsume(wrapped)
	require.NoError(t, err)
	_, err = OpBaseConsume(wrapped)
	require.NoError(t, err)

	assert.Equal(t, 1, initCalls, "Init must be guarded by op_initialized and run exactly once")
}

type initCountingOp struct {
	*testOp
	onInit func()
}

func (o *initCountingOp) Init() error {
	o.onInit()
	return o.testOp.Init()
}
