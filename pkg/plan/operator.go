package plan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Kind is the closed enum of operator kinds this runtime dispatches over
// (spec §9: "Map to tagged variants... with a per-kind dispatch").
type Kind uint8

const (
	KindUnknown Kind = iota
	KindScan
	KindFilter
	KindProject
	KindAggregate
	KindCreate
	KindMerge
	KindUpdate
	KindDelete
	KindExpandInto
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "Scan"
	case KindFilter:
		return "Filter"
	case KindProject:
		return "Project"
	case KindAggregate:
		return "Aggregate"
	case KindCreate:
		return "Create"
	case KindMerge:
		return "Merge"
	case KindUpdate:
		return "Update"
	case KindDelete:
		return "Delete"
	case KindExpandInto:
		return "ExpandInto"
	default:
		return "Unknown"
	}
}

// IsWriter reports whether operators of this kind mutate the graph, hence
// must be reset after all readers (spec glossary: "Writer operator").
func (k Kind) IsWriter() bool {
	switch k {
	case KindCreate, KindMerge, KindUpdate, KindDelete:
		return true
	default:
		return false
	}
}

// Stats accumulates the per-operator counters Profile reports.
type Stats struct {
	RecordsProduced int64
	Elapsed         time.Duration
}

// Operator is the function-vector contract every concrete operator
// implements (spec §4.5). Embedding *OperatorBase supplies Base and a no-op
// default Reset that concrete operators may override; Init, Consume, Clone,
// Free and String are supplied by each concrete operator.
type Operator interface {
	Base() *OperatorBase

	// Init performs one-shot lazy initialization; invoked the first time
	// Consume is called (guarded by op_initialized).
	Init() error
	// Consume produces the next output record, or nil to signal exhaustion.
	Consume() (*Record, error)
	// Reset rewinds operator state so a subsequent Consume re-emits from the
	// beginning. The default OperatorBase.Reset is a no-op.
	Reset() error
	// Clone performs a structural deep copy of this operator (and its
	// subtree) under newPlan.
	Clone(newPlan *ExecutionPlan) Operator
	// Free releases operator-specific state.
	Free()
	// String appends a one-line description.
	String() string
}

// OperatorBase is the shared state every concrete operator embeds (spec
// §4.5: "type, name, plan, parent, children, modifies, writer-flag,
// initialized-flag, ... stats").
type OperatorBase struct {
	kind     Kind
	name     string
	plan     *ExecutionPlan
	parent   Operator
	children []Operator

	modifies    []string
	initialized bool

	stats Stats
}

// NewOperatorBase constructs the embeddable base for a concrete operator.
func NewOperatorBase(kind Kind, name string, children ...Operator) *OperatorBase {
	return &OperatorBase{kind: kind, name: name, children: children}
}

// Base returns b itself, so that a concrete operator embedding
// *OperatorBase satisfies the Operator interface's Base() method without
// writing any boilerplate.
func (b *OperatorBase) Base() *OperatorBase { return b }

func (b *OperatorBase) Kind() Kind           { return b.kind }
func (b *OperatorBase) Name() string         { return b.name }
func (b *OperatorBase) Plan() *ExecutionPlan { return b.plan }
func (b *OperatorBase) Parent() Operator     { return b.parent }
func (b *OperatorBase) Children() []Operator { return b.children }
func (b *OperatorBase) Modifies() []string   { return b.modifies }
func (b *OperatorBase) IsWriter() bool       { return b.kind.IsWriter() }
func (b *OperatorBase) Initialized() bool    { return b.initialized }
func (b *OperatorBase) MarkInitialized()     { b.initialized = true }
func (b *OperatorBase) Stats() *Stats        { return &b.stats }

// Reset is the default no-op rewind used by operators that do not override it.
func (b *OperatorBase) Reset() error { return nil }

// AddChild appends child to this operator's children, setting child's
// parent pointer. Each operator exclusively owns its children (spec §4.5).
func (b *OperatorBase) AddChild(self Operator, child Operator) {
	child.Base().parent = self
	b.children = append(b.children, child)
}

// bindToPlan is the standard BindOpToPlan assignment (spec §4.5). Operators
// whose kind requires rebinding internal expression contexts (PROJECT,
// AGGREGATE) override via PlanBinder.
func (b *OperatorBase) bindToPlan(self Operator, p *ExecutionPlan) {
	b.plan = p
	if binder, ok := self.(PlanBinder); ok {
		binder.OnBindToPlan(p)
	}
}

// PlanBinder is implemented by operator kinds that need to rebind internal
// state (e.g. expression contexts) when attached to a plan, standing in for
// PROJECT/AGGREGATE's bespoke BindOpToPlan hook.
type PlanBinder interface {
	OnBindToPlan(p *ExecutionPlan)
}

// baseToString is the default String() body: "<Kind> | <Name>".
func (b *OperatorBase) baseToString() string {
	var sb strings.Builder
	sb.WriteString(b.kind.String())
	if b.name != "" {
		sb.WriteString(" | ")
		sb.WriteString(b.name)
	}
	return sb.String()
}

// OpBaseConsume pulls from child, the single shared entry point every
// concrete operator uses instead of calling child.Consume() directly, so
// that lazy Init is enforced uniformly.
func OpBaseConsume(child Operator) (*Record, error) {
	base := child.Base()
	if !base.initialized {
		if err := child.Init(); err != nil {
			return nil, fmt.Errorf("plan: %s: init: %w", base.baseToString(), err)
		}
		base.initialized = true
	}
	return child.Consume()
}

var tracer = otel.Tracer("nornicdb/pkg/plan")

// Profile wraps Consume, accumulating row counts and elapsed time into the
// operator's Stats and emitting an OpenTelemetry span per call (spec §4.5:
// "profile(op) -> Record").
func Profile(ctx context.Context, op Operator) (*Record, error) {
	ctx, span := tracer.Start(ctx, op.Base().baseToString(), trace.WithAttributes())
	defer span.End()

	start := time.Now()
	rec, err := OpBaseConsume(op)
	op.Base().stats.Elapsed += time.Since(start)
	if rec != nil {
		op.Base().stats.RecordsProduced++
	}
	return rec, err
}

// PropagateReset resets every reader operator in the subtree rooted at root
// immediately, collects writer operators, and resets them only after the
// full traversal completes — so writers observe freshly-reset reader state
// (spec §4.5, §8). This corrects the upstream bug where the root operator
// was reset once per writer instead of each writer being reset itself (spec
// §9): every writer collected here is reset directly, never the root.
func PropagateReset(root Operator) error {
	var writers []Operator
	if err := propagateResetCollect(root, &writers); err != nil {
		return err
	}
	for _, w := range writers {
		if err := w.Reset(); err != nil {
			return fmt.Errorf("plan: reset %s: %w", w.Base().baseToString(), err)
		}
	}
	return nil
}

func propagateResetCollect(op Operator, writers *[]Operator) error {
	for _, c := range op.Base().Children() {
		if err := propagateResetCollect(c, writers); err != nil {
			return err
		}
	}
	if op.Base().IsWriter() {
		*writers = append(*writers, op)
		return nil
	}
	if err := op.Reset(); err != nil {
		return fmt.Errorf("plan: reset %s: %w", op.Base().baseToString(), err)
	}
	return nil
}
