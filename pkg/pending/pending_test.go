package pending

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicdb/pkg/attrs"
	"github.com/orneryd/nornicdb/pkg/schema"
)

var (
	nameAttr = attrs.AttrID("name")
	ageAttr  = attrs.AttrID("age")
	sinceAtt = attrs.AttrID("since")
	emailAtt = attrs.AttrID("email")
)

func setupCommit(t *testing.T) (*schema.Registry, *schema.Hub, *schema.Ctx) {
	t.Helper()
	r := schema.NewRegistry()
	h := schema.NewHub()
	ctx := schema.NewCtx(r)
	return r, h, ctx
}

func propSet(t *testing.T, pairs ...any) *attrs.Set {
	t.Helper()
	var set *attrs.Set
	for i := 0; i < len(pairs); i += 2 {
		id := pairs[i].(attrs.ID)
		val := pairs[i+1].(attrs.Value)
		var err error
		set, err = set.Add(id, val)
		require.NoError(t, err)
	}
	return set
}

// TestCommitNodeCreateWithOneLabel reproduces spec.md scenario 1.
func TestCommitNodeCreateWithOneLabel(t *testing.T) {
	r, h, ctx := setupCommit(t)

	_, ok := r.GetSchema("Person", schema.KindNode)
	require.False(t, ok, "precondition: no Person schema yet")

	p := NewPendingCreationsContainer()
	p.AddNode(NodeBlueprint{
		Labels: []string{"Person"},
		Properties: propSet(t,
			nameAttr, attrs.Value{Kind: attrs.KindString, Str: "Ada"},
			ageAttr, attrs.Value{Kind: attrs.KindInt64, Int64: 36},
		),
	})

	require.NoError(t, Commit(ctx, h, p))

	person, ok := r.GetSchema("Person", schema.KindNode)
	require.True(t, ok)
	assert.Equal(t, 0, person.ID)
	assert.Equal(t, 1, ctx.Stats().LabelsAdded)

	ids := p.CreatedNodes()
	require.Len(t, ids, 1)
	assert.Equal(t, schema.NodeID(0), ids[0])

	n, ok := h.Node(ids[0])
	require.True(t, ok)
	assert.Equal(t, "Ada", n.Attributes().Get(nameAttr).Str)
	assert.Equal(t, int64(36), n.Attributes().Get(ageAttr).Int64)

	labelMx := r.Graph().GetLabelMatrix(person.ID)
	_, present := labelMx.Extract(0, 0)
	assert.True(t, present)
}

// TestCommitEdgeCreateBetweenTwoPrecedingNodes reproduces spec.md scenario 2.
func TestCommitEdgeCreateBetweenTwoPrecedingNodes(t *testing.T) {
	r, h, ctx := setupCommit(t)

	nodes := NewPendingCreationsContainer()
	nodes.AddNode(NodeBlueprint{Labels: []string{"Person"}, Properties: propSet(t, nameAttr, attrs.Value{Kind: attrs.KindString, Str: "Ada"})})
	nodes.AddNode(NodeBlueprint{Labels: []string{"Person"}, Properties: propSet(t, nameAttr, attrs.Value{Kind: attrs.KindString, Str: "Bob"})})
	require.NoError(t, Commit(ctx, h, nodes))
	ada, bob := nodes.CreatedNodes()[0], nodes.CreatedNodes()[1]

	edges := NewPendingCreationsContainer()
	edges.AddEdge(EdgeBlueprint{
		Relation:   "KNOWS",
		Src:        ada,
		Dst:        bob,
		Properties: propSet(t, sinceAtt, attrs.Value{Kind: attrs.KindInt64, Int64: 2020}),
	})
	require.NoError(t, Commit(ctx, h, edges))

	knows, ok := r.GetSchema("KNOWS", schema.KindRelation)
	require.True(t, ok)

	edgeIDs := edges.CreatedEdges()
	require.Len(t, edgeIDs, 1)
	assert.Equal(t, schema.EdgeID(0), edgeIDs[0])

	adjMx := r.Graph().GetAdjacencyMatrix(false)
	entry, present := adjMx.Extract(int(ada), int(bob))
	require.True(t, present)
	assert.Equal(t, uint64(edgeIDs[0]), entry.Val)

	relMx := r.Graph().GetRelationMatrix(knows.ID, false)
	_, present = relMx.Extract(int(ada), int(bob))
	assert.True(t, present)

	e, ok := h.Edge(edgeIDs[0])
	require.True(t, ok)
	assert.Equal(t, int64(2020), e.Attributes().Get(sinceAtt).Int64)
}

// TestCommitConstraintViolationStillMaterializesBoth reproduces spec.md
// scenario 5: a uniqueness violation is reported but does not block
// materialization of either node.
func TestCommitConstraintViolationStillMaterializesBoth(t *testing.T) {
	r, h, ctx := setupCommit(t)

	person, err := r.AddSchema("Person", schema.KindNode, false)
	require.NoError(t, err)
	person.Constraints = append(person.Constraints, newUniqueEmailConstraint())

	p := NewPendingCreationsContainer()
	p.AddNode(NodeBlueprint{Labels: []string{"Person"}, Properties: propSet(t, emailAtt, attrs.Value{Kind: attrs.KindString, Str: "x@y"})})
	p.AddNode(NodeBlueprint{Labels: []string{"Person"}, Properties: propSet(t, emailAtt, attrs.Value{Kind: attrs.KindString, Str: "x@y"})})

	err = Commit(ctx, h, p)
	require.Error(t, err)
	assert.True(t, ctx.EncounteredError())

	ids := p.CreatedNodes()
	require.Len(t, ids, 2, "both nodes must be materialized despite the violation")
	_, ok := h.Node(ids[0])
	assert.True(t, ok)
	_, ok = h.Node(ids[1])
	assert.True(t, ok)
}

func TestCommitWithNothingStagedReturnsErrNoActiveCommit(t *testing.T) {
	_, h, ctx := setupCommit(t)
	p := NewPendingCreationsContainer()
	err := Commit(ctx, h, p)
	assert.ErrorIs(t, err, ErrNoActiveCommit)
}

// uniqueEmailConstraint enforces a uniqueness constraint over the email
// attribute across every entity it has seen, used to reproduce spec.md
// scenario 5.
type uniqueEmailConstraint struct {
	seen map[string]bool
}

func newUniqueEmailConstraint() *uniqueEmailConstraint {
	return &uniqueEmailConstraint{seen: make(map[string]bool)}
}

func (c *uniqueEmailConstraint) Name() string { return "unique_email" }

func (c *uniqueEmailConstraint) Enforce(entity schema.Entity) error {
	v := entity.Attributes().Get(emailAtt)
	if v.IsNull() {
		return nil
	}
	if c.seen[v.Str] {
		return fmt.Errorf("email %q already exists", v.Str)
	}
	c.seen[v.Str] = true
	return nil
}

// --- ConvertPropertyMap ---

type fakeEvaluator struct {
	values map[string]attrs.Value
}

func (f *fakeEvaluator) Evaluate(expr string, _ any) (attrs.Value, error) {
	v, ok := f.values[expr]
	if !ok {
		return attrs.Value{}, fmt.Errorf("unknown expr %q", expr)
	}
	return v, nil
}

type fakeResolver struct{}

func (fakeResolver) ResolveAttribute(name string) attrs.ID { return attrs.AttrID(name) }

// TestConvertPropertyMapSkipsNullWhenAllowed reproduces spec.md scenario 3.
func TestConvertPropertyMapSkipsNullWhenAllowed(t *testing.T) {
	eval := &fakeEvaluator{values: map[string]attrs.Value{
		"$name":   {Kind: attrs.KindString, Str: "Eve"},
		"$middle": attrs.Null(),
	}}
	m := PropertyMap{{Key: "name", Expr: "$name"}, {Key: "middle", Expr: "$middle"}}

	set, err := ConvertPropertyMap(eval, fakeResolver{}, nil, m, false)
	require.NoError(t, err)
	require.Equal(t, 1, set.Count())
	assert.Equal(t, "Eve", set.Get(attrs.AttrID("name")).Str)
}

// TestConvertPropertyMapRaisesOnNullWhenFailOnNull reproduces spec.md
// scenario 4.
func TestConvertPropertyMapRaisesOnNullWhenFailOnNull(t *testing.T) {
	eval := &fakeEvaluator{values: map[string]attrs.Value{"$name": attrs.Null()}}
	m := PropertyMap{{Key: "name", Expr: "$name"}}

	set, err := ConvertPropertyMap(eval, fakeResolver{}, nil, m, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, attrs.ErrNullPropertyValue)
	assert.Nil(t, set)
}

func TestConvertPropertyMapRejectsInvalidType(t *testing.T) {
	eval := &fakeEvaluator{values: map[string]attrs.Value{"$m": {Kind: attrs.KindMap}}}
	m := PropertyMap{{Key: "m", Expr: "$m"}}

	_, err := ConvertPropertyMap(eval, fakeResolver{}, nil, m, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, attrs.ErrInvalidPropertyValue)
}

func TestConvertPropertyMapRejectsInvalidArrayElement(t *testing.T) {
	eval := &fakeEvaluator{values: map[string]attrs.Value{
		"$arr": {Kind: attrs.KindArray, Array: []attrs.Value{
			{Kind: attrs.KindInt64, Int64: 1},
			{Kind: attrs.KindMap},
		}},
	}}
	m := PropertyMap{{Key: "arr", Expr: "$arr"}}

	_, err := ConvertPropertyMap(eval, fakeResolver{}, nil, m, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, attrs.ErrInvalidPropertyValue)
}
