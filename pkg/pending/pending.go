// Package pending implements the staging buffer and bulk commit pipeline
// for newly created nodes and edges (spec §4.3).
//
// Writer operators (CREATE, MERGE) don't materialize entities one at a time;
// they accumulate blueprints into a PendingCreations buffer as they consume
// upstream records, then hand the whole batch to Commit once, at end of
// stream or when the operator tree demands a flush. Commit does the
// expensive part exactly once: resize matrices, register any labels/
// relation-types seen for the first time, materialize every staged entity,
// and enforce constraints.
package pending

import (
	"errors"
	"fmt"

	"github.com/orneryd/nornicdb/pkg/attrs"
	"github.com/orneryd/nornicdb/pkg/deltamatrix"
	"github.com/orneryd/nornicdb/pkg/schema"
)

// ConstraintError wraps the message produced by Schema.EnforceConstraints
// (spec §7: "ConstraintViolation").
type ConstraintError struct {
	SchemaName string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation on %s: %v", e.SchemaName, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// ErrNoActiveCommit is returned when Commit is called on an empty container.
var ErrNoActiveCommit = errors.New("pending: nothing staged to commit")

// NodeBlueprint is one staged node creation: the label names and evaluated
// property map, before schema ids are resolved.
type NodeBlueprint struct {
	Labels     []string
	Properties *attrs.Set
}

// EdgeBlueprint is one staged edge creation.
type EdgeBlueprint struct {
	Relation   string
	Src, Dst   schema.NodeID
	Properties *attrs.Set
}

// PendingCreations is the per-write-operator staging buffer (spec §3:
// "PendingCreations"). A single instance is created once per operator
// instance and reused across every row it processes; Commit clears the
// staged-but-not-yet-materialized slices after each phase so the same
// buffer can accumulate a second batch.
type PendingCreations struct {
	nodesToCreate []NodeBlueprint
	createdNodes  []schema.NodeID

	edgesToCreate []EdgeBlueprint
	createdEdges  []schema.EdgeID
}

// NewPendingCreationsContainer returns an empty staging buffer.
func NewPendingCreationsContainer() *PendingCreations {
	return &PendingCreations{}
}

// AddNode stages a node for creation, returning its position in the batch.
func (p *PendingCreations) AddNode(bp NodeBlueprint) int {
	p.nodesToCreate = append(p.nodesToCreate, bp)
	return len(p.nodesToCreate) - 1
}

// AddEdge stages an edge for creation, returning its position in the batch.
func (p *PendingCreations) AddEdge(bp EdgeBlueprint) int {
	p.edgesToCreate = append(p.edgesToCreate, bp)
	return len(p.edgesToCreate) - 1
}

// PendingNodeCount and PendingEdgeCount report the size of the current
// uncommitted batch.
func (p *PendingCreations) PendingNodeCount() int { return len(p.nodesToCreate) }
func (p *PendingCreations) PendingEdgeCount() int { return len(p.edgesToCreate) }

// CreatedNodes and CreatedEdges return every id assigned by Commit on this
// container, in staging order, accumulated across successive commits.
func (p *PendingCreations) CreatedNodes() []schema.NodeID { return p.createdNodes }
func (p *PendingCreations) CreatedEdges() []schema.EdgeID { return p.createdEdges }

// resetNodes clears the staged (not-yet-committed) node blueprints once
// they've been materialized, readying the container for the next batch
// (spec §4.3: "Clear the staged attributes array"). CreatedNodes is left
// intact: it accumulates across batches for the lifetime of the owning
// operator instance, per spec §3's PendingCreations lifecycle.
func (p *PendingCreations) resetNodes() {
	p.nodesToCreate = p.nodesToCreate[:0]
}

func (p *PendingCreations) resetEdges() {
	p.edgesToCreate = p.edgesToCreate[:0]
}

// CommitCtx is the per-query context Commit needs: graph/schema access plus
// the cooperative error flag constraint violations are reported through
// (spec §6: QueryCtx and ErrorCtx are supplied by the same query context in
// practice — see pkg/schema.Ctx).
type CommitCtx interface {
	schema.QueryCtx
	schema.ErrorCtx
}

// Commit runs the two-phase bulk commit pipeline: node blueprints, node
// materialization, edge blueprints, edge materialization, with the graph's
// matrix sync-policy ping-ponged between RESIZE, NOP, and FLUSH_RESIZE and
// restored on every exit path (spec §4.3, §5).
//
// Commit does not roll back on constraint violation: it records the first
// violation on qc and continues materializing the rest of the current
// phase, matching the upstream contract (spec §4.3, §7) — the caller's
// transaction layer decides whether to abort.
func Commit(qc CommitCtx, hub schema.GraphHub, p *PendingCreations) error {
	if len(p.nodesToCreate) == 0 && len(p.edgesToCreate) == 0 {
		return ErrNoActiveCommit
	}

	release := qc.LockForCommit()
	defer release()

	g := qc.Graph()
	defer g.SetMatrixPolicy(deltamatrix.PolicyFlushResize)

	var firstErr error

	if len(p.nodesToCreate) > 0 {
		g.AllocateNodes(len(p.nodesToCreate))
		g.SetMatrixPolicy(deltamatrix.PolicyResize)
		labelIDs, err := nodeBlueprints(qc.GraphCtx(), p, qc.Stats())
		if err != nil {
			return fmt.Errorf("pending: node blueprints: %w", err)
		}

		g.SetMatrixPolicy(deltamatrix.PolicyNOP)
		if err := nodeCommit(qc, hub, p, labelIDs); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
		p.resetNodes()
	}

	if len(p.edgesToCreate) > 0 {
		g.AllocateEdges(len(p.edgesToCreate))
		g.SetMatrixPolicy(deltamatrix.PolicyResize)
		relIDs, err := edgeBlueprints(qc.GraphCtx(), p)
		if err != nil {
			return fmt.Errorf("pending: edge blueprints: %w", err)
		}

		g.SetMatrixPolicy(deltamatrix.PolicyNOP)
		if err := edgeCommit(qc, hub, p, relIDs); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
		p.resetEdges()
	}

	return firstErr
}

// nodeBlueprints resolves (or lazily creates) the schema for every distinct
// label referenced across the staged nodes, touching the per-label and
// node-label matrices so they resize to the freshly allocated capacity
// (spec §4.3: "NodeBlueprints").
func nodeBlueprints(gc schema.GraphContext, p *PendingCreations, stats *schema.Stats) ([][]int, error) {
	labelIDs := make([][]int, len(p.nodesToCreate))
	g := gc.Graph()

	for i, bp := range p.nodesToCreate {
		ids := make([]int, 0, len(bp.Labels))
		for _, name := range bp.Labels {
			s, ok := gc.GetSchema(name, schema.KindNode)
			if !ok {
				var err error
				s, err = gc.AddSchema(name, schema.KindNode, true)
				if err != nil {
					return nil, fmt.Errorf("pending: creating label schema %q: %w", name, err)
				}
				stats.LabelsAdded++
			}
			g.GetLabelMatrix(s.ID)
			ids = append(ids, s.ID)
		}
		g.GetNodeLabelMatrix()
		labelIDs[i] = ids
	}
	return labelIDs, nil
}

// nodeCommit materializes every staged node via the GraphHub, then enforces
// every constraint of every one of its labels; on the first violation it
// records the error on qc and stops *reporting* further violations, but
// keeps materializing the remaining staged nodes (spec §4.3, §5, §7).
func nodeCommit(qc CommitCtx, hub schema.GraphHub, p *PendingCreations, labelIDs [][]int) error {
	gc := qc.GraphCtx()
	var violation error

	for i, bp := range p.nodesToCreate {
		id, err := hub.CreateNode(gc, labelIDs[i], bp.Properties, true)
		if err != nil {
			return fmt.Errorf("pending: CreateNode: %w", err)
		}
		p.createdNodes = append(p.createdNodes, id)
		qc.Stats().NodesCreated++
		if bp.Properties != nil {
			qc.Stats().PropertiesSet += bp.Properties.Count()
		}

		if violation != nil {
			continue // already reported; keep materializing without re-checking
		}
		node := &nodeEntity{attrs: bp.Properties}
		for _, sid := range labelIDs[i] {
			s, ok := gc.GetSchemaByID(sid, schema.KindNode)
			if !ok {
				continue
			}
			if err := s.EnforceConstraints(node); err != nil {
				violation = &ConstraintError{SchemaName: s.Name, Err: err}
				qc.SetError("%v", violation)
				break
			}
		}
	}
	return violation
}

// edgeBlueprints is nodeBlueprints' edge analogue: resolves or creates each
// relation-type schema once, touching the per-relation and adjacency
// matrices. Unlike node labels, newly created relation-types are not
// counted in Stats: LabelsAdded is a node-label counter only, matching the
// original's statistics (scenario 1 asserts labels_added=1 for a single
// node label, never for a relation-type).
func edgeBlueprints(gc schema.GraphContext, p *PendingCreations) ([]int, error) {
	relIDs := make([]int, len(p.edgesToCreate))
	g := gc.Graph()

	for i, bp := range p.edgesToCreate {
		s, ok := gc.GetSchema(bp.Relation, schema.KindRelation)
		if !ok {
			var err error
			s, err = gc.AddSchema(bp.Relation, schema.KindRelation, true)
			if err != nil {
				return nil, fmt.Errorf("pending: creating relation schema %q: %w", bp.Relation, err)
			}
		}
		g.GetRelationMatrix(s.ID, false)
		g.GetAdjacencyMatrix(false)
		relIDs[i] = s.ID
	}
	return relIDs, nil
}

// edgeCommit is nodeCommit's edge analogue.
func edgeCommit(qc CommitCtx, hub schema.GraphHub, p *PendingCreations, relIDs []int) error {
	gc := qc.GraphCtx()
	var violation error

	for i, bp := range p.edgesToCreate {
		id, err := hub.CreateEdge(gc, bp.Src, bp.Dst, relIDs[i], bp.Properties, true)
		if err != nil {
			return fmt.Errorf("pending: CreateEdge: %w", err)
		}
		p.createdEdges = append(p.createdEdges, id)
		qc.Stats().RelationshipsCreated++
		if bp.Properties != nil {
			qc.Stats().PropertiesSet += bp.Properties.Count()
		}

		if violation != nil {
			continue
		}
		s, ok := gc.GetSchemaByID(relIDs[i], schema.KindRelation)
		if !ok {
			continue
		}
		edge := &nodeEntity{attrs: bp.Properties}
		if err := s.EnforceConstraints(edge); err != nil {
			violation = &ConstraintError{SchemaName: s.Name, Err: err}
			qc.SetError("%v", violation)
		}
	}
	return violation
}

// nodeEntity adapts a raw attribute set to schema.Entity for constraint
// enforcement; both nodes and edges are validated identically.
type nodeEntity struct {
	attrs *attrs.Set
}

func (n *nodeEntity) Attributes() *attrs.Set { return n.attrs }
