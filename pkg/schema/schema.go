// Package schema defines the external-collaborator contracts the execution
// core depends on: GraphContext, Graph, Schema, GraphHub, QueryCtx, and
// ErrorCtx (spec §6). These are interfaces only here; pkg/pending and
// pkg/plan program against them. The in-process implementations in this
// repository are Registry (registry.go), Hub (hub.go) and Ctx (queryctx.go),
// used by its own tests and cmd/planviz.
package schema

import (
	"github.com/orneryd/nornicdb/pkg/attrs"
	"github.com/orneryd/nornicdb/pkg/deltamatrix"
)

// Kind distinguishes node-label schemas from relationship-type schemas.
type Kind uint8

const (
	KindNode Kind = iota
	KindRelation
)

func (k Kind) String() string {
	if k == KindRelation {
		return "RELATION"
	}
	return "NODE"
}

// NodeID and EdgeID are the small integer identifiers assigned to
// materialized entities.
type NodeID uint64
type EdgeID uint64

// Entity is anything a Constraint can be evaluated against: a materialized
// node or edge, identified by its attribute set.
type Entity interface {
	Attributes() *attrs.Set
}

// Constraint validates an Entity, returning a human-readable violation
// message (per spec §6, "the caller owns and frees err_msg" — in Go this is
// simply the error's message).
type Constraint interface {
	// Name identifies the constraint for diagnostics.
	Name() string
	// Enforce returns a non-nil error describing the violation, or nil if
	// entity satisfies the constraint.
	Enforce(entity Entity) error
}

// Schema is a lazily-created (id, name, kind, constraints) record. Its id is
// a monotonically assigned small integer used to index per-label and
// per-relation matrices.
type Schema struct {
	ID          int
	Name        string
	Kind        Kind
	Constraints []Constraint
}

// EnforceConstraints runs every constraint attached to the schema in order,
// stopping at (and returning) the first violation.
func (s *Schema) EnforceConstraints(entity Entity) error {
	for _, c := range s.Constraints {
		if err := c.Enforce(entity); err != nil {
			return err
		}
	}
	return nil
}

// GraphContext resolves schema by name or id and exposes the shared Graph
// handle, per spec §6.
type GraphContext interface {
	GetSchema(name string, kind Kind) (*Schema, bool)
	GetSchemaByID(id int, kind Kind) (*Schema, bool)
	// AddSchema creates and registers a new schema, returning it with a
	// freshly assigned id. enforceExists requests that the schema be
	// visible to concurrent readers immediately (matching the original's
	// boolean "newMatrix" creation-visibility flag).
	AddSchema(name string, kind Kind, enforceExists bool) (*Schema, error)
	Graph() Graph
}

// Graph exposes the matrices and allocation primitives the commit pipeline
// and query operators need, per spec §6.
type Graph interface {
	AllocateNodes(n int)
	AllocateEdges(n int)

	MatrixPolicy() deltamatrix.SyncPolicy
	SetMatrixPolicy(deltamatrix.SyncPolicy)

	// GetLabelMatrix returns the boolean matrix for a node-label schema id,
	// resizing it to current graph capacity as a side effect unless the
	// matrix policy is NOP (per spec §4.3: "touching the per-label matrix
	// ... so they resize").
	GetLabelMatrix(schemaID int) *deltamatrix.Matrix
	// GetNodeLabelMatrix returns the node->label mapping matrix.
	GetNodeLabelMatrix() *deltamatrix.Matrix
	// GetRelationMatrix returns the indexed matrix for a relation schema id.
	GetRelationMatrix(schemaID int, transposed bool) *deltamatrix.Matrix
	// GetAdjacencyMatrix returns the graph-wide adjacency matrix.
	GetAdjacencyMatrix(transposed bool) *deltamatrix.Matrix
}

// GraphHub materializes entities into the graph: assigning ids, installing
// labels, and attaching attribute sets.
type GraphHub interface {
	CreateNode(gc GraphContext, labels []int, attributes *attrs.Set, emitEvents bool) (NodeID, error)
	CreateEdge(gc GraphContext, src, dst NodeID, relation int, attributes *attrs.Set, emitEvents bool) (EdgeID, error)
}

// Stats holds the result-set statistics (labels added, nodes created, ...)
// that the commit pipeline threads through a query.
type Stats struct {
	NodesCreated         int
	RelationshipsCreated int
	LabelsAdded          int
	PropertiesSet        int
}

// QueryCtx is the ambient per-query context: graph access, the write lock,
// and the running statistics.
type QueryCtx interface {
	Graph() Graph
	GraphCtx() GraphContext
	// LockForCommit acquires the graph's writer-exclusive lock and returns
	// the function that releases it; callers must defer the result.
	LockForCommit() func()
	Stats() *Stats
}

// ErrorCtx carries cooperative error-flag state across an operator tree
// (spec §5: "a boolean error-encountered flag").
type ErrorCtx interface {
	SetError(format string, args ...any)
	EncounteredError() bool
	Err() error
}
