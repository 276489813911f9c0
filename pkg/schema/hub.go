package schema

import (
	"sync"

	"github.com/orneryd/nornicdb/pkg/attrs"
)

// Node is a materialized graph node: an id, its resolved label-schema ids,
// and its attribute set.
type Node struct {
	ID     NodeID
	Labels []int
	Attrs  *attrs.Set
}

// Attributes implements Entity.
func (n *Node) Attributes() *attrs.Set { return n.Attrs }

// Edge is a materialized graph relationship.
type Edge struct {
	ID       EdgeID
	Src, Dst NodeID
	Relation int
	Attrs    *attrs.Set
}

// Attributes implements Entity.
func (e *Edge) Attributes() *attrs.Set { return e.Attrs }

// Hub is the in-process GraphHub implementation paired with Registry. It
// assigns monotonic ids and installs labels/adjacency via the owning
// Registry's matrices, mirroring the original's CreateNode/CreateEdge
// contract (spec §4.3, §6).
type Hub struct {
	mu sync.Mutex

	nextNodeID NodeID
	nextEdgeID EdgeID

	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		nodes: make(map[NodeID]*Node),
		edges: make(map[EdgeID]*Edge),
	}
}

// CreateNode assigns the next node id, records its labels into the owning
// graph's per-label matrix and node-label mapping matrix via Δ+, and
// installs the attribute set.
func (h *Hub) CreateNode(gc GraphContext, labels []int, attributes *attrs.Set, _ bool) (NodeID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextNodeID
	h.nextNodeID++

	n := &Node{ID: id, Labels: append([]int(nil), labels...), Attrs: attributes}
	h.nodes[id] = n

	g := gc.Graph()
	for labelIdx, schemaID := range labels {
		g.GetLabelMatrix(schemaID).SetElement(int(id), 0)
		g.GetNodeLabelMatrix().SetElementValue(int(id), labelIdx, uint64(schemaID))
	}

	return id, nil
}

// CreateEdge assigns the next edge id and records it into the relation and
// adjacency matrices via Δ+, storing the edge id as the indexed matrix
// value.
func (h *Hub) CreateEdge(gc GraphContext, src, dst NodeID, relation int, attributes *attrs.Set, _ bool) (EdgeID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextEdgeID
	h.nextEdgeID++

	e := &Edge{ID: id, Src: src, Dst: dst, Relation: relation, Attrs: attributes}
	h.edges[id] = e

	g := gc.Graph()
	g.GetRelationMatrix(relation, false).SetElementValue(int(src), int(dst), uint64(id))
	g.GetAdjacencyMatrix(false).SetElementValue(int(src), int(dst), uint64(id))

	return id, nil
}

// Node returns a previously materialized node by id.
func (h *Hub) Node(id NodeID) (*Node, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[id]
	return n, ok
}

// Edge returns a previously materialized edge by id.
func (h *Hub) Edge(id EdgeID) (*Edge, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.edges[id]
	return e, ok
}
