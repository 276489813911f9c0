// Registry is the in-process GraphContext/Graph implementation used by this
// repository's own tests and cmd/planviz. A registry built with
// NewDurableRegistry persists the next-schema-id counter through BadgerDB so
// schema ids survive a process restart; one built with NewRegistry keeps the
// counter in memory only.
package schema

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/nornicdb/pkg/deltamatrix"
)

var nextIDKey = []byte("schema:next_id")

// Registry is a GraphContext + Graph implementation backed by in-memory
// matrices and an optional Badger id allocator.
type Registry struct {
	mu sync.RWMutex

	db *badger.DB // nil => pure in-memory id counter, no durability

	nodeSchemas     map[string]*Schema
	relationSchemas map[string]*Schema
	nodeByID        map[int]*Schema
	relByID         map[int]*Schema
	nextID          int

	graph *memGraph
}

// NewRegistry creates an in-memory registry with no durable backing.
func NewRegistry() *Registry {
	return &Registry{
		nodeSchemas:     make(map[string]*Schema),
		relationSchemas: make(map[string]*Schema),
		nodeByID:        make(map[int]*Schema),
		relByID:         make(map[int]*Schema),
		graph:           newMemGraph(),
	}
}

// NewDurableRegistry creates a registry whose schema-id counter is persisted
// in the given Badger database, surviving restarts.
func NewDurableRegistry(db *badger.DB) (*Registry, error) {
	r := NewRegistry()
	r.db = db

	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nextIDKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				r.nextID = int(binary.BigEndian.Uint64(val))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("schema: loading persisted id counter: %w", err)
	}
	return r, nil
}

func (r *Registry) persistNextID() {
	if r.db == nil {
		return
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(r.nextID))
	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nextIDKey, buf)
	}); err != nil {
		log.Printf("schema: failed to persist id counter: %v", err)
	}
}

// GetSchema looks up a schema by name and kind.
func (r *Registry) GetSchema(name string, kind Kind) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.schemasByKind(kind)
	s, ok := m[name]
	return s, ok
}

// GetSchemaByID looks up a schema by its assigned id and kind.
func (r *Registry) GetSchemaByID(id int, kind Kind) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if kind == KindRelation {
		s, ok := r.relByID[id]
		return s, ok
	}
	s, ok := r.nodeByID[id]
	return s, ok
}

// AddSchema creates and registers a new schema with a freshly assigned id.
func (r *Registry) AddSchema(name string, kind Kind, _ bool) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.schemasByKind(kind)
	if existing, ok := m[name]; ok {
		return existing, nil
	}

	s := &Schema{ID: r.nextID, Name: name, Kind: kind}
	r.nextID++
	m[name] = s
	if kind == KindRelation {
		r.relByID[s.ID] = s
	} else {
		r.nodeByID[s.ID] = s
	}
	r.persistNextID()
	return s, nil
}

func (r *Registry) schemasByKind(kind Kind) map[string]*Schema {
	if kind == KindRelation {
		return r.relationSchemas
	}
	return r.nodeSchemas
}

// Graph returns the registry's in-memory Graph handle.
func (r *Registry) Graph() Graph { return r.graph }

// memGraph is a minimal in-memory Graph implementation: a fixed-capacity
// node/edge counter plus per-schema delta matrices.
type memGraph struct {
	mu sync.Mutex

	nodeCount, edgeCount int
	policy               deltamatrix.SyncPolicy

	labelMatrices    map[int]*deltamatrix.Matrix
	relationMatrices map[int]*deltamatrix.Matrix
	nodeLabelMatrix  *deltamatrix.Matrix
	adjacency        *deltamatrix.Matrix
}

func newMemGraph() *memGraph {
	return &memGraph{
		policy:           deltamatrix.PolicyFlushResize,
		labelMatrices:    make(map[int]*deltamatrix.Matrix),
		relationMatrices: make(map[int]*deltamatrix.Matrix),
		nodeLabelMatrix:  deltamatrix.New(),
		adjacency:        deltamatrix.New(),
	}
}

func (g *memGraph) AllocateNodes(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodeCount += n
	g.resizeLocked()
}

func (g *memGraph) AllocateEdges(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edgeCount += n
}

// resizeLocked grows every live matrix to current node/edge capacity. Called
// with g.mu held.
func (g *memGraph) resizeLocked() {
	for _, m := range g.labelMatrices {
		m.Resize(g.nodeCount, 1)
	}
	g.nodeLabelMatrix.Resize(g.nodeCount, len(g.labelMatrices))
	for _, m := range g.relationMatrices {
		m.Resize(g.nodeCount, g.nodeCount)
	}
	g.adjacency.Resize(g.nodeCount, g.nodeCount)
}

func (g *memGraph) MatrixPolicy() deltamatrix.SyncPolicy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.policy
}

func (g *memGraph) SetMatrixPolicy(p deltamatrix.SyncPolicy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = p
}

func (g *memGraph) GetLabelMatrix(schemaID int) *deltamatrix.Matrix {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.labelMatrices[schemaID]
	if !ok {
		m = deltamatrix.New()
		m.Resize(g.nodeCount, 1)
		g.labelMatrices[schemaID] = m
	}
	if g.policy != deltamatrix.PolicyNOP {
		m.Resize(g.nodeCount, 1)
	}
	if g.policy == deltamatrix.PolicyFlushResize {
		m.Flush()
	}
	return m
}

func (g *memGraph) GetNodeLabelMatrix() *deltamatrix.Matrix {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.policy != deltamatrix.PolicyNOP {
		g.nodeLabelMatrix.Resize(g.nodeCount, len(g.labelMatrices))
	}
	if g.policy == deltamatrix.PolicyFlushResize {
		g.nodeLabelMatrix.Flush()
	}
	return g.nodeLabelMatrix
}

func (g *memGraph) GetRelationMatrix(schemaID int, _ bool) *deltamatrix.Matrix {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.relationMatrices[schemaID]
	if !ok {
		m = deltamatrix.New()
		m.Resize(g.nodeCount, g.nodeCount)
		g.relationMatrices[schemaID] = m
	}
	if g.policy != deltamatrix.PolicyNOP {
		m.Resize(g.nodeCount, g.nodeCount)
	}
	if g.policy == deltamatrix.PolicyFlushResize {
		m.Flush()
	}
	return m
}

func (g *memGraph) GetAdjacencyMatrix(_ bool) *deltamatrix.Matrix {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.policy != deltamatrix.PolicyNOP {
		g.adjacency.Resize(g.nodeCount, g.nodeCount)
	}
	if g.policy == deltamatrix.PolicyFlushResize {
		g.adjacency.Flush()
	}
	return g.adjacency
}
