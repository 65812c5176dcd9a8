// Package storage provides storage implementations.
// MemoryEngine is a thread-safe in-memory storage for testing and small datasets.
package storage

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryEngine is an in-memory implementation of Engine.
// It's useful for:
// - Unit testing (no disk I/O)
// - Loading YAML or Neo4j fixtures into memory
// - Small datasets that fit in RAM
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	order []NodeID // creation order
	edges map[EdgeID]*Edge

	outgoing map[NodeID]*adjacency
	incoming map[NodeID]map[EdgeID]struct{}

	closed bool
}

// adjacency keeps a node's outgoing edges grouped by neighbor, neighbors in
// first-connection order and each group sorted by key.
type adjacency struct {
	neighbors []NodeID
	byTarget  map[NodeID][]*Edge
}

func newAdjacency() *adjacency {
	return &adjacency{byTarget: make(map[NodeID][]*Edge)}
}

func (a *adjacency) add(e *Edge) {
	group, ok := a.byTarget[e.EndNode]
	if !ok {
		a.neighbors = append(a.neighbors, e.EndNode)
	}
	group = append(group, e)
	slices.SortStableFunc(group, func(x, y *Edge) int { return int(x.Key) - int(y.Key) })
	a.byTarget[e.EndNode] = group
}

func (a *adjacency) remove(e *Edge) {
	group := slices.DeleteFunc(a.byTarget[e.EndNode], func(x *Edge) bool { return x.ID == e.ID })
	if len(group) > 0 {
		a.byTarget[e.EndNode] = group
		return
	}
	delete(a.byTarget, e.EndNode)
	a.neighbors = slices.DeleteFunc(a.neighbors, func(id NodeID) bool { return id == e.EndNode })
}

// nextKey mirrors multigraph key allocation: start at the current parallel
// count and skip keys still in use.
func (a *adjacency) nextKey(to NodeID) EdgeKey {
	group := a.byTarget[to]
	key := EdgeKey(len(group))
	for slices.ContainsFunc(group, func(e *Edge) bool { return e.Key == key }) {
		key++
	}
	return key
}

// NewMemoryEngine creates a new in-memory storage engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		nodes:    make(map[NodeID]*Node),
		edges:    make(map[EdgeID]*Edge),
		outgoing: make(map[NodeID]*adjacency),
		incoming: make(map[NodeID]map[EdgeID]struct{}),
	}
}

// CreateNode creates a new node.
func (m *MemoryEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	if _, exists := m.nodes[node.ID]; exists {
		return ErrAlreadyExists
	}

	// Deep copy to prevent external mutation
	m.nodes[node.ID] = copyNode(node)
	m.order = append(m.order, node.ID)
	return nil
}

// GetNode retrieves a node by ID.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

// DeleteNode removes a node and all its edges.
func (m *MemoryEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	if _, exists := m.nodes[id]; !exists {
		return ErrNotFound
	}

	if adj := m.outgoing[id]; adj != nil {
		for _, to := range slices.Clone(adj.neighbors) {
			for _, e := range slices.Clone(adj.byTarget[to]) {
				m.deleteEdgeLocked(e)
			}
		}
	}
	for edgeID := range m.incoming[id] {
		if e, ok := m.edges[edgeID]; ok {
			m.deleteEdgeLocked(e)
		}
	}

	delete(m.nodes, id)
	delete(m.outgoing, id)
	delete(m.incoming, id)
	m.order = slices.DeleteFunc(m.order, func(n NodeID) bool { return n == id })
	return nil
}

// CreateEdge creates a new edge between two existing nodes and assigns its
// parallel-edge key.
func (m *MemoryEngine) CreateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.ID == "" {
		edge.ID = EdgeID(uuid.NewString())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	if _, exists := m.edges[edge.ID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := m.nodes[edge.StartNode]; !exists {
		return ErrNotFound
	}
	if _, exists := m.nodes[edge.EndNode]; !exists {
		return ErrNotFound
	}

	adj := m.outgoing[edge.StartNode]
	if adj == nil {
		adj = newAdjacency()
		m.outgoing[edge.StartNode] = adj
	}
	edge.Key = adj.nextKey(edge.EndNode)

	stored := copyEdge(edge)
	m.edges[edge.ID] = stored
	adj.add(stored)

	if m.incoming[edge.EndNode] == nil {
		m.incoming[edge.EndNode] = make(map[EdgeID]struct{})
	}
	m.incoming[edge.EndNode][edge.ID] = struct{}{}
	return nil
}

// GetEdge retrieves an edge by ID.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	edge, exists := m.edges[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyEdge(edge), nil
}

// DeleteEdge removes an edge.
func (m *MemoryEngine) DeleteEdge(id EdgeID) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageClosed
	}

	edge, exists := m.edges[id]
	if !exists {
		return ErrNotFound
	}
	m.deleteEdgeLocked(edge)
	return nil
}

func (m *MemoryEngine) deleteEdgeLocked(e *Edge) {
	if adj := m.outgoing[e.StartNode]; adj != nil {
		adj.remove(e)
	}
	if in := m.incoming[e.EndNode]; in != nil {
		delete(in, e.ID)
	}
	delete(m.edges, e.ID)
}

// NodeIDs returns every node ID in creation order.
func (m *MemoryEngine) NodeIDs() ([]NodeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	return slices.Clone(m.order), nil
}

// NodeAttributes returns the node's properties with its labels under LabelsKey.
func (m *MemoryEngine) NodeAttributes(id NodeID) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	node, exists := m.nodes[id]
	if !exists {
		return nil, ErrNotFound
	}
	return nodeAttributes(node), nil
}

// OutEdges returns the adjacency of id. Unknown nodes yield ErrNotFound.
func (m *MemoryEngine) OutEdges(id NodeID) ([]OutEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}
	if _, exists := m.nodes[id]; !exists {
		return nil, ErrNotFound
	}

	adj := m.outgoing[id]
	if adj == nil {
		return nil, nil
	}
	var out []OutEdge
	for _, to := range adj.neighbors {
		for _, e := range adj.byTarget[to] {
			out = append(out, OutEdge{To: to, Key: e.Key})
		}
	}
	return out, nil
}

// EdgeAttributes returns the properties of the (from, to, key) edge with its
// type under TypeKey.
func (m *MemoryEngine) EdgeAttributes(from, to NodeID, key EdgeKey) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	adj := m.outgoing[from]
	if adj == nil {
		return nil, ErrNotFound
	}
	for _, e := range adj.byTarget[to] {
		if e.Key == key {
			return edgeAttributes(e), nil
		}
	}
	return nil, ErrNotFound
}

// NodeCount returns the number of nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.edges)), nil
}

// Close closes the storage engine.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.nodes = nil
	m.order = nil
	m.edges = nil
	m.outgoing = nil
	m.incoming = nil
	return nil
}

// Verify MemoryEngine implements Engine interface
var _ Engine = (*MemoryEngine)(nil)
