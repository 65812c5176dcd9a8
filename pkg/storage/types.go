// Package storage provides the property-graph stores the query engine runs on.
//
// Two engines are available:
//   - MemoryEngine: map-backed, for tests, fixtures and small graphs
//   - BadgerEngine: persistent, backed by BadgerDB
//
// Both implement Engine, which embeds Graph. Graph is the narrow read-only
// capability the cypher package matches against.
package storage

import "errors"

// Attribute keys synthesized into the maps returned by Graph.
const (
	// LabelsKey holds a node's labels ([]string) in NodeAttributes.
	LabelsKey = "labels"
	// TypeKey holds a relationship's type (string) in EdgeAttributes.
	TypeKey = "type"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidData   = errors.New("invalid data")
	ErrStorageClosed = errors.New("storage closed")
)

// NodeID uniquely identifies a node.
type NodeID string

// EdgeID uniquely identifies a relationship.
type EdgeID string

// EdgeKey tells apart parallel relationships between the same ordered pair
// of nodes. Keys are assigned from 0 in creation order per (from, to) pair;
// a freed key is reused only once the pair's count drops below it.
type EdgeKey int

// Node is a vertex with labels and properties.
type Node struct {
	ID         NodeID         `json:"id" yaml:"id" msgpack:"id"`
	Labels     []string       `json:"labels,omitempty" yaml:"labels,omitempty" msgpack:"labels,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty" msgpack:"properties,omitempty"`
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	ID         EdgeID         `json:"id" yaml:"id" msgpack:"id"`
	StartNode  NodeID         `json:"startNode" yaml:"from" msgpack:"start"`
	EndNode    NodeID         `json:"endNode" yaml:"to" msgpack:"end"`
	Type       string         `json:"type,omitempty" yaml:"type,omitempty" msgpack:"type,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty" msgpack:"properties,omitempty"`
	// Key is assigned by the engine on CreateEdge; any caller value is ignored.
	Key EdgeKey `json:"key" yaml:"-" msgpack:"key"`
}

// OutEdge is one outgoing adjacency entry: the neighbor plus the key of the
// relationship leading to it.
type OutEdge struct {
	To  NodeID
	Key EdgeKey
}

// Graph is the read-only capability consumed by pattern matching and the
// path algorithms.
//
// Ordering guarantees:
//   - NodeIDs returns nodes in creation order.
//   - OutEdges groups relationships by neighbor, neighbors in the order they
//     were first connected, keys ascending within a neighbor.
//
// The maps returned by NodeAttributes and EdgeAttributes are fresh copies.
type Graph interface {
	// NodeIDs enumerates every node in store order.
	NodeIDs() ([]NodeID, error)
	// NodeAttributes returns the node's properties plus LabelsKey.
	NodeAttributes(id NodeID) (map[string]any, error)
	// OutEdges lists the relationships leaving id.
	OutEdges(id NodeID) ([]OutEdge, error)
	// EdgeAttributes returns the relationship's properties plus TypeKey.
	EdgeAttributes(from, to NodeID, key EdgeKey) (map[string]any, error)
}

// Engine is a mutable graph store. The query surface only ever sees the
// embedded Graph; the mutation methods serve loaders and tooling.
type Engine interface {
	Graph

	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	DeleteNode(id NodeID) error

	// CreateEdge stores edge and assigns edge.Key. An empty edge.ID is
	// replaced with a generated one.
	CreateEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)
	DeleteEdge(id EdgeID) error

	NodeCount() (int64, error)
	EdgeCount() (int64, error)

	Close() error
}

func nodeAttributes(n *Node) map[string]any {
	attrs := make(map[string]any, len(n.Properties)+1)
	for k, v := range n.Properties {
		attrs[k] = v
	}
	labels := make([]string, len(n.Labels))
	copy(labels, n.Labels)
	attrs[LabelsKey] = labels
	return attrs
}

func edgeAttributes(e *Edge) map[string]any {
	attrs := make(map[string]any, len(e.Properties)+1)
	for k, v := range e.Properties {
		attrs[k] = v
	}
	if e.Type != "" {
		attrs[TypeKey] = e.Type
	}
	return attrs
}

func copyNode(n *Node) *Node {
	out := &Node{ID: n.ID}
	if n.Labels != nil {
		out.Labels = make([]string, len(n.Labels))
		copy(out.Labels, n.Labels)
	}
	out.Properties = copyProperties(n.Properties)
	return out
}

func copyEdge(e *Edge) *Edge {
	out := *e
	out.Properties = copyProperties(e.Properties)
	return &out
}

func copyProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
