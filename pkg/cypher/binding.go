package cypher

import (
	"fmt"

	"github.com/orneryd/nornicq/pkg/storage"
)

// RefKind tags the variants of Ref.
type RefKind int

const (
	RefNode RefKind = iota
	RefEdge
	RefScalar
)

func (k RefKind) String() string {
	switch k {
	case RefNode:
		return "node"
	case RefEdge:
		return "edge"
	case RefScalar:
		return "scalar"
	}
	return fmt.Sprintf("RefKind(%d)", int(k))
}

// Ref is what a variable is bound to. The implementations are NodeRef,
// EdgeRef and ScalarRef.
type Ref interface {
	Kind() RefKind
	ref()
}

// NodeRef binds a variable to a stored node.
type NodeRef struct {
	ID storage.NodeID
}

// EdgeRef binds a variable to one relationship of a (From, To) pair.
type EdgeRef struct {
	From storage.NodeID
	To   storage.NodeID
	Key  storage.EdgeKey
}

// ScalarRef binds a variable to a plain value, such as a projected column.
type ScalarRef struct {
	Value any
}

func (NodeRef) Kind() RefKind   { return RefNode }
func (EdgeRef) Kind() RefKind   { return RefEdge }
func (ScalarRef) Kind() RefKind { return RefScalar }

func (NodeRef) ref()   {}
func (EdgeRef) ref()   {}
func (ScalarRef) ref() {}

// Row maps variable names to bindings. Rows handed out by the matcher are
// never modified; use With to derive a new one.
type Row map[string]Ref

// With returns a copy of r with name bound to ref. An empty name returns r
// unchanged, which is how anonymous pattern elements are skipped.
func (r Row) With(name string, ref Ref) Row {
	if name == "" {
		return r
	}
	out := make(Row, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[name] = ref
	return out
}

// attributes returns the value a bare variable evaluates to: the attribute
// map for nodes and edges, the value itself for scalars.
func attributes(ref Ref, g storage.Graph) (any, error) {
	switch r := ref.(type) {
	case NodeRef:
		attrs, err := g.NodeAttributes(r.ID)
		if err != nil {
			return nil, newError("eval", KindStorage, fmt.Errorf("node %s: %w", r.ID, err))
		}
		return attrs, nil
	case EdgeRef:
		attrs, err := g.EdgeAttributes(r.From, r.To, r.Key)
		if err != nil {
			return nil, newError("eval", KindStorage, fmt.Errorf("edge %s->%s[%d]: %w", r.From, r.To, r.Key, err))
		}
		return attrs, nil
	case ScalarRef:
		return r.Value, nil
	}
	return nil, newError("eval", KindEvaluation, fmt.Errorf("unhandled binding %T", ref))
}
