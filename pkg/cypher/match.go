package cypher

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/orneryd/nornicq/pkg/storage"
)

// errStop unwinds the walk when the consumer stops iterating.
var errStop = errors.New("stop")

// MatchPatterns enumerates the rows produced by joining every pattern of m.
//
// Patterns are combined by nested loops: each row matched so far is extended
// with every independent match of the next pattern. Variables repeated across
// patterns are not unified; the later binding replaces the earlier one.
// Within a pattern, candidate heads come from NodeIDs in store order and the
// chain is walked depth-first over OutEdges.
//
// Rows are produced lazily. ctx is checked between candidates, and the first
// error ends the sequence.
func MatchPatterns(ctx context.Context, m Match, g storage.Graph) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		w := &walker{ctx: ctx, g: g}
		var join func(i int, row Row) error
		join = func(i int, row Row) error {
			if i == len(m.Patterns) {
				if !yield(row, nil) {
					return errStop
				}
				return nil
			}
			return w.pattern(m.Patterns[i], row, func(r Row) error {
				return join(i+1, r)
			})
		}
		if err := join(0, Row{}); err != nil && !errors.Is(err, errStop) {
			yield(nil, err)
		}
	}
}

type walker struct {
	ctx context.Context
	g   storage.Graph
}

func (w *walker) checkContext() error {
	if err := w.ctx.Err(); err != nil {
		return newError("match", KindCanceled, err)
	}
	return nil
}

func (w *walker) pattern(p Pattern, base Row, emit func(Row) error) error {
	if len(p.Chain) > MaxChainLength {
		return newError("match", KindParse, fmt.Errorf("pattern has %d relationships, limit is %d", len(p.Chain), MaxChainLength))
	}
	ids, err := w.g.NodeIDs()
	if err != nil {
		return newError("match", KindStorage, fmt.Errorf("list nodes: %w", err))
	}
	for _, id := range ids {
		if err := w.checkContext(); err != nil {
			return err
		}
		ok, err := w.nodeMatches(p.Head, id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := w.chain(p.Chain, id, base.With(p.Head.Var, NodeRef{ID: id}), emit); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) chain(steps []ChainStep, current storage.NodeID, row Row, emit func(Row) error) error {
	if len(steps) == 0 {
		return emit(row)
	}
	step := steps[0]
	out, err := w.g.OutEdges(current)
	if err != nil {
		return newError("match", KindStorage, fmt.Errorf("adjacency of %s: %w", current, err))
	}
	for _, e := range out {
		if err := w.checkContext(); err != nil {
			return err
		}
		ok, err := w.relMatches(step.Rel, current, e)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if ok, err = w.nodeMatches(step.Node, e.To); err != nil {
			return err
		} else if !ok {
			continue
		}
		next := row.
			With(step.Rel.Var, EdgeRef{From: current, To: e.To, Key: e.Key}).
			With(step.Node.Var, NodeRef{ID: e.To})
		if err := w.chain(steps[1:], e.To, next, emit); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) nodeMatches(np NodePattern, id storage.NodeID) (bool, error) {
	if len(np.Labels) == 0 && len(np.Props) == 0 {
		return true, nil
	}
	attrs, err := w.g.NodeAttributes(id)
	if err != nil {
		return false, newError("match", KindStorage, fmt.Errorf("node %s: %w", id, err))
	}
	labels, _ := attrs[storage.LabelsKey].([]string)
	for _, want := range np.Labels {
		if !slices.Contains(labels, want) {
			return false, nil
		}
	}
	return propsMatch(np.Props, attrs), nil
}

func (w *walker) relMatches(rp RelPattern, from storage.NodeID, e storage.OutEdge) (bool, error) {
	if len(rp.Types) == 0 && len(rp.Props) == 0 {
		return true, nil
	}
	attrs, err := w.g.EdgeAttributes(from, e.To, e.Key)
	if err != nil {
		return false, newError("match", KindStorage, fmt.Errorf("edge %s->%s[%d]: %w", from, e.To, e.Key, err))
	}
	if len(rp.Types) > 0 {
		typ, _ := attrs[storage.TypeKey].(string)
		if !slices.Contains(rp.Types, typ) {
			return false, nil
		}
	}
	return propsMatch(rp.Props, attrs), nil
}

// propsMatch requires every pattern property to equal the stored value.
// Numbers compare by value, so {age: 30} matches a stored int 30. A missing
// key reads as null, so {k: null} matches when k is absent.
func propsMatch(want, attrs map[string]any) bool {
	for k, v := range want {
		if !valuesEqual(attrs[k], v) {
			return false
		}
	}
	return true
}
