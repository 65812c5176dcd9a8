package algo

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/orneryd/nornicq/pkg/convert"
	"github.com/orneryd/nornicq/pkg/storage"
)

// DefaultWeightAttribute is the edge property WSHORTEST reads.
const DefaultWeightAttribute = "weight"

// Builtins returns the built-in algorithms keyed by canonical name.
// weightAttr names the edge property used by WSHORTEST.
func Builtins(weightAttr string) map[string]Func {
	if weightAttr == "" {
		weightAttr = DefaultWeightAttribute
	}
	return map[string]Func{
		"KSHORTEST":   KShortest,
		"BFS":         BFS,
		"ALLSHORTEST": AllShortest,
		"WSHORTEST":   WShortest(weightAttr),
	}
}

// neighbors lists the distinct successors of id in adjacency order.
// Parallel edges collapse to one entry.
func neighbors(g storage.Graph, id storage.NodeID) ([]storage.NodeID, error) {
	out, err := g.OutEdges(id)
	if err != nil {
		return nil, fmt.Errorf("adjacency of %s: %w", id, err)
	}
	result := make([]storage.NodeID, 0, len(out))
	for _, e := range out {
		if len(result) > 0 && result[len(result)-1] == e.To {
			continue
		}
		result = append(result, e.To)
	}
	return result, nil
}

func extend(path Path, next storage.NodeID) Path {
	out := make(Path, len(path)+1)
	copy(out, path)
	out[len(path)] = next
	return out
}

// KShortest returns up to k simple paths from source to target, shortest
// first. Paths of equal length keep depth-first discovery order.
func KShortest(ctx context.Context, g storage.Graph, source, target storage.NodeID, k int) ([]Path, error) {
	if k <= 0 || source == target {
		return nil, nil
	}

	var paths []Path
	onPath := map[storage.NodeID]bool{source: true}

	var dfs func(current storage.NodeID, path Path) error
	dfs = func(current storage.NodeID, path Path) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := neighbors(g, current)
		if err != nil {
			return err
		}
		for _, n := range next {
			if n == target {
				paths = append(paths, extend(path, n))
				continue
			}
			if onPath[n] {
				continue
			}
			onPath[n] = true
			if err := dfs(n, extend(path, n)); err != nil {
				return err
			}
			onPath[n] = false
		}
		return nil
	}
	if err := dfs(source, Path{source}); err != nil {
		return nil, err
	}

	slices.SortStableFunc(paths, func(a, b Path) int { return len(a) - len(b) })
	if len(paths) > k {
		paths = paths[:k]
	}
	return paths, nil
}

// BFS returns the breadth-first route to every node within depth edges of
// source, source first. Each node is reached once. target is ignored.
func BFS(ctx context.Context, g storage.Graph, source, _ storage.NodeID, depth int) ([]Path, error) {
	type entry struct {
		node storage.NodeID
		path Path
	}

	visited := map[storage.NodeID]struct{}{source: {}}
	frontier := []entry{{node: source, path: Path{source}}}
	var result []Path

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := frontier[0]
		frontier = frontier[1:]
		if len(cur.path)-1 > depth {
			continue
		}
		result = append(result, cur.path)

		next, err := neighbors(g, cur.node)
		if err != nil {
			return nil, err
		}
		for _, n := range next {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			frontier = append(frontier, entry{node: n, path: extend(cur.path, n)})
		}
	}
	return result, nil
}

// AllShortest returns every path from source to target with the minimum
// edge count. An unreachable target is an error wrapping ErrNoPath.
func AllShortest(ctx context.Context, g storage.Graph, source, target storage.NodeID, _ int) ([]Path, error) {
	if source == target {
		return []Path{{source}}, nil
	}

	dist := map[storage.NodeID]int{source: 0}
	preds := make(map[storage.NodeID][]storage.NodeID)
	queue := []storage.NodeID{source}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		// Every predecessor of target sits one level above it, so the
		// search can stop once it reaches target's level.
		if d, found := dist[target]; found && dist[cur] >= d {
			break
		}

		next, err := neighbors(g, cur)
		if err != nil {
			return nil, err
		}
		for _, n := range next {
			d, seen := dist[n]
			switch {
			case !seen:
				dist[n] = dist[cur] + 1
				preds[n] = []storage.NodeID{cur}
				queue = append(queue, n)
			case d == dist[cur]+1:
				preds[n] = append(preds[n], cur)
			}
		}
	}

	if _, found := dist[target]; !found {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoPath, source, target)
	}

	var paths []Path
	var walk func(node storage.NodeID, reversed Path)
	walk = func(node storage.NodeID, reversed Path) {
		reversed = extend(reversed, node)
		if node == source {
			p := slices.Clone(reversed)
			slices.Reverse(p)
			paths = append(paths, p)
			return
		}
		for _, p := range preds[node] {
			walk(p, reversed)
		}
	}
	walk(target, nil)
	return paths, nil
}

// WShortest returns the Dijkstra shortest-path algorithm over the
// weightAttr edge property. Missing weights count as 1 and parallel edges
// contribute their lightest weight. Negative or non-numeric weights fail
// with ErrInvalidWeight. An unreachable target yields no paths and no error.
func WShortest(weightAttr string) Func {
	return func(ctx context.Context, g storage.Graph, source, target storage.NodeID, _ int) ([]Path, error) {
		dist := map[storage.NodeID]float64{source: 0}
		visited := make(map[storage.NodeID]bool)
		pq := &priorityQueue{}
		heap.Init(pq)
		heap.Push(pq, &pathItem{nodeID: source, cost: 0, path: Path{source}})
		var seq uint64

		for pq.Len() > 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			current := heap.Pop(pq).(*pathItem)
			if visited[current.nodeID] {
				continue
			}
			visited[current.nodeID] = true
			if current.nodeID == target {
				return []Path{current.path}, nil
			}

			order, weights, err := lightestEdges(g, current.nodeID, weightAttr)
			if err != nil {
				return nil, err
			}
			for _, n := range order {
				if visited[n] {
					continue
				}
				cost := current.cost + weights[n]
				if d, ok := dist[n]; ok && cost >= d {
					continue
				}
				dist[n] = cost
				seq++
				heap.Push(pq, &pathItem{nodeID: n, cost: cost, seq: seq, path: extend(current.path, n)})
			}
		}
		return nil, nil
	}
}

// lightestEdges returns id's successors in adjacency order together with
// the minimum weight over the parallel edges leading to each.
func lightestEdges(g storage.Graph, id storage.NodeID, weightAttr string) ([]storage.NodeID, map[storage.NodeID]float64, error) {
	out, err := g.OutEdges(id)
	if err != nil {
		return nil, nil, fmt.Errorf("adjacency of %s: %w", id, err)
	}
	var order []storage.NodeID
	weights := make(map[storage.NodeID]float64, len(out))
	for _, e := range out {
		attrs, err := g.EdgeAttributes(id, e.To, e.Key)
		if err != nil {
			return nil, nil, fmt.Errorf("edge %s->%s[%d]: %w", id, e.To, e.Key, err)
		}
		w := 1.0
		if raw, ok := attrs[weightAttr]; ok && raw != nil {
			f, ok := convert.ToFloat64(raw)
			if !ok || f < 0 || math.IsNaN(f) {
				return nil, nil, fmt.Errorf("%w: %s->%s[%d] %s=%v", ErrInvalidWeight, id, e.To, e.Key, weightAttr, raw)
			}
			w = f
		}
		prev, seen := weights[e.To]
		if !seen {
			order = append(order, e.To)
			weights[e.To] = w
			continue
		}
		weights[e.To] = min(prev, w)
	}
	return order, weights, nil
}

// pathItem is a Dijkstra frontier entry.
type pathItem struct {
	nodeID storage.NodeID
	cost   float64
	seq    uint64
	path   Path
	index  int
}

// priorityQueue orders by cost, then by push order so equal-cost ties
// resolve deterministically.
type priorityQueue []*pathItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *priorityQueue) Push(x any) {
	item := x.(*pathItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}
