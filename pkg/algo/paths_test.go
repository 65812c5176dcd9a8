package algo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicq/pkg/storage"
)

type testEdge struct {
	from, to storage.NodeID
	props    map[string]any
}

func buildGraph(t *testing.T, nodes []storage.NodeID, edges []testEdge) *storage.MemoryEngine {
	t.Helper()
	g := storage.NewMemoryEngine()
	for _, id := range nodes {
		require.NoError(t, g.CreateNode(&storage.Node{ID: id}))
	}
	for _, e := range edges {
		require.NoError(t, g.CreateEdge(&storage.Edge{StartNode: e.from, EndNode: e.to, Properties: e.props}))
	}
	return g
}

// diamond is a->b, b->c, c->d, a->d.
func diamond(t *testing.T, weights ...float64) *storage.MemoryEngine {
	t.Helper()
	pairs := [][2]storage.NodeID{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"a", "d"}}
	edges := make([]testEdge, len(pairs))
	for i, p := range pairs {
		edges[i] = testEdge{from: p[0], to: p[1]}
		if len(weights) > i {
			edges[i].props = map[string]any{"weight": weights[i]}
		}
	}
	return buildGraph(t, []storage.NodeID{"a", "b", "c", "d"}, edges)
}

func TestKShortest(t *testing.T) {
	ctx := context.Background()
	g := diamond(t)

	t.Run("returns both simple paths shortest first", func(t *testing.T) {
		paths, err := KShortest(ctx, g, "a", "d", 3)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"a", "d"}, {"a", "b", "c", "d"}}, paths)
	})

	t.Run("truncates to k", func(t *testing.T) {
		paths, err := KShortest(ctx, g, "a", "d", 1)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"a", "d"}}, paths)
	})

	t.Run("zero k and same endpoints", func(t *testing.T) {
		paths, err := KShortest(ctx, g, "a", "d", 0)
		require.NoError(t, err)
		assert.Empty(t, paths)

		paths, err = KShortest(ctx, g, "a", "a", 5)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("unreachable", func(t *testing.T) {
		paths, err := KShortest(ctx, g, "d", "a", 5)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("parallel edges and cycles", func(t *testing.T) {
		g := buildGraph(t, []storage.NodeID{"s", "m", "t"}, []testEdge{
			{from: "s", to: "m"}, {from: "s", to: "m"},
			{from: "m", to: "s"},
			{from: "m", to: "t"},
			{from: "s", to: "t"},
		})
		paths, err := KShortest(ctx, g, "s", "t", 10)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"s", "t"}, {"s", "m", "t"}}, paths)
	})
}

func TestKShortest_Properties(t *testing.T) {
	// Complete DAG on 6 nodes: i->j for every i<j.
	var nodes []storage.NodeID
	for i := 0; i < 6; i++ {
		nodes = append(nodes, storage.NodeID(fmt.Sprintf("n%d", i)))
	}
	var edges []testEdge
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			edges = append(edges, testEdge{from: nodes[i], to: nodes[j]})
		}
	}
	g := buildGraph(t, nodes, edges)

	for _, k := range []int{1, 3, 7, 100} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			paths, err := KShortest(context.Background(), g, "n0", "n5", k)
			require.NoError(t, err)
			// 2^4 simple paths exist between the ends.
			assert.Len(t, paths, min(k, 16))
			for i, p := range paths {
				assert.Equal(t, storage.NodeID("n0"), p[0])
				assert.Equal(t, storage.NodeID("n5"), p[len(p)-1])
				seen := map[storage.NodeID]bool{}
				for _, id := range p {
					assert.False(t, seen[id], "path %v repeats %s", p, id)
					seen[id] = true
				}
				if i > 0 {
					assert.LessOrEqual(t, len(paths[i-1]), len(p))
				}
			}
		})
	}
}

func TestBFS(t *testing.T) {
	ctx := context.Background()
	g := diamond(t)

	t.Run("depth two", func(t *testing.T) {
		paths, err := BFS(ctx, g, "a", "d", 2)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"a"}, {"a", "b"}, {"a", "d"}, {"a", "b", "c"}}, paths)
	})

	t.Run("depth zero", func(t *testing.T) {
		paths, err := BFS(ctx, g, "a", "d", 0)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"a"}}, paths)
	})

	t.Run("target ignored", func(t *testing.T) {
		withTarget, err := BFS(ctx, g, "a", "b", 5)
		require.NoError(t, err)
		other, err := BFS(ctx, g, "a", "c", 5)
		require.NoError(t, err)
		assert.Equal(t, withTarget, other)
		assert.Len(t, other, 4)
	})

	t.Run("each node once within depth", func(t *testing.T) {
		// Chain n0->n1->...->n5 with shortcuts n0->n2 and n1->n3.
		g := buildGraph(t, []storage.NodeID{"n0", "n1", "n2", "n3", "n4", "n5"}, []testEdge{
			{from: "n0", to: "n1"}, {from: "n1", to: "n2"}, {from: "n2", to: "n3"},
			{from: "n3", to: "n4"}, {from: "n4", to: "n5"},
			{from: "n0", to: "n2"}, {from: "n1", to: "n3"},
		})
		paths, err := BFS(ctx, g, "n0", "", 2)
		require.NoError(t, err)
		ends := map[storage.NodeID]int{}
		for _, p := range paths {
			ends[p[len(p)-1]]++
			assert.LessOrEqual(t, len(p)-1, 2)
		}
		assert.Equal(t, map[storage.NodeID]int{"n0": 1, "n1": 1, "n2": 1, "n3": 1}, ends)
	})
}

func TestAllShortest(t *testing.T) {
	ctx := context.Background()

	t.Run("single dominating path", func(t *testing.T) {
		paths, err := AllShortest(ctx, diamond(t), "a", "d", 0)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"a", "d"}}, paths)
	})

	t.Run("every tied path", func(t *testing.T) {
		g := buildGraph(t, []storage.NodeID{"s", "x", "y", "z", "t"}, []testEdge{
			{from: "s", to: "x"}, {from: "s", to: "y"},
			{from: "x", to: "t"}, {from: "y", to: "t"},
			{from: "s", to: "z"}, {from: "z", to: "x"},
		})
		paths, err := AllShortest(ctx, g, "s", "t", 0)
		require.NoError(t, err)
		assert.ElementsMatch(t, []Path{{"s", "x", "t"}, {"s", "y", "t"}}, paths)
	})

	t.Run("same endpoints", func(t *testing.T) {
		paths, err := AllShortest(ctx, diamond(t), "b", "b", 0)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"b"}}, paths)
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := AllShortest(ctx, diamond(t), "d", "a", 0)
		assert.ErrorIs(t, err, ErrNoPath)
	})
}

func TestWShortest(t *testing.T) {
	ctx := context.Background()
	wshortest := WShortest(DefaultWeightAttribute)

	t.Run("lighter long path wins", func(t *testing.T) {
		paths, err := wshortest(ctx, diamond(t, 1, 1, 1, 10), "a", "d", 0)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"a", "b", "c", "d"}}, paths)
	})

	t.Run("missing weights count as one", func(t *testing.T) {
		paths, err := wshortest(ctx, diamond(t), "a", "d", 0)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"a", "d"}}, paths)
	})

	t.Run("parallel edges use lightest", func(t *testing.T) {
		g := buildGraph(t, []storage.NodeID{"a", "b", "c"}, []testEdge{
			{from: "a", to: "c", props: map[string]any{"weight": 5}},
			{from: "a", to: "b", props: map[string]any{"weight": 2}},
			{from: "b", to: "c", props: map[string]any{"weight": 2}},
			{from: "a", to: "c", props: map[string]any{"weight": 3}},
		})
		paths, err := wshortest(ctx, g, "a", "c", 0)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"a", "c"}}, paths)
	})

	t.Run("unreachable is empty", func(t *testing.T) {
		paths, err := wshortest(ctx, diamond(t), "d", "a", 0)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("negative weight", func(t *testing.T) {
		_, err := wshortest(ctx, diamond(t, 1, -1), "a", "d", 0)
		assert.ErrorIs(t, err, ErrInvalidWeight)
	})

	t.Run("non-numeric weight", func(t *testing.T) {
		g := buildGraph(t, []storage.NodeID{"a", "b"}, []testEdge{
			{from: "a", to: "b", props: map[string]any{"weight": "heavy"}},
		})
		_, err := wshortest(ctx, g, "a", "b", 0)
		assert.ErrorIs(t, err, ErrInvalidWeight)
	})

	t.Run("custom attribute", func(t *testing.T) {
		g := buildGraph(t, []storage.NodeID{"a", "b", "c"}, []testEdge{
			{from: "a", to: "c", props: map[string]any{"cost": 9, "weight": 0}},
			{from: "a", to: "b", props: map[string]any{"cost": 1}},
			{from: "b", to: "c", props: map[string]any{"cost": 1}},
		})
		paths, err := WShortest("cost")(ctx, g, "a", "c", 0)
		require.NoError(t, err)
		assert.Equal(t, []Path{{"a", "b", "c"}}, paths)
	})
}

func TestAlgorithms_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := diamond(t)

	for name, fn := range Builtins("") {
		t.Run(name, func(t *testing.T) {
			_, err := fn(ctx, g, "a", "d", 3)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}
