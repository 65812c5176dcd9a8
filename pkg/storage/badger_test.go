package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadger(t *testing.T, serializer Serializer) *BadgerEngine {
	t.Helper()
	engine, err := NewBadgerEngineWithOptions(BadgerOptions{InMemory: true, Serializer: serializer})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func seedPeople(t *testing.T, engine Engine) {
	t.Helper()
	nodes := []*Node{
		{ID: "1", Labels: []string{"Person"}, Properties: map[string]any{"name": "Alice", "age": 35}},
		{ID: "2", Labels: []string{"Person"}, Properties: map[string]any{"name": "Bob", "age": 29}},
		{ID: "3", Labels: []string{"Person"}, Properties: map[string]any{"name": "Carol", "age": 40}},
	}
	for _, n := range nodes {
		require.NoError(t, engine.CreateNode(n))
	}
	require.NoError(t, engine.CreateEdge(&Edge{ID: "r1", StartNode: "1", EndNode: "2", Type: "KNOWS"}))
	require.NoError(t, engine.CreateEdge(&Edge{ID: "r2", StartNode: "1", EndNode: "3", Type: "KNOWS", Properties: map[string]any{"weight": 2.5}}))
	require.NoError(t, engine.CreateEdge(&Edge{ID: "r3", StartNode: "1", EndNode: "2", Type: "WORKS_WITH"}))
}

func TestBadgerEngine_GraphParity(t *testing.T) {
	for _, serializer := range []Serializer{SerializerMsgpack, SerializerGob} {
		t.Run(string(serializer), func(t *testing.T) {
			badgerEngine := newTestBadger(t, serializer)
			memEngine := NewMemoryEngine()
			seedPeople(t, badgerEngine)
			seedPeople(t, memEngine)

			wantIDs, err := memEngine.NodeIDs()
			require.NoError(t, err)
			gotIDs, err := badgerEngine.NodeIDs()
			require.NoError(t, err)
			assert.Equal(t, wantIDs, gotIDs)

			for _, id := range wantIDs {
				wantOut, err := memEngine.OutEdges(id)
				require.NoError(t, err)
				gotOut, err := badgerEngine.OutEdges(id)
				require.NoError(t, err)
				assert.Equal(t, wantOut, gotOut, "adjacency of %s", id)
			}

			attrs, err := badgerEngine.NodeAttributes("1")
			require.NoError(t, err)
			assert.Equal(t, "Alice", attrs["name"])
			assert.EqualValues(t, 35, attrs["age"])
			assert.Equal(t, []string{"Person"}, attrs[LabelsKey])

			edgeAttrs, err := badgerEngine.EdgeAttributes("1", "3", 0)
			require.NoError(t, err)
			assert.Equal(t, "KNOWS", edgeAttrs[TypeKey])
			assert.Equal(t, 2.5, edgeAttrs["weight"])

			edgeAttrs, err = badgerEngine.EdgeAttributes("1", "2", 1)
			require.NoError(t, err)
			assert.Equal(t, "WORKS_WITH", edgeAttrs[TypeKey])
		})
	}
}

func TestBadgerEngine_NeighborOrderAfterDelete(t *testing.T) {
	engines := map[string]Engine{
		"memory": NewMemoryEngine(),
		"badger": newTestBadger(t, SerializerMsgpack),
	}
	for name, engine := range engines {
		t.Run(name, func(t *testing.T) {
			for _, id := range []NodeID{"a", "x", "y"} {
				require.NoError(t, engine.CreateNode(&Node{ID: id}))
			}
			require.NoError(t, engine.CreateEdge(&Edge{ID: "e1", StartNode: "a", EndNode: "x"}))
			require.NoError(t, engine.CreateEdge(&Edge{ID: "e2", StartNode: "a", EndNode: "y"}))
			require.NoError(t, engine.CreateEdge(&Edge{ID: "e3", StartNode: "a", EndNode: "x"}))

			require.NoError(t, engine.DeleteEdge("e1"))
			out, err := engine.OutEdges("a")
			require.NoError(t, err)
			assert.Equal(t, []OutEdge{{To: "x", Key: 1}, {To: "y", Key: 0}}, out, "x keeps its first-connection slot")

			require.NoError(t, engine.DeleteEdge("e3"))
			require.NoError(t, engine.CreateEdge(&Edge{ID: "e4", StartNode: "a", EndNode: "x"}))
			out, err = engine.OutEdges("a")
			require.NoError(t, err)
			assert.Equal(t, []OutEdge{{To: "y", Key: 0}, {To: "x", Key: 0}}, out, "reconnected neighbor moves to the end")
		})
	}
}

func TestBadgerEngine_Errors(t *testing.T) {
	engine := newTestBadger(t, SerializerMsgpack)
	require.NoError(t, engine.CreateNode(&Node{ID: "a"}))

	assert.ErrorIs(t, engine.CreateNode(nil), ErrInvalidData)
	assert.ErrorIs(t, engine.CreateNode(&Node{ID: ""}), ErrInvalidID)
	assert.ErrorIs(t, engine.CreateNode(&Node{ID: "bad\x00id"}), ErrInvalidID)
	assert.ErrorIs(t, engine.CreateNode(&Node{ID: "a"}), ErrAlreadyExists)
	assert.ErrorIs(t, engine.CreateEdge(&Edge{StartNode: "a", EndNode: "zzz"}), ErrNotFound)

	_, err := engine.GetNode("zzz")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = engine.OutEdges("zzz")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = engine.EdgeAttributes("a", "a", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerEngine_DeleteNodeCascades(t *testing.T) {
	engine := newTestBadger(t, SerializerMsgpack)
	seedPeople(t, engine)
	require.NoError(t, engine.CreateEdge(&Edge{ID: "loop", StartNode: "2", EndNode: "2"}))

	require.NoError(t, engine.DeleteNode("2"))

	nodes, err := engine.NodeCount()
	require.NoError(t, err)
	edges, err := engine.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), nodes)
	assert.Equal(t, int64(1), edges)

	out, err := engine.OutEdges("1")
	require.NoError(t, err)
	assert.Equal(t, []OutEdge{{To: "3", Key: 0}}, out)

	ids, err := engine.NodeIDs()
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"1", "3"}, ids)
}

func TestBadgerEngine_EdgeKeyReuse(t *testing.T) {
	engine := newTestBadger(t, SerializerMsgpack)
	require.NoError(t, engine.CreateNode(&Node{ID: "a"}))
	require.NoError(t, engine.CreateNode(&Node{ID: "b"}))
	for _, id := range []EdgeID{"e0", "e1", "e2"} {
		require.NoError(t, engine.CreateEdge(&Edge{ID: id, StartNode: "a", EndNode: "b"}))
	}
	require.NoError(t, engine.DeleteEdge("e1"))

	e := &Edge{ID: "e3", StartNode: "a", EndNode: "b"}
	require.NoError(t, engine.CreateEdge(e))
	assert.Equal(t, EdgeKey(3), e.Key)

	out, err := engine.OutEdges("a")
	require.NoError(t, err)
	assert.Equal(t, []OutEdge{{To: "b", Key: 0}, {To: "b", Key: 2}, {To: "b", Key: 3}}, out)
}

func TestBadgerEngine_Persistence(t *testing.T) {
	dir := t.TempDir()

	engine, err := NewBadgerEngine(dir)
	require.NoError(t, err)
	seedPeople(t, engine)
	require.NoError(t, engine.Close())

	reopened, err := NewBadgerEngine(dir)
	require.NoError(t, err)
	defer reopened.Close()

	ids, err := reopened.NodeIDs()
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"1", "2", "3"}, ids)

	count, err := reopened.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, reopened.CreateNode(&Node{ID: "4"}))
	ids, err = reopened.NodeIDs()
	require.NoError(t, err)
	assert.Equal(t, NodeID("4"), ids[len(ids)-1])
}

func TestBadgerEngine_Closed(t *testing.T) {
	engine, err := NewBadgerEngineInMemory()
	require.NoError(t, err)
	assert.True(t, engine.IsInMemory())
	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())

	_, err = engine.NodeIDs()
	assert.ErrorIs(t, err, ErrStorageClosed)
	assert.ErrorIs(t, engine.CreateNode(&Node{ID: "a"}), ErrStorageClosed)
}
