package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullQuery(t *testing.T) {
	q, err := Parse(`MATCH (a:Person)-[r:KNOWS]->(b:Person) WHERE a.age > 30 ` +
		`RETURN a.name AS src, b.name AS dst ORDER BY dst DESC SKIP 0 LIMIT 1`)
	require.NoError(t, err)

	require.Len(t, q.Match.Patterns, 1)
	p := q.Match.Patterns[0]
	assert.Equal(t, "a", p.Head.Variable)
	assert.Equal(t, []string{"Person"}, p.Head.Labels)
	require.Len(t, p.Chain, 1)
	require.NotNil(t, p.Chain[0].Rel.Detail)
	assert.Equal(t, "r", p.Chain[0].Rel.Detail.Variable)
	assert.Equal(t, []string{"KNOWS"}, p.Chain[0].Rel.Detail.Types)
	assert.Equal(t, "b", p.Chain[0].Node.Variable)

	require.NotNil(t, q.Where)
	cmp := q.Where.Left.Left.Expr
	require.NotNil(t, cmp.Right)
	assert.Equal(t, ">", cmp.Right.Op)

	require.Len(t, q.Return.Items, 2)
	assert.Equal(t, "src", q.Return.Items[0].Alias)
	assert.Equal(t, "dst", q.Return.Items[1].Alias)

	require.NotNil(t, q.Order)
	require.Len(t, q.Order.Items, 1)
	assert.Equal(t, "DESC", q.Order.Items[0].Direction)
	require.NotNil(t, q.Skip)
	assert.Equal(t, "0", q.Skip.Value)
	require.NotNil(t, q.Limit)
	assert.Equal(t, "1", q.Limit.Value)
}

func TestParse_Patterns(t *testing.T) {
	t.Run("bare arrow", func(t *testing.T) {
		q, err := Parse("MATCH (a)-->(b) RETURN a")
		require.NoError(t, err)
		chain := q.Match.Patterns[0].Chain
		require.Len(t, chain, 1)
		assert.Nil(t, chain[0].Rel.Detail)
	})

	t.Run("anonymous nodes and empty brackets", func(t *testing.T) {
		q, err := Parse("MATCH ()-[]->(:City) RETURN count(*)")
		require.NoError(t, err)
		p := q.Match.Patterns[0]
		assert.Empty(t, p.Head.Variable)
		assert.Equal(t, []string{"City"}, p.Chain[0].Node.Labels)
		assert.True(t, q.Return.Items[0].Expr.Left.Left.Expr.Left.Left.Left.Atom.CountAll)
	})

	t.Run("labels types and properties", func(t *testing.T) {
		q, err := Parse(`MATCH (a:A:B {name: 'x', n: -2.5, ok: true})-[r:T1|T2|:T3 {w: 1}]->(b {none: null}) RETURN a`)
		require.NoError(t, err)
		head := q.Match.Patterns[0].Head
		assert.Equal(t, []string{"A", "B"}, head.Labels)
		require.Len(t, head.Properties.Pairs, 3)
		assert.Equal(t, "n", head.Properties.Pairs[1].Key)
		assert.True(t, head.Properties.Pairs[1].Value.Neg)
		assert.Equal(t, "2.5", *head.Properties.Pairs[1].Value.Literal.Number)
		assert.True(t, head.Properties.Pairs[2].Value.Literal.True)

		rel := q.Match.Patterns[0].Chain[0].Rel.Detail
		assert.Equal(t, []string{"T1", "T2", "T3"}, rel.Types)
		assert.True(t, q.Match.Patterns[0].Chain[0].Node.Properties.Pairs[0].Value.Literal.Null)
	})

	t.Run("multiple patterns and long chain", func(t *testing.T) {
		q, err := Parse("MATCH (a)-[:X]->(b)-[:Y]->(c), (d) RETURN a, d")
		require.NoError(t, err)
		require.Len(t, q.Match.Patterns, 2)
		assert.Len(t, q.Match.Patterns[0].Chain, 2)
		assert.Empty(t, q.Match.Patterns[1].Chain)
	})
}

func TestParse_CaseInsensitiveKeywords(t *testing.T) {
	q, err := Parse("match (n) where not n.x = 1 or n.y <> 2 and n.z return n as m order by m ascending skip 1 limit 2;")
	require.NoError(t, err)
	assert.Equal(t, "m", q.Return.Items[0].Alias)
	assert.Equal(t, "ascending", q.Order.Items[0].Direction)
	assert.True(t, q.Semicolon)
	assert.Len(t, q.Where.Right, 1)
	assert.Len(t, q.Where.Left.Left.Nots, 1)
}

func TestParse_Expressions(t *testing.T) {
	tests := []string{
		"MATCH (n) RETURN 1 + 2 * 3 - 4 / 5 % 6",
		"MATCH (n) RETURN -n.age, - -1",
		"MATCH (n) RETURN (n.a + 1) * 2",
		`MATCH (n) RETURN "double \"quoted\"", 'single'`,
		"MATCH (n) RETURN n.a == 1, n.a != 2, n.a <= 3, n.a >= 4",
		"MATCH (n) RETURN 1.5e3, .5, 10",
		"MATCH (n) // trailing comment\nRETURN n /* block */",
		"MATCH (n) RETURN count",
	}
	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			_, err := Parse(query)
			assert.NoError(t, err)
		})
	}
}

func TestParse_NumberTokens(t *testing.T) {
	tests := map[string]string{
		"1.5e3": "1.5e3",
		".5":    ".5",
		"1.":    "1.",
		"2e-1":  "2e-1",
		"10":    "10",
	}
	for src, want := range tests {
		t.Run(src, func(t *testing.T) {
			q, err := Parse("MATCH (n) RETURN " + src)
			require.NoError(t, err)
			lit := q.Return.Items[0].Expr.Left.Left.Expr.Left.Left.Left.Atom.Literal
			require.NotNil(t, lit)
			require.NotNil(t, lit.Number)
			assert.Equal(t, want, *lit.Number)
		})
	}

	t.Run("property access after a number", func(t *testing.T) {
		q, err := Parse("MATCH (n) WHERE n.x > .5 RETURN n.x")
		require.NoError(t, err)
		v := q.Return.Items[0].Expr.Left.Left.Expr.Left.Left.Left.Atom.Variable
		require.NotNil(t, v)
		require.NotNil(t, v.Property)
		assert.Equal(t, "x", *v.Property)
	})
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"reverse direction":   "MATCH (a)<-[r]-(b) RETURN a",
		"undirected":          "MATCH (a)-[r]-(b) RETURN a",
		"missing return":      "MATCH (a)",
		"chained comparison":  "MATCH (a) RETURN 1 < 2 < 3",
		"unclosed node":       "MATCH (a RETURN a",
		"negative skip":       "MATCH (a) RETURN a SKIP -1",
		"float limit":         "MATCH (a) RETURN a LIMIT 1.5",
		"write clause":        "CREATE (a) RETURN a",
		"nested property":     "MATCH (a) RETURN a.b.c",
		"expression in props": "MATCH (a {x: 1 + 1}) RETURN a",
		"trailing garbage":    "MATCH (a) RETURN a a",
	}
	for name, query := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(query)
			require.Error(t, err)
			pos, ok := ErrorPosition(err)
			assert.True(t, ok)
			assert.Equal(t, 1, pos.Line)
			assert.NotEmpty(t, ErrorMessage(err))
		})
	}
}
