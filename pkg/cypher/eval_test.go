package cypher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicq/pkg/storage"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"zero int", 0, false},
		{"zero int64", int64(0), false},
		{"zero float", 0.0, false},
		{"nonzero", -2, true},
		{"empty string", "", false},
		{"string", "x", true},
		{"empty list", []any{}, false},
		{"list", []any{nil}, true},
		{"empty map", map[string]any{}, false},
		{"map", map[string]any{"k": 1}, true},
		{"empty labels", []string{}, false},
		{"count marker", CountMarker{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.in))
		})
	}
}

func TestEval_Operators(t *testing.T) {
	tests := []struct {
		name  string
		op    Op
		left  any
		right any
		want  any
	}{
		{"int add stays int", OpAdd, 2, int64(3), int64(5)},
		{"mixed add is float", OpAdd, 2, 0.5, 2.5},
		{"string concat", OpAdd, "ab", "cd", "abcd"},
		{"list concat", OpAdd, []any{1}, []any{"x"}, []any{1, "x"}},
		{"int sub", OpSub, 2, 5, int64(-3)},
		{"int mul", OpMul, int32(4), uint8(3), int64(12)},
		{"division is float", OpDiv, 7, 2, 3.5},
		{"int mod truncates", OpMod, -7, 3, int64(-1)},
		{"float mod", OpMod, 7.5, 2.0, 1.5},
		{"eq across numeric kinds", OpEq, 1, 1.0, true},
		{"eq across kinds", OpEq, "1", 1.0, false},
		{"ne across kinds", OpNe, "1", 1.0, true},
		{"nil eq nil", OpEq, nil, nil, true},
		{"nil eq value", OpEq, nil, 0, false},
		{"list eq", OpEq, []any{"a", 1}, []string{"a"}, false},
		{"labels eq list", OpEq, []string{"a", "b"}, []any{"a", "b"}, true},
		{"map eq", OpEq, map[string]any{"x": 1}, map[string]any{"x": 1.0}, true},
		{"lt numbers", OpLt, 1, 1.5, true},
		{"ge strings", OpGe, "b", "a", true},
		{"bool order", OpLt, false, true, true},
		{"list order", OpLt, []any{1, 2}, []any{1, 3}, true},
		{"list prefix order", OpLe, []any{1}, []any{1, 0}, true},
		{"and", OpAnd, 1, "", false},
		{"or", OpOr, 0, "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(BinaryOp{Op: tt.op, Left: Literal{Value: tt.left}, Right: Literal{Value: tt.right}}, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name  string
		op    Op
		left  any
		right any
	}{
		{"order mixed kinds", OpLt, "a", 1},
		{"order nil", OpGt, nil, 1},
		{"order maps", OpLt, map[string]any{}, map[string]any{}},
		{"division by zero", OpDiv, 1, 0},
		{"int modulo by zero", OpMod, 1, 0},
		{"float modulo by zero", OpMod, 1.5, 0.0},
		{"string minus", OpSub, "a", "b"},
		{"string plus number", OpAdd, "a", 1},
		{"bool arithmetic", OpMul, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eval(BinaryOp{Op: tt.op, Left: Literal{Value: tt.left}, Right: Literal{Value: tt.right}}, nil, nil)
			assert.ErrorIs(t, err, ErrEvaluation)
		})
	}

	_, err := Eval(UnaryOp{Op: OpNeg, Operand: Literal{Value: "x"}}, nil, nil)
	assert.ErrorIs(t, err, ErrEvaluation)

	// AND and OR evaluate both operands, so a bad right side still fails.
	badCompare := BinaryOp{Op: OpLt, Left: Literal{Value: "a"}, Right: Literal{Value: 1}}
	_, err = Eval(BinaryOp{Op: OpAnd, Left: Literal{Value: false}, Right: badCompare}, nil, nil)
	assert.ErrorIs(t, err, ErrEvaluation, "false AND error")
	_, err = Eval(BinaryOp{Op: OpOr, Left: Literal{Value: true}, Right: badCompare}, nil, nil)
	assert.ErrorIs(t, err, ErrEvaluation, "true OR error")
}

func TestEval_Unary(t *testing.T) {
	v, err := Eval(UnaryOp{Op: OpNeg, Operand: Literal{Value: 3}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), v)

	v, err = Eval(UnaryOp{Op: OpNeg, Operand: Literal{Value: math.Inf(1)}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, math.Inf(-1), v)

	v, err = Eval(UnaryOp{Op: OpNot, Operand: Literal{Value: nil}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestEval_Bindings(t *testing.T) {
	g := storage.NewMemoryEngine()
	require.NoError(t, g.CreateNode(&storage.Node{ID: "n1", Labels: []string{"A"}, Properties: map[string]any{"x": 1}}))
	require.NoError(t, g.CreateNode(&storage.Node{ID: "n2"}))
	require.NoError(t, g.CreateEdge(&storage.Edge{StartNode: "n1", EndNode: "n2", Type: "T", Properties: map[string]any{"w": 2.5}}))

	row := Row{
		"n": NodeRef{ID: "n1"},
		"e": EdgeRef{From: "n1", To: "n2", Key: 0},
		"m": ScalarRef{Value: map[string]any{"k": "v"}},
		"s": ScalarRef{Value: 42},
	}

	tests := []struct {
		name string
		expr Expr
		want any
	}{
		{"node map", VarRef{Name: "n"}, map[string]any{"x": 1, "labels": []string{"A"}}},
		{"node property", PropertyAccess{Var: "n", Prop: "x"}, 1},
		{"node labels", PropertyAccess{Var: "n", Prop: "labels"}, []string{"A"}},
		{"missing property", PropertyAccess{Var: "n", Prop: "nope"}, nil},
		{"edge type", PropertyAccess{Var: "e", Prop: "type"}, "T"},
		{"edge property", PropertyAccess{Var: "e", Prop: "w"}, 2.5},
		{"scalar map index", PropertyAccess{Var: "m", Prop: "k"}, "v"},
		{"scalar non-map", PropertyAccess{Var: "s", Prop: "k"}, nil},
		{"scalar value", VarRef{Name: "s"}, 42},
		{"unbound", VarRef{Name: "zzz"}, nil},
		{"unbound property", PropertyAccess{Var: "zzz", Prop: "k"}, nil},
		{"count", CountAll{}, CountMarker{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, row, g)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("dangling node", func(t *testing.T) {
		_, err := Eval(VarRef{Name: "gone"}, Row{"gone": NodeRef{ID: "missing"}}, g)
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestProject(t *testing.T) {
	items := []ReturnItem{
		{Expr: PropertyAccess{Var: "a", Prop: "name"}},
		{Expr: VarRef{Name: "a"}, Alias: "whole"},
		{Expr: CountAll{}},
		{Expr: Literal{Value: 1.0}},
		{Expr: Literal{Value: 2.0}},
	}
	assert.Equal(t, []string{"a.name", "whole", "count", "expr"}, Columns(items))

	row := Row{"a": ScalarRef{Value: map[string]any{"name": "x"}}}
	rec, err := Project(items, row, nil)
	require.NoError(t, err)
	assert.Equal(t, Record{
		"a.name": "x",
		"whole":  map[string]any{"name": "x"},
		"count":  CountMarker{},
		"expr":   2.0,
	}, rec)
}
