package cypher

import (
	"cmp"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/orneryd/nornicq/pkg/convert"
	"github.com/orneryd/nornicq/pkg/storage"
)

// Eval evaluates e against row. Unbound variables and missing properties
// evaluate to nil; type errors are *QueryError values of kind KindEvaluation.
func Eval(e Expr, row Row, g storage.Graph) (any, error) {
	switch x := e.(type) {
	case Literal:
		return x.Value, nil
	case VarRef:
		ref, ok := row[x.Name]
		if !ok {
			return nil, nil
		}
		return attributes(ref, g)
	case PropertyAccess:
		return evalProperty(x, row, g)
	case CountAll:
		return CountMarker{}, nil
	case UnaryOp:
		v, err := Eval(x.Operand, row, g)
		if err != nil {
			return nil, err
		}
		return evalUnary(x.Op, v)
	case BinaryOp:
		left, err := Eval(x.Left, row, g)
		if err != nil {
			return nil, err
		}
		right, err := Eval(x.Right, row, g)
		if err != nil {
			return nil, err
		}
		return evalBinary(x.Op, left, right)
	}
	return nil, evalErrorf("unhandled expression %T", e)
}

func evalProperty(p PropertyAccess, row Row, g storage.Graph) (any, error) {
	ref, ok := row[p.Var]
	if !ok {
		return nil, nil
	}
	switch r := ref.(type) {
	case NodeRef, EdgeRef:
		v, err := attributes(r, g)
		if err != nil {
			return nil, err
		}
		return v.(map[string]any)[p.Prop], nil
	case ScalarRef:
		if m, ok := r.Value.(map[string]any); ok {
			return m[p.Prop], nil
		}
		return nil, nil
	}
	return nil, evalErrorf("unhandled binding %T", ref)
}

func evalUnary(op Op, v any) (any, error) {
	switch op {
	case OpNot:
		return !Truthy(v), nil
	case OpNeg:
		if i, ok := convert.ToInt64(v); ok {
			return -i, nil
		}
		if f, ok := convert.ToFloat64(v); ok {
			return -f, nil
		}
		return nil, evalErrorf("cannot negate %s", describe(v))
	}
	return nil, evalErrorf("unknown unary operator %s", op)
}

func evalBinary(op Op, left, right any) (any, error) {
	switch op {
	case OpAnd:
		return Truthy(left) && Truthy(right), nil
	case OpOr:
		return Truthy(left) || Truthy(right), nil
	case OpEq:
		return valuesEqual(left, right), nil
	case OpNe:
		return !valuesEqual(left, right), nil
	case OpLt, OpLe, OpGt, OpGe:
		c, err := compareValues(left, right)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpLt:
			return c < 0, nil
		case OpLe:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case OpAdd:
		return add(left, right)
	case OpSub, OpMul, OpDiv, OpMod:
		return arithmetic(op, left, right)
	}
	return nil, evalErrorf("unknown operator %s", op)
}

func add(left, right any) (any, error) {
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return ls + rs, nil
		}
	}
	if ll, ok := toList(left); ok {
		if rl, ok := toList(right); ok {
			out := make([]any, 0, len(ll)+len(rl))
			return append(append(out, ll...), rl...), nil
		}
	}
	return arithmetic(OpAdd, left, right)
}

func arithmetic(op Op, left, right any) (any, error) {
	if !convert.IsNumeric(left) || !convert.IsNumeric(right) {
		return nil, evalErrorf("unsupported operands for %s: %s and %s", op, describe(left), describe(right))
	}

	if op != OpDiv {
		li, lok := convert.ToInt64(left)
		ri, rok := convert.ToInt64(right)
		if lok && rok {
			switch op {
			case OpAdd:
				return li + ri, nil
			case OpSub:
				return li - ri, nil
			case OpMul:
				return li * ri, nil
			case OpMod:
				if ri == 0 {
					return nil, evalErrorf("modulo by zero")
				}
				return li % ri, nil
			}
		}
	}

	lf, _ := convert.ToFloat64(left)
	rf, _ := convert.ToFloat64(right)
	switch op {
	case OpAdd:
		return lf + rf, nil
	case OpSub:
		return lf - rf, nil
	case OpMul:
		return lf * rf, nil
	case OpDiv:
		if rf == 0 {
			return nil, evalErrorf("division by zero")
		}
		return lf / rf, nil
	case OpMod:
		if rf == 0 {
			return nil, evalErrorf("modulo by zero")
		}
		return math.Mod(lf, rf), nil
	}
	return nil, evalErrorf("unknown operator %s", op)
}

// valuesEqual is the = operator. Values of different kinds are unequal
// rather than an error, and nil equals only nil.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if convert.IsNumeric(a) && convert.IsNumeric(b) {
		ai, aok := convert.ToInt64(a)
		bi, bok := convert.ToInt64(b)
		if aok && bok {
			return ai == bi
		}
		af, _ := convert.ToFloat64(a)
		bf, _ := convert.ToFloat64(b)
		return af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case CountMarker:
		_, ok := b.(CountMarker)
		return ok
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !valuesEqual(v, w) {
				return false
			}
		}
		return true
	}
	if al, ok := toList(a); ok {
		bl, ok := toList(b)
		if !ok || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !valuesEqual(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values of the same kind. Mixed kinds and nil
// operands are evaluation errors.
func compareValues(a, b any) (int, error) {
	if a == nil || b == nil {
		return 0, evalErrorf("cannot order %s and %s", describe(a), describe(b))
	}
	if convert.IsNumeric(a) && convert.IsNumeric(b) {
		ai, aok := convert.ToInt64(a)
		bi, bok := convert.ToInt64(b)
		if aok && bok {
			return cmp.Compare(ai, bi), nil
		}
		af, _ := convert.ToFloat64(a)
		bf, _ := convert.ToFloat64(b)
		return cmp.Compare(af, bf), nil
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), nil
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, nil
			case !av:
				return -1, nil
			default:
				return 1, nil
			}
		}
	}
	if al, ok := toList(a); ok {
		if bl, ok := toList(b); ok {
			for i := 0; i < len(al) && i < len(bl); i++ {
				if valuesEqual(al[i], bl[i]) {
					continue
				}
				return compareValues(al[i], bl[i])
			}
			return cmp.Compare(len(al), len(bl)), nil
		}
	}
	return 0, evalErrorf("cannot order %s and %s", describe(a), describe(b))
}

// toList accepts []any and the []string used for node labels.
func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []storage.NodeID:
		out := make([]any, len(l))
		for i, id := range l {
			out[i] = string(id)
		}
		return out, true
	}
	return nil, false
}

// Truthy coerces a value to a boolean for WHERE, AND, OR and NOT.
// nil, false, numeric zero, "" and empty collections are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case CountMarker:
		return true
	}
	if f, ok := convert.ToFloat64(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T(%v)", v, v)
}
