package cypher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/orneryd/nornicq/pkg/cypher/grammar"
)

// MaxChainLength caps the relationship steps in one pattern.
const MaxChainLength = 64

// Parse parses query text into a Query. Failures are *QueryError values of
// kind KindParse carrying the offending position.
func Parse(text string) (*Query, error) {
	tree, err := grammar.Parse(text)
	if err != nil {
		qe := newError("parse", KindParse, errors.New(grammar.ErrorMessage(err)))
		if pos, ok := grammar.ErrorPosition(err); ok {
			qe.Pos = &Position{Line: pos.Line, Column: pos.Column}
		}
		return nil, qe
	}
	return buildQuery(tree)
}

func buildError(pos lexer.Position, format string, args ...any) *QueryError {
	qe := newError("parse", KindParse, fmt.Errorf(format, args...))
	qe.Pos = &Position{Line: pos.Line, Column: pos.Column}
	return qe
}

func buildQuery(tree *grammar.Query) (*Query, error) {
	q := &Query{}

	for _, p := range tree.Match.Patterns {
		pattern, err := buildPattern(p)
		if err != nil {
			return nil, err
		}
		q.Match.Patterns = append(q.Match.Patterns, pattern)
	}

	if tree.Where != nil {
		where, err := buildExpression(tree.Where)
		if err != nil {
			return nil, err
		}
		q.Where = where
	}

	for _, item := range tree.Return.Items {
		e, err := buildExpression(item.Expr)
		if err != nil {
			return nil, err
		}
		q.Return = append(q.Return, ReturnItem{Expr: e, Alias: item.Alias})
	}

	if tree.Order != nil {
		for _, item := range tree.Order.Items {
			e, err := buildExpression(item.Expr)
			if err != nil {
				return nil, err
			}
			dir := strings.ToUpper(item.Direction)
			q.OrderBy = append(q.OrderBy, OrderItem{Expr: e, Desc: dir == "DESC" || dir == "DESCENDING"})
		}
	}

	var err error
	if q.Skip, err = buildIntArg(tree.Skip, "SKIP"); err != nil {
		return nil, err
	}
	if q.Limit, err = buildIntArg(tree.Limit, "LIMIT"); err != nil {
		return nil, err
	}
	return q, nil
}

func buildIntArg(arg *grammar.IntArg, clause string) (*int, error) {
	if arg == nil {
		return nil, nil
	}
	n, err := strconv.Atoi(arg.Value)
	if err != nil {
		return nil, buildError(arg.Pos, "%s value %s out of range", clause, arg.Value)
	}
	return &n, nil
}

func buildPattern(p *grammar.Pattern) (Pattern, error) {
	if len(p.Chain) > MaxChainLength {
		return Pattern{}, buildError(p.Pos, "pattern has %d relationships, limit is %d", len(p.Chain), MaxChainLength)
	}
	head, err := buildNode(p.Head)
	if err != nil {
		return Pattern{}, err
	}
	out := Pattern{Head: head}
	for _, step := range p.Chain {
		rel, err := buildRel(step.Rel)
		if err != nil {
			return Pattern{}, err
		}
		node, err := buildNode(step.Node)
		if err != nil {
			return Pattern{}, err
		}
		out.Chain = append(out.Chain, ChainStep{Rel: rel, Node: node})
	}
	return out, nil
}

func buildNode(n *grammar.NodePattern) (NodePattern, error) {
	props, err := buildProps(n.Properties)
	if err != nil {
		return NodePattern{}, err
	}
	return NodePattern{Var: n.Variable, Labels: n.Labels, Props: props}, nil
}

func buildRel(r *grammar.RelPattern) (RelPattern, error) {
	if r.Detail == nil {
		return RelPattern{}, nil
	}
	props, err := buildProps(r.Detail.Properties)
	if err != nil {
		return RelPattern{}, err
	}
	return RelPattern{Var: r.Detail.Variable, Types: r.Detail.Types, Props: props}, nil
}

func buildProps(m *grammar.MapLiteral) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	props := make(map[string]any, len(m.Pairs))
	for _, pair := range m.Pairs {
		v, err := buildLiteral(pair.Value.Literal)
		if err != nil {
			return nil, err
		}
		if pair.Value.Neg {
			f, ok := v.(float64)
			if !ok {
				return nil, buildError(pair.Value.Pos, "cannot negate %s", describe(v))
			}
			v = -f
		}
		props[pair.Key] = v
	}
	return props, nil
}

func buildLiteral(l *grammar.Literal) (any, error) {
	switch {
	case l.Null:
		return nil, nil
	case l.True:
		return true, nil
	case l.False:
		return false, nil
	case l.Number != nil:
		f, err := strconv.ParseFloat(*l.Number, 64)
		if err != nil {
			return nil, buildError(l.Pos, "invalid number %s", *l.Number)
		}
		return f, nil
	case l.String != nil:
		s, err := unquote(*l.String)
		if err != nil {
			return nil, buildError(l.Pos, "%v", err)
		}
		return s, nil
	}
	return nil, buildError(l.Pos, "empty literal")
}

// unquote strips the surrounding quotes from a single- or double-quoted
// literal and resolves backslash escapes.
func unquote(raw string) (string, error) {
	if len(raw) < 2 {
		return "", fmt.Errorf("malformed string %s", raw)
	}
	body := raw[1 : len(raw)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}
	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("trailing backslash in %s", raw)
		}
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'u':
			if i+4 >= len(body) {
				return "", fmt.Errorf("short unicode escape in %s", raw)
			}
			code, err := strconv.ParseUint(body[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad unicode escape in %s", raw)
			}
			sb.WriteRune(rune(code))
			i += 4
		default:
			// \\ \' \" and unknown escapes keep the escaped character.
			r, size := utf8.DecodeRuneInString(body[i:])
			sb.WriteRune(r)
			i += size - 1
		}
	}
	return sb.String(), nil
}

func buildExpression(e *grammar.Expression) (Expr, error) {
	left, err := buildAnd(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := buildAnd(r)
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func buildAnd(e *grammar.AndExpr) (Expr, error) {
	left, err := buildNot(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := buildNot(r)
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func buildNot(e *grammar.NotExpr) (Expr, error) {
	inner, err := buildComparison(e.Expr)
	if err != nil {
		return nil, err
	}
	for range e.Nots {
		inner = UnaryOp{Op: OpNot, Operand: inner}
	}
	return inner, nil
}

var comparisonOps = map[string]Op{
	"=":  OpEq,
	"==": OpEq,
	"<>": OpNe,
	"!=": OpNe,
	"<":  OpLt,
	"<=": OpLe,
	">":  OpGt,
	">=": OpGe,
}

func buildComparison(e *grammar.ComparisonExpr) (Expr, error) {
	left, err := buildAddSub(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Right == nil {
		return left, nil
	}
	op, ok := comparisonOps[e.Right.Op]
	if !ok {
		return nil, buildError(e.Right.Pos, "unknown operator %s", e.Right.Op)
	}
	right, err := buildAddSub(e.Right.Expr)
	if err != nil {
		return nil, err
	}
	return BinaryOp{Op: op, Left: left, Right: right}, nil
}

var arithmeticOps = map[string]Op{
	"+": OpAdd,
	"-": OpSub,
	"*": OpMul,
	"/": OpDiv,
	"%": OpMod,
}

func buildAddSub(e *grammar.AddSubExpr) (Expr, error) {
	left, err := buildMultDiv(e.Left)
	if err != nil {
		return nil, err
	}
	for _, term := range e.Right {
		right, err := buildMultDiv(term.Expr)
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: arithmeticOps[term.Op], Left: left, Right: right}
	}
	return left, nil
}

func buildMultDiv(e *grammar.MultDivExpr) (Expr, error) {
	left, err := buildUnary(e.Left)
	if err != nil {
		return nil, err
	}
	for _, term := range e.Right {
		right, err := buildUnary(term.Expr)
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: arithmeticOps[term.Op], Left: left, Right: right}
	}
	return left, nil
}

func buildUnary(e *grammar.UnaryExpr) (Expr, error) {
	inner, err := buildAtom(e.Atom)
	if err != nil {
		return nil, err
	}
	for range e.Minus {
		inner = UnaryOp{Op: OpNeg, Operand: inner}
	}
	return inner, nil
}

func buildAtom(a *grammar.Atom) (Expr, error) {
	switch {
	case a.CountAll:
		return CountAll{}, nil
	case a.Parenthesized != nil:
		return buildExpression(a.Parenthesized)
	case a.Literal != nil:
		v, err := buildLiteral(a.Literal)
		if err != nil {
			return nil, err
		}
		return Literal{Value: v}, nil
	case a.Variable != nil:
		if a.Variable.Property != nil {
			return PropertyAccess{Var: a.Variable.Name, Prop: *a.Variable.Property}, nil
		}
		return VarRef{Name: a.Variable.Name}, nil
	}
	return nil, buildError(a.Pos, "empty expression")
}
