package cypher

import "github.com/orneryd/nornicq/pkg/storage"

// CountMarker is the value of count(*). It does not aggregate: every input
// row carries one marker in its "count" column.
type CountMarker struct{}

func (CountMarker) String() string { return "count(*)" }

// MarshalText renders the marker as "count(*)" in JSON and YAML output.
func (CountMarker) MarshalText() ([]byte, error) { return []byte("count(*)"), nil }

// Record is one projected row keyed by column name.
type Record map[string]any

// ColumnName derives the output key of a RETURN item: the alias if any,
// otherwise "var.prop", "var", "count", or "expr".
func ColumnName(item ReturnItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	return exprName(item.Expr)
}

func exprName(e Expr) string {
	switch x := e.(type) {
	case PropertyAccess:
		return x.Var + "." + x.Prop
	case VarRef:
		return x.Name
	case CountAll:
		return "count"
	}
	return "expr"
}

// Columns lists the distinct column names of items in first-occurrence order.
func Columns(items []ReturnItem) []string {
	cols := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		name := ColumnName(item)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cols = append(cols, name)
	}
	return cols
}

// Project evaluates items against row. A later item with the same column
// name overwrites an earlier one.
func Project(items []ReturnItem, row Row, g storage.Graph) (Record, error) {
	rec := make(Record, len(items))
	for _, item := range items {
		v, err := Eval(item.Expr, row, g)
		if err != nil {
			return nil, err
		}
		rec[ColumnName(item)] = v
	}
	return rec, nil
}
