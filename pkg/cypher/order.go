package cypher

import (
	"slices"

	"github.com/orneryd/nornicq/pkg/storage"
)

// sortRecords orders records in place by the ORDER BY keys.
//
// Keys are evaluated against the projected record, with each column bound
// as a ScalarRef. A key that evaluates to nil falls back to the column of
// the same derived name, so ORDER BY b.name finds the "b.name" column.
// DESC only applies when it is the sole order item; with several items
// every direction is ignored.
func sortRecords(records []Record, order []OrderItem, g storage.Graph) error {
	if len(order) == 0 || len(records) < 2 {
		return nil
	}

	type keyed struct {
		rec  Record
		keys []any
	}
	rows := make([]keyed, len(records))
	for i, rec := range records {
		keys, err := sortKeys(rec, order, g)
		if err != nil {
			return err
		}
		rows[i] = keyed{rec: rec, keys: keys}
	}

	descending := len(order) == 1 && order[0].Desc
	var sortErr error
	slices.SortStableFunc(rows, func(a, b keyed) int {
		if descending {
			a, b = b, a
		}
		c, err := compareTuples(a.keys, b.keys)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c
	})
	if sortErr != nil {
		return sortErr
	}

	for i := range rows {
		records[i] = rows[i].rec
	}
	return nil
}

func sortKeys(rec Record, order []OrderItem, g storage.Graph) ([]any, error) {
	row := make(Row, len(rec))
	for k, v := range rec {
		row[k] = ScalarRef{Value: v}
	}
	keys := make([]any, len(order))
	for i, item := range order {
		v, err := Eval(item.Expr, row, g)
		if err != nil {
			return nil, err
		}
		if v == nil {
			v = rec[exprName(item.Expr)]
		}
		keys[i] = v
	}
	return keys, nil
}

// compareTuples compares element-wise; the first unequal pair decides.
func compareTuples(a, b []any) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if valuesEqual(a[i], b[i]) {
			continue
		}
		return compareValues(a[i], b[i])
	}
	return len(a) - len(b), nil
}

// paginate applies SKIP then LIMIT, clamping out-of-range values.
func paginate(records []Record, skip, limit *int) []Record {
	if skip != nil {
		n := min(max(*skip, 0), len(records))
		records = records[n:]
	}
	if limit != nil {
		n := min(max(*limit, 0), len(records))
		records = records[:n]
	}
	return records
}
