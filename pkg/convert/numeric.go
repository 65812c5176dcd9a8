// Package convert provides the numeric conversions shared by the query
// evaluator and the path algorithms.
//
// Property values arrive from several decoders (YAML gives int, JSON gives
// float64, msgpack gives int64 or uint64), so every numeric comparison goes
// through these helpers. Strings are never treated as numbers.
package convert

import "math"

// ToFloat64 converts any Go integer or float kind to float64.
// Returns (0, false) for non-numeric values, including bool and string.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}

// ToInt64 converts integer kinds to int64. Floats are rejected, as are
// uint64 values above math.MaxInt64.
func ToInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	}
	return 0, false
}

// IsNumeric reports whether v is any Go integer or float kind.
func IsNumeric(v any) bool {
	_, ok := ToFloat64(v)
	return ok
}

// IsInteger reports whether v is an integer kind that fits in int64.
func IsInteger(v any) bool {
	_, ok := ToInt64(v)
	return ok
}
