package cypher

import (
	"errors"
	"fmt"
)

// Kind categorizes a QueryError.
type Kind string

// Error kinds.
const (
	// KindParse covers malformed query text, including oversized integers and
	// pattern chains longer than MaxChainLength.
	KindParse Kind = "parse"
	// KindNotFound is returned when an inline algorithm name is not registered.
	KindNotFound Kind = "not_found"
	// KindEvaluation covers type errors raised while evaluating expressions.
	KindEvaluation Kind = "evaluation"
	// KindAlgorithm wraps failures raised inside a path algorithm.
	KindAlgorithm Kind = "algorithm"
	// KindStorage wraps graph capability failures.
	KindStorage Kind = "storage"
	// KindCanceled is returned when the context ends mid-query.
	KindCanceled Kind = "canceled"
	// KindLimit is returned when a result exceeds the configured row cap.
	KindLimit Kind = "limit"
)

// Kind sentinels for errors.Is checks:
//
//	if errors.Is(err, cypher.ErrParse) { ... }
var (
	ErrParse      = &QueryError{Kind: KindParse}
	ErrNotFound   = &QueryError{Kind: KindNotFound}
	ErrEvaluation = &QueryError{Kind: KindEvaluation}
	ErrAlgorithm  = &QueryError{Kind: KindAlgorithm}
	ErrStorage    = &QueryError{Kind: KindStorage}
	ErrCanceled   = &QueryError{Kind: KindCanceled}
	ErrLimit      = &QueryError{Kind: KindLimit}
)

// Position is a 1-based line and column in the query text.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// QueryError is the structured error returned by Parse and Execute.
type QueryError struct {
	// Op is the operation that failed, e.g. "parse", "match", "project".
	Op string
	// Kind categorizes the failure.
	Kind Kind
	// Pos is set for parse errors.
	Pos *Position
	// Err is the underlying cause.
	Err error
}

func (e *QueryError) Error() string {
	prefix := "cypher"
	if e.Op != "" {
		prefix += ": " + e.Op
	}
	if e.Pos != nil {
		prefix += " at " + e.Pos.String()
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", prefix, e.Kind)
	}
	return fmt.Sprintf("%s (%s): %v", prefix, e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is matches another QueryError by Kind, and by Op when the target sets one.
func (e *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

func newError(op string, kind Kind, err error) *QueryError {
	return &QueryError{Op: op, Kind: kind, Err: err}
}

func evalErrorf(format string, args ...any) *QueryError {
	return newError("eval", KindEvaluation, fmt.Errorf(format, args...))
}

// KindOf returns the Kind of err, or "" if err is not a QueryError.
func KindOf(err error) Kind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}
