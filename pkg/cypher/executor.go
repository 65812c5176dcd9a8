// Package cypher parses and executes a read-only subset of Cypher
// (MATCH / WHERE / RETURN / ORDER BY / SKIP / LIMIT) against a storage.Graph.
//
// Query text containing the inline form *NAME|N bypasses the parser and runs
// the named path algorithm from the executor's algo.Registry between the
// first and last node of the graph.
//
// Example:
//
//	exec := cypher.NewStorageExecutor(engine)
//	result, err := exec.Execute(ctx, "MATCH (a:Person)-[:KNOWS]->(b) RETURN a.name, b.name")
//	for _, rec := range result.Records() {
//		fmt.Println(rec["a.name"], rec["b.name"])
//	}
package cypher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/orneryd/nornicq/pkg/algo"
	"github.com/orneryd/nornicq/pkg/storage"
)

// TracerName is the instrumentation scope used when no tracer is supplied.
const TracerName = "github.com/orneryd/nornicq/pkg/cypher"

// PathColumn is the single column produced by inline algorithm queries.
const PathColumn = "path"

var inlineAlgorithm = regexp.MustCompile(`\*(\w+)\|(\d+)`)

// StorageExecutor executes queries against a graph. It is safe for
// concurrent use as long as the graph is.
type StorageExecutor struct {
	graph     storage.Graph
	registry  *algo.Registry
	cache     *ParseCache
	cacheSet  bool
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	timeout   time.Duration
	maxRows   int
	slowQuery time.Duration
	queryLog  bool
}

// Option configures a StorageExecutor.
type Option func(*StorageExecutor)

// WithRegistry sets the algorithm registry used for inline dispatch.
func WithRegistry(r *algo.Registry) Option {
	return func(e *StorageExecutor) { e.registry = r }
}

// WithParseCache sets the parse cache. A nil cache disables caching.
func WithParseCache(c *ParseCache) Option {
	return func(e *StorageExecutor) {
		e.cache = c
		e.cacheSet = true
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *StorageExecutor) { e.logger = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *StorageExecutor) { e.metrics = m }
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *StorageExecutor) { e.tracer = t }
}

// WithTimeout bounds each Execute call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(e *StorageExecutor) { e.timeout = d }
}

// WithMaxRows fails queries whose result exceeds n rows. Zero means no cap.
func WithMaxRows(n int) Option {
	return func(e *StorageExecutor) { e.maxRows = n }
}

// WithSlowQueryThreshold logs queries at or above d at Warn. Zero disables.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(e *StorageExecutor) { e.slowQuery = d }
}

// WithQueryLog toggles the per-query Debug log line.
func WithQueryLog(enabled bool) Option {
	return func(e *StorageExecutor) { e.queryLog = enabled }
}

// NewStorageExecutor creates an executor over g. Without options it uses
// the built-in algorithms, a DefaultParseCacheSize parse cache,
// slog.Default() and the global tracer provider.
func NewStorageExecutor(g storage.Graph, opts ...Option) *StorageExecutor {
	e := &StorageExecutor{
		graph:    g,
		queryLog: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = algo.NewDefaultRegistry()
	}
	if !e.cacheSet {
		e.cache = MustParseCache(DefaultParseCacheSize)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(TracerName)
	}
	return e
}

// Registry returns the executor's algorithm registry.
func (e *StorageExecutor) Registry() *algo.Registry {
	return e.registry
}

// ExecuteResult is the tabular outcome of a query.
type ExecuteResult struct {
	Columns []string
	Rows    [][]any
	Stats   QueryStats
}

// QueryStats describes one execution.
type QueryStats struct {
	// RowsMatched counts pattern rows (or algorithm paths) before WHERE and
	// pagination.
	RowsMatched  int           `json:"rows_matched"`
	RowsReturned int           `json:"rows_returned"`
	Duration     time.Duration `json:"duration"`
}

// Records returns one column-keyed map per row.
func (r *ExecuteResult) Records() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for j, col := range r.Columns {
			if j < len(row) {
				rec[col] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}

// Execute runs one query. Errors are *QueryError values; see Kind.
func (e *StorageExecutor) Execute(ctx context.Context, query string) (*ExecuteResult, error) {
	queryID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "cypher.Execute",
		trace.WithAttributes(attribute.String("query.id", queryID)),
	)
	defer span.End()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	kind := queryKindMatch
	var (
		result *ExecuteResult
		err    error
	)
	if m := inlineAlgorithm.FindStringSubmatch(query); m != nil {
		kind = queryKindAlgorithm
		result, err = e.executeAlgorithm(ctx, m[1], m[2])
	} else {
		result, err = e.executeMatch(ctx, query)
	}
	if err == nil && e.maxRows > 0 && len(result.Rows) > e.maxRows {
		err = newError("execute", KindLimit, fmt.Errorf("result has %d rows, limit is %d", len(result.Rows), e.maxRows))
	}
	elapsed := time.Since(start)

	rows := 0
	if err == nil {
		rows = len(result.Rows)
		result.Stats.RowsReturned = rows
		result.Stats.Duration = elapsed
	}
	e.metrics.observeQuery(kind, elapsed.Seconds(), rows, err)
	span.SetAttributes(
		attribute.String("query.kind", kind),
		attribute.Int("query.rows", rows),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("query failed",
			slog.String("query_id", queryID),
			slog.String("kind", kind),
			slog.Any("error", err),
		)
		return nil, err
	}

	if e.queryLog {
		e.logger.Debug("query executed",
			slog.String("query_id", queryID),
			slog.String("kind", kind),
			slog.Int("rows", rows),
			slog.Duration("duration", elapsed),
		)
	}
	if e.slowQuery > 0 && elapsed >= e.slowQuery {
		e.logger.Warn("slow query",
			slog.String("query_id", queryID),
			slog.String("query", query),
			slog.Duration("duration", elapsed),
			slog.Duration("threshold", e.slowQuery),
		)
	}
	return result, nil
}

func (e *StorageExecutor) parse(ctx context.Context, text string) (*Query, error) {
	_, span := e.tracer.Start(ctx, "cypher.parse")
	defer span.End()

	var (
		q      *Query
		cached bool
		err    error
	)
	if e.cache != nil {
		q, cached, err = e.cache.Parse(text)
	} else {
		q, err = Parse(text)
	}
	span.SetAttributes(attribute.Bool("parse.cached", cached))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	return q, nil
}

func (e *StorageExecutor) executeMatch(ctx context.Context, text string) (*ExecuteResult, error) {
	q, err := e.parse(ctx, text)
	if err != nil {
		return nil, err
	}

	var records []Record
	matched := 0
	for row, err := range MatchPatterns(ctx, q.Match, e.graph) {
		if err != nil {
			return nil, err
		}
		matched++
		if q.Where != nil {
			v, err := Eval(q.Where, row, e.graph)
			if err != nil {
				return nil, err
			}
			if !Truthy(v) {
				continue
			}
		}
		rec, err := Project(q.Return, row, e.graph)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := sortRecords(records, q.OrderBy, e.graph); err != nil {
		return nil, err
	}
	records = paginate(records, q.Skip, q.Limit)

	cols := Columns(q.Return)
	result := &ExecuteResult{
		Columns: cols,
		Rows:    make([][]any, len(records)),
		Stats:   QueryStats{RowsMatched: matched},
	}
	for i, rec := range records {
		row := make([]any, len(cols))
		for j, col := range cols {
			row[j] = rec[col]
		}
		result.Rows[i] = row
	}
	return result, nil
}

func (e *StorageExecutor) executeAlgorithm(ctx context.Context, name, digits string) (*ExecuteResult, error) {
	param, err := strconv.Atoi(digits)
	if err != nil {
		return nil, newError("algorithm", KindParse, fmt.Errorf("parameter %s out of range", digits))
	}

	result := &ExecuteResult{Columns: []string{PathColumn}, Rows: [][]any{}}
	ids, err := e.graph.NodeIDs()
	if err != nil {
		return nil, newError("algorithm", KindStorage, fmt.Errorf("list nodes: %w", err))
	}
	if len(ids) < 2 {
		return result, nil
	}

	fn, err := e.registry.Lookup(name)
	if err != nil {
		return nil, newError("algorithm", KindNotFound, err)
	}
	source, target := ids[0], ids[len(ids)-1]
	name = strings.ToUpper(name)

	ctx, span := e.tracer.Start(ctx, "cypher.algorithm",
		trace.WithAttributes(
			attribute.String("algorithm.name", name),
			attribute.Int("algorithm.param", param),
			attribute.String("algorithm.source", string(source)),
			attribute.String("algorithm.target", string(target)),
		),
	)
	defer span.End()

	paths, err := fn(ctx, e.graph, source, target, param)
	e.metrics.observeAlgorithm(name, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "algorithm failed")
		kind := KindAlgorithm
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			kind = KindCanceled
		}
		return nil, newError("algorithm", kind, fmt.Errorf("%s: %w", name, err))
	}
	span.SetAttributes(attribute.Int("algorithm.paths", len(paths)))

	for _, p := range paths {
		result.Rows = append(result.Rows, []any{[]storage.NodeID(p)})
	}
	result.Stats.RowsMatched = len(paths)
	return result, nil
}
