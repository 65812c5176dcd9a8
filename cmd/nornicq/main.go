// Package main provides the NornicQ CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/orneryd/nornicq/pkg/algo"
	"github.com/orneryd/nornicq/pkg/config"
	"github.com/orneryd/nornicq/pkg/cypher"
	"github.com/orneryd/nornicq/pkg/storage"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nornicq",
		Short: "NornicQ - Cypher queries and path algorithms over a property graph",
		Long: `NornicQ runs a read-only subset of Cypher against a property graph
held in memory or in BadgerDB.

Features:
  • MATCH / WHERE / RETURN / ORDER BY / SKIP / LIMIT
  • Inline path algorithms: *KSHORTEST|3, *BFS|2, *ALLSHORTEST|0, *WSHORTEST|0
  • YAML graph fixtures and Neo4j JSON exports`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", getEnvStr("NORNICQ_CONFIG", ""), "Config file (default: search nornicq.yaml, config.yaml, ~/.nornicq/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", getEnvStr("NORNICQ_DATA_DIR", "./data"), "Badger data directory")
	rootCmd.PersistentFlags().String("graph", "", "Graph fixture (.yaml or Neo4j .json) loaded into a memory store")
	rootCmd.PersistentFlags().String("engine", getEnvStr("NORNICQ_STORAGE_ENGINE", config.EngineMemory), "Storage engine: memory, badger")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "NornicQ v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	// Query command
	queryCmd := &cobra.Command{
		Use:   "query [cypher]",
		Short: "Execute one query",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().String("format", "table", "Output format: table, json")
	rootCmd.AddCommand(queryCmd)

	// Algorithms command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "algorithms",
		Short: "List registered inline algorithms",
		RunE:  runAlgorithms,
	})

	// Import command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "import [fixture]",
		Short: "Load a graph fixture into the Badger data directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	})

	// Shell command (interactive Cypher REPL)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Interactive Cypher shell",
		RunE:  runShell,
	})

	return rootCmd
}

// app bundles what a subcommand needs to run queries.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   storage.Engine
	executor *cypher.StorageExecutor
	closers  []io.Closer
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// loadConfig resolves configuration: defaults, config file, env, then flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	if f := cmd.Flags().Lookup("data-dir"); f != nil && f.Changed {
		cfg.Storage.DataDir = f.Value.String()
	}
	if f := cmd.Flags().Lookup("engine"); f != nil && f.Changed {
		cfg.Storage.Engine = strings.ToLower(f.Value.String())
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the slog handler described by cfg. The returned closer
// is non-nil when output goes to a file.
func newLogger(cfg config.LoggingConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	var (
		out    io.Writer
		closer io.Closer
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out, closer = f, f
	}

	var level slog.Level
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer, nil
}

// openEngine returns the graph to query. A --graph fixture always loads into
// a fresh memory store; otherwise cfg.Storage decides.
func openEngine(cfg *config.Config, graphPath string, logger *slog.Logger) (storage.Engine, error) {
	if graphPath != "" {
		engine := storage.NewMemoryEngine()
		if err := storage.LoadGraphFile(engine, graphPath); err != nil {
			engine.Close()
			return nil, fmt.Errorf("loading graph %s: %w", graphPath, err)
		}
		return engine, nil
	}

	if cfg.Storage.Engine == config.EngineBadger {
		return openBadger(cfg, logger)
	}
	return storage.NewMemoryEngine(), nil
}

func openBadger(cfg *config.Config, logger *slog.Logger) (*storage.BadgerEngine, error) {
	engine, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
		DataDir:    cfg.Storage.DataDir,
		InMemory:   cfg.Storage.InMemory,
		SyncWrites: cfg.Storage.SyncWrites,
		Serializer: storage.Serializer(cfg.Storage.Encoding),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return engine, nil
}

// buildRegistry registers every built-in algorithm not listed in
// cfg.Algorithms.Disabled.
func buildRegistry(cfg *config.Config) *algo.Registry {
	reg := algo.NewRegistry()
	for name, fn := range algo.Builtins(cfg.Algorithms.WeightAttribute) {
		if cfg.AlgorithmEnabled(name) {
			reg.Register(name, fn)
		}
	}
	return reg
}

// newApp wires config, logging, storage and the executor for cmd.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	logger, closer, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.logger = logger

	graphPath, _ := cmd.Flags().GetString("graph")
	engine, err := openEngine(cfg, graphPath, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine
	a.closers = append(a.closers, engine)

	opts := []cypher.Option{
		cypher.WithRegistry(buildRegistry(cfg)),
		cypher.WithLogger(logger),
		cypher.WithTimeout(cfg.Query.Timeout),
		cypher.WithMaxRows(cfg.Query.MaxRows),
		cypher.WithQueryLog(cfg.Logging.QueryLogEnabled),
		cypher.WithSlowQueryThreshold(cfg.Logging.SlowQueryThreshold),
	}

	if cfg.Query.ParseCacheSize > 0 {
		cache, err := cypher.NewParseCache(cfg.Query.ParseCacheSize)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, cypher.WithParseCache(cache))
	} else {
		opts = append(opts, cypher.WithParseCache(nil))
	}

	if cfg.Metrics.Enabled {
		metrics, err := cypher.NewMetrics(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		opts = append(opts, cypher.WithMetrics(metrics))
	}

	a.executor = cypher.NewStorageExecutor(engine, opts...)
	logger.Debug("nornicq ready", "config", cfg.String())
	return a, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.executor.Execute(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	writeTable(cmd.OutOrStdout(), result)
	return nil
}

func runAlgorithms(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	for _, name := range buildRegistry(cfg).Names() {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	engine, err := openBadger(cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := storage.LoadGraphFile(engine, args[0]); err != nil {
		return fmt.Errorf("importing %s: %w", args[0], err)
	}

	nodes, err := engine.NodeCount()
	if err != nil {
		return err
	}
	edges, err := engine.EdgeCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s into %s: %d nodes, %d relationships\n",
		args[0], cfg.Storage.DataDir, nodes, edges)
	return nil
}

func runShell(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "nornicq> ")
		if !scanner.Scan() {
			break // EOF or error
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		result, err := a.executor.Execute(cmd.Context(), query)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}
		writeTable(out, result)
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// writeTable prints result as a '|' separated table followed by a row count.
func writeTable(w io.Writer, result *cypher.ExecuteResult) {
	header := strings.Join(result.Columns, " | ")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, row := range result.Rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = formatValue(v)
		}
		fmt.Fprintln(w, strings.Join(values, " | "))
	}
	fmt.Fprintf(w, "\n(%d row(s))\n", len(result.Rows))
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func writeJSON(w io.Writer, result *cypher.ExecuteResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Columns []string          `json:"columns"`
		Records []map[string]any  `json:"records"`
		Stats   cypher.QueryStats `json:"stats"`
	}{result.Columns, result.Records(), result.Stats})
}

// getEnvStr returns environment variable or default
func getEnvStr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
